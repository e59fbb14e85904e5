package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tracyhatemice/mailnotify/internal/receiver"
	"github.com/tracyhatemice/mailnotify/internal/registry"
	"github.com/tracyhatemice/mailnotify/internal/state"
)

type idleConn struct{}

func (idleConn) Latest() (*receiver.Message, error) { return nil, nil }
func (idleConn) Logout() error { return nil }

func TestEndpoints(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	reg := registry.New(zap.NewNop())
	reg.Register("a@example.com", receiver.NewSession(idleConn{}))

	srv := New("127.0.0.1:0", []Mailbox{
		{Address: "a@example.com", Tracker: state.NewTracker(t0)},
		{Address: "b@example.com", Tracker: state.NewTracker(t0.Add(time.Hour))},
	}, reg, zap.NewNop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, float64(2), health["mailboxes"])
	assert.Equal(t, float64(1), health["open_sessions"])

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mailboxes", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []MailboxStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "a@example.com", list[0].Address)
	assert.True(t, list[0].SessionOpen)
	assert.True(t, list[0].Latest.Equal(t0))
	assert.False(t, list[1].SessionOpen)
	assert.True(t, list[1].Latest.Equal(t0.Add(time.Hour)))
}
