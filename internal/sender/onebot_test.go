package sender

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type captured struct {
	path string
	auth string
	body map[string]any
}

func newOneBotServer(t *testing.T, reply string) (*httptest.Server, func() []captured) {
	t.Helper()
	var mu sync.Mutex
	var calls []captured
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		calls = append(calls, captured{path: r.URL.Path, auth: r.Header.Get("Authorization"), body: body})
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, func() []captured {
		mu.Lock()
		defer mu.Unlock()
		return append([]captured(nil), calls...)
	}
}

func TestOneBotDeliver(t *testing.T) {
	srv, calls := newOneBotServer(t, `{"status":"ok","retcode":0,"data":{"message_id":1}}`)
	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewOneBot(srv.URL+"/", "s3cret", zap.New(core))

	sink.Deliver(context.Background(), Recipient{Kind: User, ID: "10001"}, "a@example.com received new mail!\nInvoice")
	sink.Deliver(context.Background(), Recipient{Kind: Group, ID: "20001"}, "hello group")

	got := calls()
	require.Len(t, got, 2)

	assert.Equal(t, "/send_private_msg", got[0].path)
	assert.Equal(t, "Bearer s3cret", got[0].auth)
	assert.Equal(t, float64(10001), got[0].body["user_id"])
	assert.Equal(t, "a@example.com received new mail!\nInvoice", got[0].body["message"])

	assert.Equal(t, "/send_group_msg", got[1].path)
	assert.Equal(t, float64(20001), got[1].body["group_id"])
	assert.Equal(t, "hello group", got[1].body["message"])

	assert.Zero(t, logs.FilterMessage("notification failed").Len())
}

func TestOneBotFailureIsLogged(t *testing.T) {
	srv, calls := newOneBotServer(t, `{"status":"failed","retcode":100,"message":"user not found"}`)
	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewOneBot(srv.URL, "", zap.New(core))

	sink.Deliver(context.Background(), Recipient{Kind: User, ID: "10001"}, "x")

	require.Len(t, calls(), 1)
	assert.Empty(t, calls()[0].auth)
	failed := logs.FilterMessage("notification failed").All()
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].ContextMap()["error"], "user not found")
}

func TestOneBotRejectsNonNumericID(t *testing.T) {
	srv, calls := newOneBotServer(t, `{"status":"ok","retcode":0}`)
	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewOneBot(srv.URL, "", zap.New(core))

	sink.Deliver(context.Background(), Recipient{Kind: User, ID: "carol"}, "x")

	assert.Empty(t, calls())
	assert.Equal(t, 1, logs.FilterMessage("notification failed").Len())
}
