package receiver

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func listen(t *testing.T, serve func(net.Conn)) (string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go serve(c)
		}
	}()

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return host, p
}

func TestIMAPDialTransportFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	d := NewIMAP("127.0.0.1", port, "a@example.com", "p", "", zap.NewNop())
	_, err = d.Dial(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindTransport, KindOf(err))
}

func TestIMAPDialTLSFailure(t *testing.T) {
	host, port := listen(t, func(c net.Conn) {
		_, _ = c.Write([]byte("* OK plaintext server ready\r\n"))
		c.Close()
	})

	d := NewIMAP(host, port, "a@example.com", "p", "", zap.NewNop())
	_, err := d.Dial(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindTLS, KindOf(err))
}

func TestIMAPDialTimeout(t *testing.T) {
	host, port := listen(t, func(c net.Conn) {
		// Never answers the TLS ClientHello.
		time.Sleep(time.Second)
		c.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	d := NewIMAP(host, port, "a@example.com", "p", "", zap.NewNop())
	start := time.Now()
	_, err := d.Dial(ctx)
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
