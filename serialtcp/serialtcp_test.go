package serialtcp

import (
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/fornellas/slogxt/log"
	"github.com/stretchr/testify/require"
)

func TestTcpPort(t *testing.T) {
	ctx := log.WithLogger(t.Context(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	serverConnCh := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			close(serverConnCh)
			return
		}
		serverConnCh <- conn
	}()

	port, err := TcpPortDial(ctx, listener.Addr().String(), time.Second)
	require.NoError(t, err)
	defer port.Close()

	serverConn, ok := <-serverConnCh
	require.True(t, ok)
	defer serverConn.Close()

	n, err := port.Write([]byte("get\n"))
	require.NoError(t, err)
	require.Equal(t, 4, n)

	buf := make([]byte, 4)
	_, err = io.ReadFull(serverConn, buf)
	require.NoError(t, err)
	require.Equal(t, "get\n", string(buf))

	require.NoError(t, port.SetReadTimeout(50*time.Millisecond))
	n, err = port.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	_, err = serverConn.Write([]byte("OK\n"))
	require.NoError(t, err)
	buf = make([]byte, 16)
	var received []byte
	for len(received) < 3 {
		n, err = port.Read(buf)
		require.NoError(t, err)
		received = append(received, buf[:n]...)
	}
	require.Equal(t, "OK\n", string(received))

	require.NoError(t, serverConn.Close())
	require.Eventually(t, func() bool {
		_, err := port.Read(buf)
		return err == io.EOF
	}, time.Second, 10*time.Millisecond)
}

func TestTcpPortDialError(t *testing.T) {
	ctx := log.WithLogger(t.Context(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	address := listener.Addr().String()
	require.NoError(t, listener.Close())

	_, err = TcpPortDial(ctx, address, time.Second)
	require.Error(t, err)
}
