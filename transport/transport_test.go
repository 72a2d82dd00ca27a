package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"github.com/fornellas/stabctl/internal/fakeport"
)

func openFake(t *testing.T, port *fakeport.Port) *Transport {
	transport, err := Open(t.Context(), func(context.Context, *serial.Mode) (serial.Port, error) {
		return port, nil
	}, &serial.Mode{BaudRate: 38400})
	require.NoError(t, err)
	return transport
}

func TestReadLineFragmented(t *testing.T) {
	port := fakeport.NewPort(nil)
	transport := openFake(t, port)
	defer transport.Close()

	port.Feed("1.0,2.0", "0,3.0\n\n")
	line, err := transport.ReadLine(t.Context(), time.Second)
	require.NoError(t, err)
	require.Equal(t, "1.0,2.00,3.0", line)

	line, err = transport.ReadLine(t.Context(), time.Second)
	require.NoError(t, err)
	require.Equal(t, "", line)
}

func TestReadLineCarriageReturn(t *testing.T) {
	port := fakeport.NewPort(nil)
	transport := openFake(t, port)
	defer transport.Close()

	port.Feed("OK\r\nSAVED_on\r", "\n")
	line, err := transport.ReadLine(t.Context(), time.Second)
	require.NoError(t, err)
	require.Equal(t, "OK", line)
	line, err = transport.ReadLine(t.Context(), time.Second)
	require.NoError(t, err)
	require.Equal(t, "SAVED_on", line)
}

func TestReadLineTimeoutKeepsPartial(t *testing.T) {
	port := fakeport.NewPort(nil)
	transport := openFake(t, port)
	defer transport.Close()

	port.Feed("0.3,0.0")
	_, err := transport.ReadLine(t.Context(), 150*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)

	port.Feed("8,0.7\n")
	line, err := transport.ReadLine(t.Context(), time.Second)
	require.NoError(t, err)
	require.Equal(t, "0.3,0.08,0.7", line)
}

func TestReadLineContextCancel(t *testing.T) {
	port := fakeport.NewPort(nil)
	transport := openFake(t, port)
	defer transport.Close()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := transport.ReadLine(ctx, time.Second)
	require.ErrorIs(t, err, context.Canceled)
}

func TestReadLineTooLong(t *testing.T) {
	port := fakeport.NewPort(nil)
	transport := openFake(t, port)
	defer transport.Close()

	long := make([]byte, MaxLineLength+10)
	for i := range long {
		long[i] = 'x'
	}
	port.Feed(string(long), "tail\nOK\n")
	_, err := transport.ReadLine(t.Context(), time.Second)
	require.ErrorIs(t, err, ErrLineTooLong)

	line, err := transport.ReadLine(t.Context(), time.Second)
	require.NoError(t, err)
	require.Equal(t, "OK", line)
}

func TestCloseAndEOF(t *testing.T) {
	port := fakeport.NewPort(nil)
	transport := openFake(t, port)

	errCh := make(chan error, 1)
	go func() {
		_, err := transport.ReadLine(context.Background(), 0)
		errCh <- err
	}()

	require.NoError(t, transport.Close())
	require.NoError(t, transport.Close())
	require.True(t, port.Closed())

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("ReadLine did not return after Close")
	}

	require.ErrorIs(t, transport.Write([]byte("get\n")), ErrClosed)
}

func TestWrite(t *testing.T) {
	port := fakeport.NewPort(nil)
	transport := openFake(t, port)
	defer transport.Close()

	require.NoError(t, transport.Write([]byte("setA0.256\n")))
	require.Equal(t, "setA0.256\n", port.Written())

	port.WriteError = errors.New("boom")
	require.Error(t, transport.Write([]byte("get\n")))
}
