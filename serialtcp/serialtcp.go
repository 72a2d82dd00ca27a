// Package serialtcp exposes a TCP connection to the device as a serial.Port, so the same client
// can talk to WiFi firmware and to a serial port bridged by stabctl serve.
package serialtcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/fornellas/slogxt/log"
	"go.bug.st/serial"
)

var ErrNotSupported = errors.New("serialtcp: not supported")

// TcpPort partially implements serial.Port interface over a TCP connection.
type TcpPort struct {
	conn        net.Conn
	mu          sync.Mutex
	readTimeout time.Duration
}

// TcpPortDial connects to address, honoring both ctx and timeout.
func TcpPortDial(ctx context.Context, address string, timeout time.Duration) (*TcpPort, error) {
	logger := log.MustLogger(ctx)
	logger.Info("Dialing TCP port", "address", address, "timeout", timeout)
	dialer := &net.Dialer{
		Timeout: timeout,
	}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("serialtcp: dial %s: %w", address, err)
	}
	logger.Debug("Connected", "local", conn.LocalAddr().String(), "remote", conn.RemoteAddr().String())
	return NewTcpPort(conn), nil
}

// NewTcpPort wraps an already established connection.
func NewTcpPort(conn net.Conn) *TcpPort {
	return &TcpPort{
		conn:        conn,
		readTimeout: serial.NoTimeout,
	}
}

// SetMode is a no-op: the baud rate is owned by whatever is at the other end of the socket.
func (tp *TcpPort) SetMode(mode *serial.Mode) error {
	return nil
}

// Read behaves like serial.Port.Read: when the read timeout expires it returns 0 bytes and a nil
// error.
func (tp *TcpPort) Read(p []byte) (int, error) {
	tp.mu.Lock()
	readTimeout := tp.readTimeout
	tp.mu.Unlock()

	deadline := time.Time{}
	if readTimeout != serial.NoTimeout {
		deadline = time.Now().Add(readTimeout)
	}
	if err := tp.conn.SetReadDeadline(deadline); err != nil {
		return 0, err
	}
	n, err := tp.conn.Read(p)
	if err != nil && errors.Is(err, os.ErrDeadlineExceeded) {
		return n, nil
	}
	return n, err
}

func (tp *TcpPort) Write(p []byte) (int, error) {
	return tp.conn.Write(p)
}

func (tp *TcpPort) Drain() error {
	return nil
}

func (tp *TcpPort) ResetInputBuffer() error {
	return ErrNotSupported
}

func (tp *TcpPort) ResetOutputBuffer() error {
	return ErrNotSupported
}

func (tp *TcpPort) SetDTR(dtr bool) error {
	return ErrNotSupported
}

func (tp *TcpPort) SetRTS(rts bool) error {
	return ErrNotSupported
}

func (tp *TcpPort) GetModemStatusBits() (*serial.ModemStatusBits, error) {
	return nil, ErrNotSupported
}

func (tp *TcpPort) SetReadTimeout(t time.Duration) error {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	tp.readTimeout = t
	return nil
}

func (tp *TcpPort) Close() error {
	return tp.conn.Close()
}

func (tp *TcpPort) Break(time.Duration) error {
	return ErrNotSupported
}

func (tp *TcpPort) String() string {
	return tp.conn.RemoteAddr().String()
}
