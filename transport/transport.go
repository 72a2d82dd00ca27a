// Package transport carries newline delimited lines over a serial.Port, which may be a real
// serial port or a TCP connection.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
)

// MaxLineLength is the longest line accepted from the device, excluding the newline.
const MaxLineLength = 4096

// PortReadTimeout is how long a single port read blocks. It bounds how long ReadLine takes to
// observe context cancellation, its deadline and Close.
var PortReadTimeout = 100 * time.Millisecond

var (
	ErrTimeout     = errors.New("transport: timeout")
	ErrClosed      = errors.New("transport: closed")
	ErrLineTooLong = errors.New("transport: line too long")
)

// OpenPortFn opens a port with the given mode.
type OpenPortFn func(context.Context, *serial.Mode) (serial.Port, error)

// Transport is a line oriented connection. ReadLine must be called from a single goroutine at a
// time; Write and Close are safe from any goroutine.
type Transport struct {
	port      serial.Port
	writeMu   sync.Mutex
	buf       []byte
	discard   bool
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Open opens a port with openPortFn and returns a Transport over it.
func Open(ctx context.Context, openPortFn OpenPortFn, mode *serial.Mode) (*Transport, error) {
	port, err := openPortFn(ctx, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open error: %w", err)
	}

	// we need to set this to allow polling reads to support context cancellation / timeout
	if err := port.SetReadTimeout(PortReadTimeout); err != nil {
		closeErr := port.Close()
		if closeErr != nil {
			closeErr = fmt.Errorf("transport: close error: %w", closeErr)
		}
		return nil, errors.Join(fmt.Errorf("transport: error setting read timeout: %w", err), closeErr)
	}

	return New(port), nil
}

// New wraps a port that already has a read timeout set.
func New(port serial.Port) *Transport {
	return &Transport{port: port}
}

func (t *Transport) popLine() (string, bool) {
	i := bytes.IndexByte(t.buf, '\n')
	if i < 0 {
		return "", false
	}
	line := t.buf[:i]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	str := string(line)
	t.buf = t.buf[i+1:]
	return str, true
}

// ReadLine returns the next line, without its line terminator. Partial data is kept across calls
// so a line fragmented over many reads, or over a timeout, is reassembled. A timeout of zero or
// less waits until ctx is done.
//
//gocyclo:ignore
func (t *Transport) ReadLine(ctx context.Context, timeout time.Duration) (string, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	b := make([]byte, 256)
	for {
		for {
			line, ok := t.popLine()
			if !ok {
				break
			}
			if t.discard {
				t.discard = false
				continue
			}
			return line, nil
		}
		if len(t.buf) > MaxLineLength {
			t.buf = nil
			t.discard = true
			return "", fmt.Errorf("%w: over %d bytes", ErrLineTooLong, MaxLineLength)
		}

		if t.closed.Load() {
			return "", ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("transport: read line: context error: %w", err)
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return "", ErrTimeout
		}

		n, err := t.port.Read(b)
		if n > 0 {
			t.buf = append(t.buf, b[:n]...)
		}
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if t.closed.Load() || errors.Is(err, io.EOF) {
				return "", ErrClosed
			}
			return "", fmt.Errorf("transport: read error: %w", err)
		}
	}
}

// Write writes p fully or returns an error.
func (t *Transport) Write(p []byte) error {
	if t.closed.Load() {
		return ErrClosed
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	n, err := t.port.Write(p)
	if err != nil {
		if t.closed.Load() {
			return ErrClosed
		}
		return fmt.Errorf("transport: write error: %w", err)
	}
	if n != len(p) {
		return fmt.Errorf("transport: short write: wrote %d of %d bytes", n, len(p))
	}
	return nil
}

// Close closes the port. Subsequent calls return the first call result.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		if err := t.port.Close(); err != nil {
			t.closeErr = fmt.Errorf("transport: close error: %w", err)
		}
	})
	return t.closeErr
}

// Closed reports whether Close was called.
func (t *Transport) Closed() bool {
	return t.closed.Load()
}
