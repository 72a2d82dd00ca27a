package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fornellas/slogxt/log"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"github.com/fornellas/stabctl/internal/fakeport"
	"github.com/fornellas/stabctl/protocol"
)

func testContext(t *testing.T) context.Context {
	return log.WithLogger(t.Context(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type fakeDevice struct {
	mu        sync.Mutex
	ports     []*fakeport.Port
	responder fakeport.Responder
	openErr   error
}

func newFakeDevice(responses map[string][]string) *fakeDevice {
	return &fakeDevice{
		responder: func(line string) []string {
			return responses[line]
		},
	}
}

func (d *fakeDevice) open(ctx context.Context, mode *serial.Mode) (serial.Port, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	port := fakeport.NewPort(d.responder)
	d.ports = append(d.ports, port)
	return port, nil
}

func (d *fakeDevice) port(i int) *fakeport.Port {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ports[i]
}

func (d *fakeDevice) portCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.ports)
}

func newConnectedClient(t *testing.T, device *fakeDevice, options Options) (context.Context, *Client) {
	ctx := testContext(t)
	c := New(device.open, options)
	require.NoError(t, c.Connect(ctx))
	require.Equal(t, StateConnected, c.State())
	t.Cleanup(func() { c.Close(ctx) })
	return ctx, c
}

func TestGetFilterParameters(t *testing.T) {
	device := newFakeDevice(map[string][]string{
		"get": {"0.300,0.080,0.700\r\n"},
	})
	ctx, c := newConnectedClient(t, device, Options{})

	_, ok := c.LastFilterParameters()
	require.False(t, ok)

	p, err := c.GetFilterParameters(ctx)
	require.NoError(t, err)
	require.Equal(t, protocol.FilterParameters{Accel: 0.3, Gyro: 0.08, Complementary: 0.7}, p)

	cached, ok := c.LastFilterParameters()
	require.True(t, ok)
	require.Equal(t, p, cached)
	require.Equal(t, "get\n", device.port(0).Written())
}

func TestRequestDisconnected(t *testing.T) {
	ctx := testContext(t)
	c := New(newFakeDevice(nil).open, Options{})
	_, err := c.Request(ctx, protocol.EncodeGet())
	require.ErrorIs(t, err, ErrDisconnected)
}

func TestConnectError(t *testing.T) {
	ctx := testContext(t)
	device := newFakeDevice(nil)
	device.openErr = errors.New("no such device")
	c := New(device.open, Options{})

	states := c.SubscribeState("test", 10)
	require.ErrorIs(t, c.Connect(ctx), ErrConnection)
	require.Equal(t, StateDisconnected, c.State())
	require.Equal(t, StateConnecting, <-states)
	require.Equal(t, StateDisconnected, <-states)
}

func TestRequestTimeoutFaultsAndReconnects(t *testing.T) {
	var respond atomic.Bool
	device := &fakeDevice{
		responder: func(line string) []string {
			if line == "get" && respond.Load() {
				return []string{"0.1,0.2,0.3\n"}
			}
			return nil
		},
	}
	ctx, c := newConnectedClient(t, device, Options{Timeout: 200 * time.Millisecond})
	states := c.SubscribeState("test", 10)

	_, err := c.Request(ctx, protocol.EncodeGet())
	require.ErrorIs(t, err, ErrTimeout)
	require.Equal(t, StateFaulted, c.State())
	require.True(t, device.port(0).Closed())
	require.Equal(t, StateFaulted, <-states)

	respond.Store(true)
	p, err := c.GetFilterParameters(ctx)
	require.NoError(t, err)
	require.Equal(t, protocol.FilterParameters{Accel: 0.1, Gyro: 0.2, Complementary: 0.3}, p)
	require.Equal(t, StateConnected, c.State())
	require.Equal(t, 2, device.portCount())
	require.Equal(t, StateConnecting, <-states)
	require.Equal(t, StateConnected, <-states)
}

// lateBlankLinePort answers its first read with a blank line, only after delay.
type lateBlankLinePort struct {
	*fakeport.Port
	delay time.Duration
	once  sync.Once
}

func (p *lateBlankLinePort) Read(b []byte) (int, error) {
	late := false
	p.once.Do(func() { late = true })
	if late {
		time.Sleep(p.delay)
		return copy(b, "\n"), nil
	}
	return p.Port.Read(b)
}

func TestRequestTimeoutAfterLateBlankLine(t *testing.T) {
	ctx, cancel := context.WithTimeout(testContext(t), 3*time.Second)
	defer cancel()
	c := New(func(ctx context.Context, mode *serial.Mode) (serial.Port, error) {
		return &lateBlankLinePort{Port: fakeport.NewPort(nil), delay: 300 * time.Millisecond}, nil
	}, Options{Timeout: 200 * time.Millisecond})
	require.NoError(t, c.Connect(ctx))
	t.Cleanup(func() { c.Close(ctx) })

	start := time.Now()
	_, err := c.Request(ctx, protocol.EncodeGet())
	require.ErrorIs(t, err, ErrTimeout)
	require.Less(t, time.Since(start), time.Second)
	require.Equal(t, StateFaulted, c.State())
}

func TestDeviceError(t *testing.T) {
	device := newFakeDevice(map[string][]string{
		"save": {"ERROR\n"},
	})
	ctx, c := newConnectedClient(t, device, Options{})

	err := c.Save(ctx)
	var deviceError *protocol.DeviceError
	require.True(t, errors.As(err, &deviceError), err)
	require.Equal(t, "ERROR", deviceError.Token)
	require.Equal(t, StateConnected, c.State())
}

func TestProtocolError(t *testing.T) {
	device := newFakeDevice(map[string][]string{
		"get":  {"\n", "hello\n"},
		"save": {"OK\n"},
	})
	ctx, c := newConnectedClient(t, device, Options{})

	_, err := c.GetFilterParameters(ctx)
	require.ErrorIs(t, err, ErrProtocol)
	require.Equal(t, StateConnected, c.State())

	require.NoError(t, c.Save(ctx))
}

func TestSetFilter(t *testing.T) {
	device := newFakeDevice(map[string][]string{
		"setA0.256": {"OK\n"},
		"get":       {"0.300,0.080,0.700\n"},
	})
	ctx, c := newConnectedClient(t, device, Options{})

	require.NoError(t, c.SetFilter(ctx, protocol.FilterAccel, 0.256))
	require.Equal(t, "setA0.256\n", device.port(0).Written())

	_, err := c.GetFilterParameters(ctx)
	require.NoError(t, err)
	require.Error(t, c.SetFilter(ctx, protocol.FilterGyro, 2))
}

func TestPushFilterParameters(t *testing.T) {
	device := newFakeDevice(map[string][]string{
		"setA0.300": {"OK\n"},
		"setG0.080": {"OK\n"},
		"setC0.700": {"OK\n"},
		"save":      {"OK\n"},
	})
	ctx, c := newConnectedClient(t, device, Options{})

	p := protocol.FilterParameters{Accel: 0.3, Gyro: 0.08, Complementary: 0.7}
	require.NoError(t, c.PushFilterParameters(ctx, p))
	require.Equal(t, "setA0.300\nsetG0.080\nsetC0.700\n", device.port(0).Written())
	cached, ok := c.LastFilterParameters()
	require.True(t, ok)
	require.Equal(t, p, cached)

	require.NoError(t, c.Save(ctx))
	require.True(t, strings.HasSuffix(device.port(0).Written(), "save\n"))
}

func TestSerialGrammar(t *testing.T) {
	device := newFakeDevice(map[string][]string{
		"?": {"params:0.3000,0.0800,0.7000\n"},
		".": {"1.5,-2.5,90\n"},
	})
	ctx, c := newConnectedClient(t, device, Options{Grammar: protocol.GrammarSerial})

	require.NoError(t, c.SetFilter(ctx, protocol.FilterGyro, 0.1))
	require.Equal(t, "?\np0.3000,0.1000,0.7000\n", device.port(0).Written())

	s, err := c.QueryOrientation(ctx)
	require.NoError(t, err)
	require.Equal(t, protocol.OrientationSample{Roll: 1.5, Pitch: -2.5, Yaw: 90, HasYaw: true}, s)

	require.NoError(t, c.Calibrate(ctx))
	require.NoError(t, c.ZeroYaw(ctx))
	require.NoError(t, c.Save(ctx))
	require.NoError(t, c.EnterStandalone(ctx))
	require.True(t, strings.HasSuffix(device.port(0).Written(), ".\nc\nz\nf\nx\n"))

	_, err = c.StartStream(ctx, protocol.StreamKindPWM, nil)
	require.ErrorIs(t, err, ErrUnsupported)
	_, err = c.GetScalar(ctx)
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestScalarGrammar(t *testing.T) {
	device := newFakeDevice(map[string][]string{
		"get":     {"0.25\n"},
		"set0.50": {"OK\n"},
	})
	ctx, c := newConnectedClient(t, device, Options{Grammar: protocol.GrammarWiFiScalar})

	v, err := c.GetScalar(ctx)
	require.NoError(t, err)
	require.Equal(t, 0.25, v)
	require.NoError(t, c.SetScalar(ctx, 0.5))

	_, err = c.GetFilterParameters(ctx)
	require.ErrorIs(t, err, ErrUnsupported)
	require.ErrorIs(t, c.Calibrate(ctx), ErrUnsupported)
}

func TestPWMStream(t *testing.T) {
	device := newFakeDevice(map[string][]string{
		"startPWMStream": {"10,20,30\n", "garbage\n", "5,95,0,95\n"},
		"get":            {"0.300,0.080,0.700\n"},
	})
	ctx, c := newConnectedClient(t, device, Options{StreamPollInterval: 20 * time.Millisecond})
	records := c.SubscribeRecords("test", 10)

	readings := make(chan protocol.ChannelReading, 10)
	stream, err := c.StartStream(ctx, protocol.StreamKindPWM, func(record protocol.Record) {
		readings <- *record.(*protocol.ChannelReading)
	})
	require.NoError(t, err)

	first := <-readings
	require.Equal(t, [protocol.ChannelCount]int{10, 20, 30, 0}, first.Channels)
	require.Equal(t, protocol.AutopilotOff, first.Autopilot())

	second := <-readings
	require.Equal(t, [protocol.ChannelCount]int{5, 95, 0, 95}, second.Channels)
	require.Equal(t, protocol.AutopilotOn, second.Autopilot())

	require.Equal(t, &first, <-records)
	require.Equal(t, &second, <-records)

	cached, ok := c.LastChannelReading()
	require.True(t, ok)
	require.Equal(t, second, cached)

	_, err = c.Request(ctx, protocol.EncodeGet())
	require.ErrorIs(t, err, ErrStreamActive)
	_, err = c.StartStream(ctx, protocol.StreamKindCube, nil)
	require.ErrorIs(t, err, ErrStreamActive)

	require.NoError(t, stream.Stop(ctx))
	require.NoError(t, stream.Err())
	<-stream.Done()
	require.Equal(t, StateDisconnected, c.State())
	require.True(t, device.port(0).Closed())

	_, err = c.GetFilterParameters(ctx)
	require.NoError(t, err)
	require.Equal(t, StateConnected, c.State())
	require.Equal(t, 2, device.portCount())
}

func TestCubeStreamStop(t *testing.T) {
	device := newFakeDevice(map[string][]string{
		"startCubeStream": {"1,2\n"},
	})
	ctx, c := newConnectedClient(t, device, Options{StreamPollInterval: 20 * time.Millisecond})

	samples := make(chan protocol.Record, 10)
	stream, err := c.StartStream(ctx, protocol.StreamKindCube, func(record protocol.Record) {
		samples <- record
	})
	require.NoError(t, err)
	require.Equal(t, &protocol.OrientationSample{Roll: 1, Pitch: 2}, <-samples)

	require.NoError(t, stream.Stop(ctx))
	require.Equal(t, "startCubeStream\nstopCubeStream\n", device.port(0).Written())
}

func TestStreamConnectionLost(t *testing.T) {
	device := newFakeDevice(nil)
	ctx, c := newConnectedClient(t, device, Options{StreamPollInterval: 20 * time.Millisecond})

	stream, err := c.StartStream(ctx, protocol.StreamKindPWM, nil)
	require.NoError(t, err)

	require.NoError(t, device.port(0).Close())
	select {
	case <-stream.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end")
	}
	require.ErrorIs(t, stream.Err(), ErrConnection)
	require.Equal(t, StateFaulted, c.State())
}

func TestClose(t *testing.T) {
	device := newFakeDevice(nil)
	ctx, c := newConnectedClient(t, device, Options{})
	states := c.SubscribeState("test", 10)

	require.NoError(t, c.Close(ctx))
	require.NoError(t, c.Close(ctx))
	require.Equal(t, StateDisconnected, c.State())
	require.True(t, device.port(0).Closed())

	require.Equal(t, StateDisconnected, <-states)
	_, ok := <-states
	require.False(t, ok)

	_, err := c.Request(ctx, protocol.EncodeGet())
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, c.Connect(ctx), ErrClosed)
}

func TestPeriodicTask(t *testing.T) {
	ctx, cancel := context.WithCancel(testContext(t))
	var count atomic.Int32
	task := PeriodicTask{
		Name:     "count",
		Interval: 10 * time.Millisecond,
		Fn: func(context.Context) error {
			if count.Add(1) == 2 {
				return errors.New("ignored")
			}
			return nil
		},
	}

	errCh := make(chan error, 1)
	go func() { errCh <- task.Run(ctx) }()

	require.Eventually(t, func() bool { return count.Load() >= 5 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-errCh)
}
