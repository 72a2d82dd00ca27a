package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/fornellas/slogxt/log"
	"github.com/stretchr/testify/require"

	"github.com/fornellas/stabctl/protocol"
)

type published struct {
	topic   string
	payload []byte
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []published
	err      error
}

func (p *fakePublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, published{topic: topic, payload: payload})
	return nil
}

func (p *fakePublisher) Messages() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published{}, p.messages...)
}

func TestPublish(t *testing.T) {
	ctx := log.WithLogger(t.Context(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	publisher := &fakePublisher{}
	relay := New(publisher, "stabilizer")
	relay.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	require.NoError(t, relay.Publish(ctx, &protocol.ChannelReading{Channels: [protocol.ChannelCount]int{5, 95, 0, 95}}))
	require.NoError(t, relay.Publish(ctx, &protocol.Unrecognized{Line: "garbage"}))

	messages := publisher.Messages()
	require.Len(t, messages, 1)
	require.Equal(t, "stabilizer/pwm", messages[0].topic)
	require.JSONEq(t, `{
		"time": "2026-01-02T03:04:05Z",
		"kind": "pwm",
		"record": {"channels": [5, 95, 0, 95], "no_signal": false},
		"autopilot": "ON"
	}`, string(messages[0].payload))

	publisher.err = errors.New("broker down")
	require.Error(t, relay.Publish(ctx, &protocol.FilterParameters{}))
}

func TestRun(t *testing.T) {
	ctx := log.WithLogger(t.Context(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	publisher := &fakePublisher{}
	relay := New(publisher, "s")

	records := make(chan protocol.Record, 3)
	records <- &protocol.FilterParameters{Accel: 0.3, Gyro: 0.08, Complementary: 0.7}
	records <- &protocol.OrientationSample{Roll: 1, Pitch: 2}
	records <- &protocol.StatusToken{Token: "OK"}
	close(records)

	require.NoError(t, relay.Run(ctx, records))

	messages := publisher.Messages()
	require.Len(t, messages, 3)
	require.Equal(t, "s/params", messages[0].topic)
	require.Equal(t, "s/orientation", messages[1].topic)
	require.Equal(t, "s/status", messages[2].topic)

	var message struct {
		Kind   string
		Record protocol.OrientationSample
	}
	require.NoError(t, json.Unmarshal(messages[1].payload, &message))
	require.Equal(t, "orientation", message.Kind)
	require.Equal(t, protocol.OrientationSample{Roll: 1, Pitch: 2}, message.Record)
}
