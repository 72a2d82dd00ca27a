// Package relay publishes records decoded from the device to an MQTT broker as JSON.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fornellas/slogxt/log"

	"github.com/fornellas/stabctl/protocol"
)

// Publisher sends a payload to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Message is the JSON payload of each published record.
type Message struct {
	Time   time.Time       `json:"time"`
	Kind   string          `json:"kind"`
	Record protocol.Record `json:"record"`
	// Only set for channel readings.
	Autopilot string `json:"autopilot,omitempty"`
}

// Kind names the record type, and is the last element of its topic.
func Kind(record protocol.Record) (string, bool) {
	switch record.(type) {
	case *protocol.FilterParameters:
		return "params", true
	case *protocol.ScalarValue:
		return "value", true
	case *protocol.ChannelReading:
		return "pwm", true
	case *protocol.OrientationSample:
		return "orientation", true
	case *protocol.StatusToken:
		return "status", true
	default:
		return "", false
	}
}

type Relay struct {
	publisher   Publisher
	topicPrefix string
	now         func() time.Time
}

func New(publisher Publisher, topicPrefix string) *Relay {
	return &Relay{
		publisher:   publisher,
		topicPrefix: topicPrefix,
		now:         time.Now,
	}
}

// Topic returns where a record of the given kind is published.
func (r *Relay) Topic(kind string) string {
	return fmt.Sprintf("%s/%s", r.topicPrefix, kind)
}

// Publish sends a single record. Records with no kind are ignored.
func (r *Relay) Publish(ctx context.Context, record protocol.Record) error {
	kind, ok := Kind(record)
	if !ok {
		return nil
	}
	message := Message{
		Time:   r.now().UTC(),
		Kind:   kind,
		Record: record,
	}
	if channelReading, ok := record.(*protocol.ChannelReading); ok {
		message.Autopilot = channelReading.Autopilot().String()
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("relay: failed to marshal %s: %w", kind, err)
	}
	topic := r.Topic(kind)
	if err := r.publisher.Publish(ctx, topic, payload); err != nil {
		return fmt.Errorf("relay: failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Run publishes records until ctx is done or records is closed. Publish errors are logged and
// the record dropped.
func (r *Relay) Run(ctx context.Context, records <-chan protocol.Record) error {
	ctx, logger := log.MustWithGroupAttrs(ctx, "Relay", "topic-prefix", r.topicPrefix)
	logger.Info("Relaying")
	var count uint64
	for {
		select {
		case <-ctx.Done():
			logger.Info("Done", "published", count)
			return nil
		case record, ok := <-records:
			if !ok {
				logger.Info("Records closed", "published", count)
				return nil
			}
			if err := r.Publish(ctx, record); err != nil {
				logger.Warn("Dropping record", "err", err)
				continue
			}
			count++
		}
	}
}
