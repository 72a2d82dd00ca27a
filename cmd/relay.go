package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fornellas/slogxt/log"
	"github.com/spf13/cobra"

	"github.com/fornellas/stabctl/client"
	"github.com/fornellas/stabctl/protocol"
	"github.com/fornellas/stabctl/relay"
	"github.com/fornellas/stabctl/worker_manager"
)

var relayBroker string
var defaultRelayBroker = "tcp://localhost:1883"

var relayTopicPrefix string
var defaultRelayTopicPrefix = "stabctl"

var relayKind string
var defaultRelayKind = "cube"

var relayQoS uint8
var defaultRelayQoS uint8 = 0

var relayRetained bool
var defaultRelayRetained = false

var relayPollInterval time.Duration
var defaultRelayPollInterval = 50 * time.Millisecond

// relaySource returns the worker that produces records on c: a stream, or orientation polling
// when the grammar has no streams.
func relaySource(c *client.Client, kind protocol.StreamKind) (string, func(context.Context) error) {
	if c.Grammar().SupportsStreams() {
		return fmt.Sprintf("%s stream", kind), func(ctx context.Context) error {
			return followStream(ctx, c, kind, 0, func(protocol.Record) error { return nil })
		}
	}
	task := &client.PeriodicTask{
		Name:     "Orientation poll",
		Interval: relayPollInterval,
		Fn: func(ctx context.Context) error {
			_, err := c.QueryOrientation(ctx)
			return err
		},
	}
	return task.Name, task.Run
}

var RelayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Publish device records to an MQTT broker.",
	Long:  "Streams PWM channels or orientation from the device and publishes each record as JSON to <topic-prefix>/<kind> on an MQTT broker. With the serial grammar, orientation is polled instead.",
	Args:  cobra.NoArgs,
	Run: GetRunFn(func(cmd *cobra.Command, args []string) (err error) {
		ctx, logger := log.MustWithAttrs(
			cmd.Context(),
			"endpoint", GetEndpoint(),
			"broker", relayBroker,
			"topic-prefix", relayTopicPrefix,
			"kind", relayKind,
		)
		cmd.SetContext(ctx)

		kind, err := protocol.ParseStreamKind(relayKind)
		if err != nil {
			return err
		}
		if relayQoS > 2 {
			return fmt.Errorf("invalid QoS: %d", relayQoS)
		}

		publisher, err := relay.DialMQTT(ctx, relay.MQTTOptions{
			Broker:         relayBroker,
			ClientIDPrefix: relayTopicPrefix,
			QoS:            relayQoS,
			Retained:       relayRetained,
			Timeout:        timeout,
		})
		if err != nil {
			return err
		}
		defer publisher.Close()

		c, err := NewClient(ctx)
		if err != nil {
			return err
		}
		defer func() { err = errors.Join(err, c.Close(ctx)) }()

		records := c.SubscribeRecords("Relay", 100)
		r := relay.New(publisher, relayTopicPrefix)

		workerManager := worker_manager.NewWorkerManager()
		sourceName, sourceFn := relaySource(c, kind)
		workerManager.AddWorker(sourceName, sourceFn)
		workerManager.AddWorker("Relay", func(ctx context.Context) error {
			return r.Run(ctx, records)
		})

		logger.Info("Relaying")
		workerManager.Start(ctx)
		errMap := workerManager.Wait(ctx)
		for name, workerErr := range errMap {
			if errors.Is(workerErr, context.Canceled) {
				errMap[name] = nil
			}
		}
		return worker_manager.JoinErrors(errMap)
	}),
}

func init() {
	AddPortFlags(RelayCmd)

	RelayCmd.Flags().StringVar(&relayBroker, "broker", defaultRelayBroker, "MQTT broker URL")
	RelayCmd.Flags().StringVar(&relayTopicPrefix, "topic-prefix", defaultRelayTopicPrefix, "Topic prefix, records go to <topic-prefix>/<kind>; also used as client ID prefix")
	RelayCmd.Flags().StringVar(&relayKind, "kind", defaultRelayKind, "Stream to relay: pwm or cube")
	RelayCmd.Flags().Uint8Var(&relayQoS, "qos", defaultRelayQoS, "MQTT QoS: 0, 1 or 2")
	RelayCmd.Flags().BoolVar(&relayRetained, "retained", defaultRelayRetained, "Publish retained messages")
	RelayCmd.Flags().DurationVar(&relayPollInterval, "poll-interval", defaultRelayPollInterval, "Orientation poll interval, for the serial grammar")

	RootCmd.AddCommand(RelayCmd)

	resetFlagsFns = append(resetFlagsFns, func() {
		relayBroker = defaultRelayBroker
		relayTopicPrefix = defaultRelayTopicPrefix
		relayKind = defaultRelayKind
		relayQoS = defaultRelayQoS
		relayRetained = defaultRelayRetained
		relayPollInterval = defaultRelayPollInterval
	})
}
