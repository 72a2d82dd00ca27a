package worker_manager

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/fornellas/slogxt/log"
	"github.com/stretchr/testify/require"
)

func TestWorkerManager(t *testing.T) {
	ctx := log.WithLogger(t.Context(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	wm := NewWorkerManager()
	producerErr := errors.New("connection lost")
	producerFail := make(chan struct{})
	wm.AddWorker("producer", func(ctx context.Context) error {
		select {
		case <-producerFail:
			return producerErr
		case <-ctx.Done():
			return nil
		}
	})
	wm.AddWorker("consumer", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	wm.AddWorker("panics", func(ctx context.Context) error {
		<-ctx.Done()
		panic("boom")
	})
	wm.AddWorker("main", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	wm.Start(ctx)
	close(producerFail)
	errMap := wm.Wait(ctx)

	require.ErrorIs(t, errMap["producer"], producerErr)
	require.NoError(t, errMap["consumer"])
	require.ErrorContains(t, errMap["panics"], "panic: boom")
	require.ErrorIs(t, errMap["main"], context.Canceled)

	err := JoinErrors(errMap)
	require.ErrorIs(t, err, producerErr)
	require.ErrorContains(t, err, "producer: connection lost")
	require.NoError(t, JoinErrors(map[string]error{"a": nil}))
}
