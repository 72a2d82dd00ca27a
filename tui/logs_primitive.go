package tui

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/rivo/tview"
)

type LogsPrimitive struct {
	*tview.TextView
	app *tview.Application
}

func NewLogsPrimitive(app *tview.Application) *LogsPrimitive {
	lp := &LogsPrimitive{
		app: app,
	}

	logsTextView := tview.NewTextView()
	logsTextView.SetBorder(true)
	logsTextView.SetTitle("Logs")
	logsTextView.SetDynamicColors(true)
	logsTextView.SetScrollable(true)
	logsTextView.SetWrap(true)
	logsTextView.SetMaxLines(1000)
	logsTextView.SetChangedFunc(func() {
		lp.app.Draw()
	})
	lp.TextView = logsTextView

	return lp
}

// viewHandler writes records to the logs view with the level of the console handler. Once
// disabled, after the app stops, records are dropped as the view is no longer drawn.
type viewHandler struct {
	slog.Handler
	levelHandler slog.Handler
	disabled     *atomic.Bool
}

func newViewHandler(handler, levelHandler slog.Handler) *viewHandler {
	return &viewHandler{
		Handler:      handler,
		levelHandler: levelHandler,
		disabled:     &atomic.Bool{},
	}
}

func (h *viewHandler) Disable() {
	h.disabled.Store(true)
}

func (h *viewHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.disabled.Load() {
		return nil
	}
	return h.Handler.Handle(ctx, r)
}

func (h *viewHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.disabled.Load() {
		return false
	}
	return h.levelHandler.Enabled(ctx, level)
}

func (h *viewHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &viewHandler{
		Handler:      h.Handler.WithAttrs(attrs),
		levelHandler: h.levelHandler.WithAttrs(attrs),
		disabled:     h.disabled,
	}
}

func (h *viewHandler) WithGroup(name string) slog.Handler {
	return &viewHandler{
		Handler:      h.Handler.WithGroup(name),
		levelHandler: h.levelHandler.WithGroup(name),
		disabled:     h.disabled,
	}
}
