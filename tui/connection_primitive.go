package tui

import (
	"context"
	"fmt"

	"github.com/rivo/tview"

	"github.com/fornellas/stabctl/client"
)

// ConnectionPrimitive shows the state of each client connection.
type ConnectionPrimitive struct {
	*tview.TextView
	app    *tview.Application
	names  []string
	states map[string]client.State
}

func NewConnectionPrimitive(app *tview.Application, address string) *ConnectionPrimitive {
	cp := &ConnectionPrimitive{
		app:    app,
		states: map[string]client.State{},
	}
	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	textView.SetBorder(true).SetTitle(fmt.Sprintf("Connection: %s", tview.Escape(address)))
	cp.TextView = textView
	return cp
}

func (cp *ConnectionPrimitive) FixedSize() int {
	return len(cp.names) + 2
}

// AddClient registers a line for the named connection; must be called before the app runs.
func (cp *ConnectionPrimitive) AddClient(name string) {
	cp.names = append(cp.names, name)
	cp.states[name] = client.StateDisconnected
	cp.update()
}

func (cp *ConnectionPrimitive) update() {
	cp.TextView.Clear()
	for _, name := range cp.names {
		fmt.Fprintf(cp.TextView, "%s: %s\n", name, sprintState(cp.states[name]))
	}
}

// Worker follows state changes of the named connection.
func (cp *ConnectionPrimitive) Worker(ctx context.Context, name string, stateCh <-chan client.State) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case state, ok := <-stateCh:
			if !ok {
				return nil
			}
			cp.app.QueueUpdateDraw(func() {
				cp.states[name] = state
				cp.update()
			})
		}
	}
}
