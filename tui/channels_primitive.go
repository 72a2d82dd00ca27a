package tui

import (
	"context"
	"fmt"

	"github.com/rivo/tview"

	iFmt "github.com/fornellas/stabctl/internal/fmt"
	"github.com/fornellas/stabctl/protocol"
)

const channelBarWidth = 20

// ChannelsPrimitive shows the PWM duty of each channel and the autopilot flag.
type ChannelsPrimitive struct {
	*tview.TextView
	app *tview.Application
}

func NewChannelsPrimitive(app *tview.Application) *ChannelsPrimitive {
	cp := &ChannelsPrimitive{
		app: app,
	}
	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	textView.SetBorder(true).SetTitle("PWM")
	cp.TextView = textView
	cp.update(nil)
	return cp
}

func (cp *ChannelsPrimitive) FixedSize() int {
	return protocol.ChannelCount + 3
}

func (cp *ChannelsPrimitive) update(channelReading *protocol.ChannelReading) {
	cp.TextView.Clear()
	if channelReading == nil {
		fmt.Fprintf(cp.TextView, "[gray]Waiting for data[-]\n")
		return
	}
	if channelReading.NoSignal {
		fmt.Fprintf(cp.TextView, "[red]No signal[-]\n")
		return
	}
	for i := range protocol.ChannelCount - 1 {
		value := channelReading.Channels[i]
		fmt.Fprintf(
			cp.TextView, "CH%d %s %s\n",
			i+1, sprintBar(value, channelBarWidth), tview.Escape(iFmt.SprintPercent(value)),
		)
	}
	autopilot := channelReading.Autopilot()
	fmt.Fprintf(
		cp.TextView, "\nAutopilot: [%s]%s[-] (%s)\n",
		getAutopilotColor(autopilot), autopilot,
		tview.Escape(iFmt.SprintPercent(channelReading.Channels[protocol.ChannelCount-1])),
	)
}

func (cp *ChannelsPrimitive) Worker(ctx context.Context, recordCh <-chan protocol.Record) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case record, ok := <-recordCh:
			if !ok {
				return nil
			}
			channelReading, ok := record.(*protocol.ChannelReading)
			if !ok {
				continue
			}
			cp.app.QueueUpdateDraw(func() {
				cp.update(channelReading)
			})
		}
	}
}
