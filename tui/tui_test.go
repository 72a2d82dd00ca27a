package tui

import (
	"testing"

	"github.com/rivo/tview"
	"github.com/stretchr/testify/require"

	"github.com/fornellas/stabctl/client"
	"github.com/fornellas/stabctl/protocol"
)

func TestAcceptFilterValue(t *testing.T) {
	for text, expected := range map[string]bool{
		"":      true,
		".":     true,
		"0.":    true,
		"0.256": true,
		"1":     true,
		"1.5":   false,
		"-":     false,
		"-0.1":  false,
		"abc":   false,
	} {
		require.Equal(t, expected, acceptFilterValue(text, 0), text)
	}
}

func TestChannelsPrimitive(t *testing.T) {
	cp := NewChannelsPrimitive(tview.NewApplication())
	require.Contains(t, cp.GetText(true), "Waiting for data")

	cp.update(&protocol.ChannelReading{Channels: [protocol.ChannelCount]int{5, 95, 0, 95}})
	text := cp.GetText(true)
	require.Contains(t, text, "CH1")
	require.Contains(t, text, " 95%")
	require.NotContains(t, text, "CH4")
	require.Contains(t, text, "Autopilot: ON")

	cp.update(&protocol.ChannelReading{NoSignal: true})
	require.Contains(t, cp.GetText(true), "No signal")
}

func TestConnectionPrimitive(t *testing.T) {
	cp := NewConnectionPrimitive(tview.NewApplication(), "esp32.local:12345")
	cp.AddClient("Control")
	cp.AddClient("PWM stream")
	require.Equal(t, 4, cp.FixedSize())

	cp.states["PWM stream"] = client.StateFaulted
	cp.update()
	text := cp.GetText(true)
	require.Contains(t, text, "Control: Disconnected")
	require.Contains(t, text, "PWM stream: Faulted")
}

func TestSprintBar(t *testing.T) {
	bar := sprintBar(50, 10)
	require.Contains(t, bar, "█████")
	require.Contains(t, bar, "░░░░░")
}
