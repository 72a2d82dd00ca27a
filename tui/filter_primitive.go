package tui

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/fornellas/slogxt/log"
	"github.com/rivo/tview"

	"github.com/fornellas/stabctl/client"
	"github.com/fornellas/stabctl/protocol"
)

// FilterPrimitive reads, applies and saves the filter coefficients.
type FilterPrimitive struct {
	*tview.Form
	ctx         context.Context
	app         *tview.Application
	client      *client.Client
	inputFields map[protocol.Filter]*tview.InputField
	valueField  *tview.InputField
	busy        atomic.Bool
}

func NewFilterPrimitive(ctx context.Context, app *tview.Application, c *client.Client) *FilterPrimitive {
	ctx, _ = log.MustWithGroup(ctx, "FilterPrimitive")
	fp := &FilterPrimitive{
		ctx:         ctx,
		app:         app,
		client:      c,
		inputFields: map[protocol.Filter]*tview.InputField{},
	}

	form := tview.NewForm()
	form.SetBorder(true).SetTitle("Filter")
	form.SetButtonsAlign(tview.AlignCenter)
	const width = len("0.0000")

	if c.Grammar() == protocol.GrammarWiFiScalar {
		form.AddInputField("Value", "", width, acceptFilterValue, nil)
		fp.valueField = form.GetFormItem(form.GetFormItemCount() - 1).(*tview.InputField)
	} else {
		for _, filter := range protocol.Filters {
			form.AddInputField(filter.String(), "", width, acceptFilterValue, nil)
			fp.inputFields[filter] = form.GetFormItem(form.GetFormItemCount() - 1).(*tview.InputField)
		}
	}

	form.AddButton("Read", func() { fp.run("Read", fp.read) })
	form.AddButton("Apply", func() { fp.run("Apply", fp.apply) })
	form.AddButton("Save", func() { fp.run("Save", fp.client.Save) })
	if c.Grammar().SupportsMotionCommands() {
		form.AddButton("Calibrate", func() { fp.run("Calibrate", fp.client.Calibrate) })
		form.AddButton("Zero yaw", func() { fp.run("Zero yaw", fp.client.ZeroYaw) })
	}
	fp.Form = form

	return fp
}

func (fp *FilterPrimitive) FixedSize() int {
	if fp.valueField != nil {
		return 7
	}
	return 9
}

// run calls fn away from the app goroutine, one action at a time.
func (fp *FilterPrimitive) run(name string, fn func(context.Context) error) {
	logger := log.MustLogger(fp.ctx)
	if !fp.busy.CompareAndSwap(false, true) {
		logger.Warn("Busy, ignoring", "action", name)
		return
	}
	go func() {
		defer fp.busy.Store(false)
		logger.Info("Running", "action", name)
		if err := fn(fp.ctx); err != nil {
			logger.Error("Failed", "action", name, "err", err)
			return
		}
		logger.Info("Done", "action", name)
	}()
}

func (fp *FilterPrimitive) read(ctx context.Context) error {
	// fields are updated by Worker
	var err error
	switch fp.client.Grammar() {
	case protocol.GrammarWiFiScalar:
		_, err = fp.client.GetScalar(ctx)
	case protocol.GrammarSerial:
		_, err = fp.client.QueryParameters(ctx)
	default:
		_, err = fp.client.GetFilterParameters(ctx)
	}
	return err
}

func parseText(text, label string) (float64, error) {
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %#v", label, text)
	}
	return value, nil
}

// getTexts reads the fields from the app goroutine.
func (fp *FilterPrimitive) getTexts() map[string]string {
	texts := map[string]string{}
	done := make(chan struct{})
	fp.app.QueueUpdate(func() {
		defer close(done)
		if fp.valueField != nil {
			texts["value"] = fp.valueField.GetText()
		}
		for filter, inputField := range fp.inputFields {
			texts[filter.String()] = inputField.GetText()
		}
	})
	<-done
	return texts
}

func (fp *FilterPrimitive) apply(ctx context.Context) error {
	texts := fp.getTexts()
	if fp.valueField != nil {
		value, err := parseText(texts["value"], "value")
		if err != nil {
			return err
		}
		return fp.client.SetScalar(ctx, value)
	}
	var p protocol.FilterParameters
	for _, filter := range protocol.Filters {
		value, err := parseText(texts[filter.String()], filter.String())
		if err != nil {
			return err
		}
		p.Set(filter, value)
	}
	return fp.client.PushFilterParameters(ctx, p)
}

func (fp *FilterPrimitive) setFilterParameters(p protocol.FilterParameters) {
	for filter, inputField := range fp.inputFields {
		inputField.SetText(sprintFilterValue(p.Get(filter)))
	}
}

// Worker fills the fields whenever filter parameters are received.
func (fp *FilterPrimitive) Worker(ctx context.Context, recordCh <-chan protocol.Record) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case record, ok := <-recordCh:
			if !ok {
				return nil
			}
			switch r := record.(type) {
			case *protocol.FilterParameters:
				p := *r
				fp.app.QueueUpdateDraw(func() { fp.setFilterParameters(p) })
			case *protocol.ScalarValue:
				if fp.valueField != nil {
					value := r.Value
					fp.app.QueueUpdateDraw(func() { fp.valueField.SetText(sprintFilterValue(value)) })
				}
			}
		}
	}
}
