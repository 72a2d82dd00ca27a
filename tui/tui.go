// Package tui is a terminal control panel for the stabilizer: connection state, filter
// coefficients, PWM channels and a live orientation cube.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/fornellas/slogxt/log"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/fornellas/stabctl/client"
	"github.com/fornellas/stabctl/protocol"
	"github.com/fornellas/stabctl/transport"
	"github.com/fornellas/stabctl/worker_manager"
)

var (
	// How often a stopped stream is started again.
	StreamRestartInterval = time.Second
	// How often orientation is polled when the firmware has no streams.
	OrientationPollInterval = 50 * time.Millisecond
)

type TuiOptions struct {
	// Shown in the connection panel.
	Address string
	YawMode bool
	// Draw a flat board instead of a cube.
	Board     bool
	AppLogger *slog.Logger
}

type Tui struct {
	openPortFn    transport.OpenPortFn
	clientOptions client.Options
	options       *TuiOptions
}

func NewTui(openPortFn transport.OpenPortFn, clientOptions client.Options, options *TuiOptions) *Tui {
	if options == nil {
		options = &TuiOptions{}
	}
	return &Tui{
		openPortFn:    openPortFn,
		clientOptions: clientOptions,
		options:       options,
	}
}

// streamTask keeps a stream running on its own connection; when the stream ends it is started
// again on the next tick.
func streamTask(c *client.Client, kind protocol.StreamKind) *client.PeriodicTask {
	var stream *client.Stream
	return &client.PeriodicTask{
		Name:     fmt.Sprintf("%s stream", kind),
		Interval: StreamRestartInterval,
		Fn: func(ctx context.Context) error {
			if stream != nil {
				select {
				case <-stream.Done():
					err := stream.Err()
					stream = nil
					if err != nil {
						return fmt.Errorf("stream ended: %w", err)
					}
				default:
					return nil
				}
			}
			if c.State() == client.StateDisconnected {
				if err := c.Connect(ctx); err != nil {
					return err
				}
			}
			s, err := c.StartStream(ctx, kind, nil)
			if err != nil {
				return err
			}
			stream = s
			return nil
		},
	}
}

func orientationPollTask(c *client.Client) *client.PeriodicTask {
	return &client.PeriodicTask{
		Name:     "orientation poll",
		Interval: OrientationPollInterval,
		Fn: func(ctx context.Context) error {
			if c.State() == client.StateDisconnected {
				return nil
			}
			_, err := c.QueryOrientation(ctx)
			return err
		},
	}
}

//gocyclo:ignore
func (t *Tui) Run(ctx context.Context) (err error) {
	// Application
	app := tview.NewApplication()
	app.EnableMouse(true)

	// Context & Logging
	consoleCtx, consoleLogger := log.MustWithGroup(ctx, "Tui")
	logsPrimitive := NewLogsPrimitive(app)
	appHandler := newViewHandler(
		log.NewTerminalTreeHandler(
			tview.ANSIWriter(logsPrimitive),
			&log.TerminalHandlerOptions{
				// tview.TextView does not handle emojis correctly: drawing is corrupted.
				DisableGroupEmoji: true,
				ForceColor:        true,
			},
		),
		consoleLogger.Handler(),
	)
	appHandlers := []slog.Handler{
		appHandler,
	}
	if t.options.AppLogger != nil {
		appHandlers = append(appHandlers, t.options.AppLogger.Handler())
	}
	appLogger := slog.New(log.NewMultiHandler(appHandlers...))
	appCtx := log.WithLogger(consoleCtx, appLogger)

	grammar := t.clientOptions.Grammar
	if grammar == "" {
		grammar = protocol.GrammarWiFi
	}

	// Clients
	clients := map[string]*client.Client{}
	var clientNames []string
	addClient := func(name string) *client.Client {
		c := client.New(t.openPortFn, t.clientOptions)
		clients[name] = c
		clientNames = append(clientNames, name)
		return c
	}
	controlClient := addClient("Control")
	var pwmClient, cubeClient *client.Client
	if grammar.SupportsStreams() {
		pwmClient = addClient("PWM stream")
		cubeClient = addClient("Cube stream")
	}
	defer func() {
		for _, name := range clientNames {
			err = errors.Join(err, clients[name].Close(consoleCtx))
		}
	}()

	connectionPrimitive := NewConnectionPrimitive(app, t.options.Address)
	stateChs := map[string]<-chan client.State{}
	for _, name := range clientNames {
		connectionPrimitive.AddClient(name)
		stateChs[name] = clients[name].SubscribeState("ConnectionPrimitive", 10)
	}

	if err := controlClient.Connect(consoleCtx); err != nil {
		return err
	}

	// WorkerManager
	workerManager := worker_manager.NewWorkerManager()

	subscriberChSize := 50

	// ConnectionPrimitive
	for _, name := range clientNames {
		stateCh := stateChs[name]
		workerManager.AddWorker(fmt.Sprintf("ConnectionPrimitive(%s)", name), func(ctx context.Context) error {
			return connectionPrimitive.Worker(ctx, name, stateCh)
		})
	}

	// FilterPrimitive
	filterPrimitive := NewFilterPrimitive(appCtx, app, controlClient)
	filterRecordCh := controlClient.SubscribeRecords("FilterPrimitive", subscriberChSize)
	workerManager.AddWorker("FilterPrimitive", func(ctx context.Context) error {
		return filterPrimitive.Worker(ctx, filterRecordCh)
	})

	// ChannelsPrimitive
	var channelsPrimitive *ChannelsPrimitive
	if pwmClient != nil {
		channelsPrimitive = NewChannelsPrimitive(app)
		channelsRecordCh := pwmClient.SubscribeRecords("ChannelsPrimitive", subscriberChSize)
		workerManager.AddWorker("ChannelsPrimitive", func(ctx context.Context) error {
			return channelsPrimitive.Worker(ctx, channelsRecordCh)
		})
		workerManager.AddWorker("PWM stream", streamTask(pwmClient, protocol.StreamKindPWM).Run)
	}

	// CubePrimitive
	var cubePrimitive *CubePrimitive
	if grammar.SupportsStreams() || grammar.SupportsMotionCommands() {
		cubePrimitive = NewCubePrimitive(app, t.options.YawMode, t.options.Board)
		orientationClient := controlClient
		if cubeClient != nil {
			orientationClient = cubeClient
		}
		cubeRecordCh := orientationClient.SubscribeRecords("CubePrimitive", subscriberChSize)
		workerManager.AddWorker("CubePrimitive", func(ctx context.Context) error {
			return cubePrimitive.Worker(ctx, cubeRecordCh)
		})
		if cubeClient != nil {
			workerManager.AddWorker("Cube stream", streamTask(cubeClient, protocol.StreamKindCube).Run)
		} else {
			workerManager.AddWorker("Orientation poll", orientationPollTask(controlClient).Run)
		}
	}

	// Layout
	leftFlex := tview.NewFlex().SetDirection(tview.FlexRow)
	leftFlex.AddItem(connectionPrimitive, connectionPrimitive.FixedSize(), 0, false)
	leftFlex.AddItem(filterPrimitive, filterPrimitive.FixedSize(), 0, true)
	if channelsPrimitive != nil {
		leftFlex.AddItem(channelsPrimitive, channelsPrimitive.FixedSize(), 0, false)
	}
	leftFlex.AddItem(nil, 0, 1, false)
	topFlex := tview.NewFlex()
	topFlex.AddItem(leftFlex, 40, 0, true)
	if cubePrimitive != nil {
		topFlex.AddItem(cubePrimitive, 0, 1, false)
	}
	rootFlex := tview.NewFlex().SetDirection(tview.FlexRow)
	rootFlex.AddItem(topFlex, 0, 3, true)
	rootFlex.AddItem(logsPrimitive, 0, 1, false)
	app.SetRoot(rootFlex, true)
	app.SetFocus(filterPrimitive)

	// Start
	workerManager.Start(appCtx)
	filterPrimitive.run("Read", filterPrimitive.read)

	// App Input
	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyF2:
			if cubePrimitive != nil {
				cubePrimitive.ToggleYawMode()
			}
			return nil
		case tcell.KeyF3:
			if cubePrimitive != nil {
				cubePrimitive.ToggleShape()
			}
			return nil
		case tcell.KeyCtrlC:
			appLogger.Info("Exiting")
			workerManager.Cancel(appCtx)
			return nil
		}
		return event
	})

	// Exit
	var exitMu sync.Mutex
	exitMu.Lock()
	go func() {
		logger := log.MustLogger(appCtx)
		for name, workerErr := range workerManager.Wait(appCtx) {
			if errors.Is(workerErr, context.Canceled) {
				workerErr = nil
			}
			if workerErr != nil {
				workerErr = fmt.Errorf("%s: %w", name, workerErr)
			}
			err = errors.Join(err, workerErr)
		}
		if grammar.SupportsMotionCommands() && controlClient.State() == client.StateConnected {
			logger.Info("Returning device to standalone mode")
			if standaloneErr := controlClient.EnterStandalone(appCtx); standaloneErr != nil {
				logger.Warn("Failed to return device to standalone mode", "err", standaloneErr)
			}
		}
		logger.Info("Stopping App")
		appHandler.Disable()
		app.Stop()
		exitMu.Unlock()
	}()
	defer func() { exitMu.Lock() }()
	defer func() {
		logger := log.MustLogger(appCtx)

		if r := recover(); r != nil {
			logger.Debug("Panic", "recovered", r, "stack", string(debug.Stack()))
		}

		// After Application.Run returns, any pending or future calls to Application.QueueUpdate
		// will block indefinitely.
		// This hack here spins the app again using a simulated screen, which enables any pending
		// Application.QueueUpdate to be processed, unblocking them, so that workers can properly
		// shutdown.
		app.SetScreen(tcell.NewSimulationScreen("UTF-8"))
		go func() {
			logger.Debug("Restarting app with simulated screen to support workers shutdown")
			logger.Debug("Simulated screen app returned", "err", app.Run())
		}()

		logger.Info("Stopping all workers")
		workerManager.Cancel(appCtx)
	}()

	if runErr := app.Run(); runErr != nil {
		consoleLogger.Error("Application failed", "err", runErr)
		err = errors.Join(err, runErr)
	}
	return
}
