package tui

import (
	"context"
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/fornellas/stabctl/cube"
	"github.com/fornellas/stabctl/protocol"
)

// Terminal cells are about twice as tall as they are wide.
const cellAspect = 2.0

// CubePrimitive draws the orientation as a rotating box.
type CubePrimitive struct {
	*tview.Box
	app               *tview.Application
	orientationSample protocol.OrientationSample
	yawMode           bool
	dimensions        cube.Dimensions
}

func NewCubePrimitive(app *tview.Application, yawMode, board bool) *CubePrimitive {
	cp := &CubePrimitive{
		Box:        tview.NewBox(),
		app:        app,
		yawMode:    yawMode,
		dimensions: cube.CubeDimensions,
	}
	if board {
		cp.dimensions = cube.BoardDimensions
	}
	cp.Box.SetBorder(true)
	cp.updateTitle()
	return cp
}

func (cp *CubePrimitive) updateTitle() {
	yaw := "off"
	if cp.yawMode {
		yaw = "on"
	}
	s := cp.orientationSample
	title := fmt.Sprintf("Orientation: roll %s pitch %s", sprintAngle(s.Roll), sprintAngle(s.Pitch))
	if s.HasYaw {
		title += fmt.Sprintf(" yaw %s", sprintAngle(s.Yaw))
	}
	title += fmt.Sprintf(" | F2 yaw %s | F3 shape", yaw)
	cp.Box.SetTitle(title)
}

// ToggleYawMode must be called from the app goroutine.
func (cp *CubePrimitive) ToggleYawMode() {
	cp.yawMode = !cp.yawMode
	cp.updateTitle()
}

// ToggleShape switches between a cube and a flat board; must be called from the app goroutine.
func (cp *CubePrimitive) ToggleShape() {
	if cp.dimensions == cube.CubeDimensions {
		cp.dimensions = cube.BoardDimensions
	} else {
		cp.dimensions = cube.CubeDimensions
	}
}

func (cp *CubePrimitive) Draw(screen tcell.Screen) {
	cp.Box.DrawForSubclass(screen, cp)
	x, y, width, height := cp.Box.GetInnerRect()
	s := cp.orientationSample
	frame := cube.Rasterize(cube.Faces(s.Pitch, s.Roll, s.Yaw, cp.yawMode, cp.dimensions), width, height, cellAspect)
	for row := range frame.Height {
		for col := range frame.Width {
			color := frame.At(col, row)
			if color == cube.ColorNone {
				continue
			}
			screen.SetContent(
				x+col, y+row, ' ', nil,
				tcell.StyleDefault.Background(getCubeColor(color)),
			)
		}
	}
}

func (cp *CubePrimitive) Worker(ctx context.Context, recordCh <-chan protocol.Record) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case record, ok := <-recordCh:
			if !ok {
				return nil
			}
			orientationSample, ok := record.(*protocol.OrientationSample)
			if !ok {
				continue
			}
			cp.app.QueueUpdateDraw(func() {
				cp.orientationSample = *orientationSample
				cp.updateTitle()
			})
		}
	}
}
