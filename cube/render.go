package cube

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// Distance from the eye to the box center.
	CameraDistance = 7.0
	// Vertical field of view, in degrees.
	FieldOfView = 45.0
)

// Point is a projected vertex in normalized device coordinates: X and Y within [-1, 1] are
// visible, Depth is the distance along the view axis.
type Point struct {
	X, Y  float64
	Depth float64
}

func toEye(v r3.Vec) r3.Vec {
	return r3.Add(v, r3.Vec{Z: -CameraDistance})
}

// Project applies the perspective projection; aspect is the viewport width over its height.
func Project(v r3.Vec, aspect float64) Point {
	e := toEye(v)
	f := 1 / math.Tan(radians(FieldOfView)/2)
	depth := -e.Z
	return Point{
		X:     f / aspect * e.X / depth,
		Y:     f * e.Y / depth,
		Depth: depth,
	}
}

// Visible is true when the face points towards the eye.
func (f Face) Visible() bool {
	return r3.Dot(f.Normal, r3.Scale(-1, toEye(f.Center()))) > 0
}

// Frame is a grid of cells, row major, painted with the color of the nearest face.
type Frame struct {
	Width  int
	Height int
	Cells  []Color
}

func NewFrame(width, height int) *Frame {
	return &Frame{
		Width:  width,
		Height: height,
		Cells:  make([]Color, width*height),
	}
}

func (f *Frame) At(x, y int) Color {
	return f.Cells[y*f.Width+x]
}

func (f *Frame) set(x, y int, color Color) {
	f.Cells[y*f.Width+x] = color
}

// inside reports whether (x, y) lies within the convex polygon.
func inside(polygon [4]Point, x, y float64) bool {
	var positive, negative bool
	for i := range polygon {
		a := polygon[i]
		b := polygon[(i+1)%len(polygon)]
		cross := (b.X-a.X)*(y-a.Y) - (b.Y-a.Y)*(x-a.X)
		if cross > 0 {
			positive = true
		} else if cross < 0 {
			negative = true
		}
		if positive && negative {
			return false
		}
	}
	return true
}

// Rasterize paints visible faces back to front into a width x height frame. cellAspect is the
// height of a cell over its width, about 2 for terminals.
func Rasterize(faces []Face, width, height int, cellAspect float64) *Frame {
	if width <= 0 || height <= 0 {
		return NewFrame(0, 0)
	}
	frame := NewFrame(width, height)
	aspect := float64(width) / (float64(height) * cellAspect)

	visible := make([]Face, 0, len(faces))
	for _, face := range faces {
		if face.Visible() {
			visible = append(visible, face)
		}
	}
	sort.SliceStable(visible, func(i, j int) bool {
		return toEye(visible[i].Center()).Z < toEye(visible[j].Center()).Z
	})

	for _, face := range visible {
		var polygon [4]Point
		for i, v := range face.Vertices {
			polygon[i] = Project(v, aspect)
		}
		for row := range height {
			y := 1 - (float64(row)+0.5)/float64(height)*2
			for col := range width {
				x := (float64(col)+0.5)/float64(width)*2 - 1
				if inside(polygon, x, y) {
					frame.set(col, row, face.Color)
				}
			}
		}
	}
	return frame
}
