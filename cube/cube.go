// Package cube turns an orientation into the colored faces of a rotated box, and renders them
// into a grid of terminal cells.
package cube

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

type Color int

const (
	ColorNone Color = iota
	ColorGreen
	ColorOrange
	ColorRed
	ColorYellow
	ColorBlue
	ColorMagenta
)

var colorNamesMap = map[Color]string{
	ColorNone:    "none",
	ColorGreen:   "green",
	ColorOrange:  "orange",
	ColorRed:     "red",
	ColorYellow:  "yellow",
	ColorBlue:    "blue",
	ColorMagenta: "magenta",
}

func (c Color) String() string {
	return colorNamesMap[c]
}

// Dimensions are the half extents of the box along each axis.
type Dimensions struct {
	X, Y, Z float64
}

var (
	CubeDimensions = Dimensions{X: 1, Y: 1, Z: 1}
	// A flat box, closer to the shape of the board.
	BoardDimensions = Dimensions{X: 1, Y: 0.2, Z: 1}
)

// Face is a quad in model space after rotation, with its outward normal.
type Face struct {
	Color    Color
	Vertices [4]r3.Vec
	Normal   r3.Vec
}

// Center is the average of the vertices.
func (f Face) Center() r3.Vec {
	var c r3.Vec
	for _, v := range f.Vertices {
		c = r3.Add(c, v)
	}
	return r3.Scale(0.25, c)
}

type faceTemplate struct {
	color    Color
	normal   r3.Vec
	vertices [4]r3.Vec
}

// unit box faces; scaled by Dimensions
var faceTemplates = []faceTemplate{
	{ColorGreen, r3.Vec{Y: 1}, [4]r3.Vec{{X: 1, Y: 1, Z: -1}, {X: -1, Y: 1, Z: -1}, {X: -1, Y: 1, Z: 1}, {X: 1, Y: 1, Z: 1}}},
	{ColorOrange, r3.Vec{Y: -1}, [4]r3.Vec{{X: 1, Y: -1, Z: 1}, {X: -1, Y: -1, Z: 1}, {X: -1, Y: -1, Z: -1}, {X: 1, Y: -1, Z: -1}}},
	{ColorRed, r3.Vec{Z: 1}, [4]r3.Vec{{X: 1, Y: 1, Z: 1}, {X: -1, Y: 1, Z: 1}, {X: -1, Y: -1, Z: 1}, {X: 1, Y: -1, Z: 1}}},
	{ColorYellow, r3.Vec{Z: -1}, [4]r3.Vec{{X: 1, Y: -1, Z: -1}, {X: -1, Y: -1, Z: -1}, {X: -1, Y: 1, Z: -1}, {X: 1, Y: 1, Z: -1}}},
	{ColorBlue, r3.Vec{X: -1}, [4]r3.Vec{{X: -1, Y: 1, Z: 1}, {X: -1, Y: 1, Z: -1}, {X: -1, Y: -1, Z: -1}, {X: -1, Y: -1, Z: 1}}},
	{ColorMagenta, r3.Vec{X: 1}, [4]r3.Vec{{X: 1, Y: 1, Z: -1}, {X: 1, Y: 1, Z: 1}, {X: 1, Y: -1, Z: 1}, {X: 1, Y: -1, Z: -1}}},
}

func radians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

var (
	axisX = r3.Vec{X: 1}
	axisY = r3.Vec{Y: 1}
	axisZ = r3.Vec{Z: 1}
)

// Faces returns the six faces of a box with the given half extents, rotated by the orientation
// in degrees. Roll is applied first, about Z and negated, then pitch about X, then yaw about Y
// when yawMode is set.
func Faces(pitch, roll, yaw float64, yawMode bool, dims Dimensions) []Face {
	rotations := []r3.Rotation{
		r3.NewRotation(radians(-roll), axisZ),
		r3.NewRotation(radians(pitch), axisX),
	}
	if yawMode {
		rotations = append(rotations, r3.NewRotation(radians(yaw), axisY))
	}
	rotate := func(v r3.Vec) r3.Vec {
		for _, rotation := range rotations {
			v = rotation.Rotate(v)
		}
		return v
	}

	faces := make([]Face, len(faceTemplates))
	for i, template := range faceTemplates {
		face := Face{
			Color:  template.color,
			Normal: rotate(template.normal),
		}
		for j, v := range template.vertices {
			face.Vertices[j] = rotate(r3.Vec{X: v.X * dims.X, Y: v.Y * dims.Y, Z: v.Z * dims.Z})
		}
		faces[i] = face
	}
	return faces
}
