package cube

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func requireVecInDelta(t *testing.T, expected, actual r3.Vec) {
	t.Helper()
	require.InDelta(t, expected.X, actual.X, 1e-9, "X: %v != %v", expected, actual)
	require.InDelta(t, expected.Y, actual.Y, 1e-9, "Y: %v != %v", expected, actual)
	require.InDelta(t, expected.Z, actual.Z, 1e-9, "Z: %v != %v", expected, actual)
}

func faceByColor(t *testing.T, faces []Face, color Color) Face {
	t.Helper()
	for _, face := range faces {
		if face.Color == color {
			return face
		}
	}
	t.Fatalf("no %s face", color)
	return Face{}
}

func TestFacesIdentity(t *testing.T) {
	faces := Faces(0, 0, 0, false, CubeDimensions)
	require.Len(t, faces, 6)
	for i, face := range faces {
		require.Equal(t, faceTemplates[i].color, face.Color)
		requireVecInDelta(t, faceTemplates[i].normal, face.Normal)
		for j, v := range face.Vertices {
			requireVecInDelta(t, faceTemplates[i].vertices[j], v)
		}
	}
}

func TestFacesBoard(t *testing.T) {
	green := faceByColor(t, Faces(0, 0, 0, false, BoardDimensions), ColorGreen)
	for _, v := range green.Vertices {
		require.InDelta(t, 0.2, v.Y, 1e-9)
	}
}

func TestFacesRotation(t *testing.T) {
	for _, tc := range []struct {
		name             string
		pitch, roll, yaw float64
		yawMode          bool
		color            Color
		normal           r3.Vec
	}{
		{"roll is negated about Z", 0, 90, 0, false, ColorMagenta, r3.Vec{Y: -1}},
		{"pitch about X", 90, 0, 0, false, ColorGreen, r3.Vec{Z: 1}},
		{"yaw ignored", 0, 0, 90, false, ColorRed, r3.Vec{Z: 1}},
		{"yaw about Y", 0, 0, 90, true, ColorRed, r3.Vec{X: 1}},
		{"roll then pitch", 90, 90, 0, false, ColorMagenta, r3.Vec{Z: -1}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			faces := Faces(tc.pitch, tc.roll, tc.yaw, tc.yawMode, CubeDimensions)
			requireVecInDelta(t, tc.normal, faceByColor(t, faces, tc.color).Normal)
		})
	}
}

func TestProject(t *testing.T) {
	p := Project(r3.Vec{}, 1)
	require.InDelta(t, 0, p.X, 1e-9)
	require.InDelta(t, 0, p.Y, 1e-9)
	require.InDelta(t, CameraDistance, p.Depth, 1e-9)

	near := Project(r3.Vec{X: 1, Y: 1, Z: 1}, 1)
	far := Project(r3.Vec{X: 1, Y: 1, Z: -1}, 1)
	require.Greater(t, near.X, far.X)
	require.Greater(t, near.Y, far.Y)

	wide := Project(r3.Vec{X: 1, Y: 1, Z: 1}, 2)
	require.InDelta(t, near.X/2, wide.X, 1e-9)
	require.InDelta(t, near.Y, wide.Y, 1e-9)
}

func TestRasterize(t *testing.T) {
	frame := Rasterize(Faces(0, 0, 0, false, CubeDimensions), 40, 20, 2)
	require.Equal(t, 40, frame.Width)
	require.Equal(t, 20, frame.Height)
	require.Equal(t, ColorRed, frame.At(20, 10))
	require.Equal(t, ColorNone, frame.At(0, 0))
	require.Equal(t, ColorNone, frame.At(39, 19))

	frame = Rasterize(Faces(90, 0, 0, false, CubeDimensions), 40, 20, 2)
	require.Equal(t, ColorGreen, frame.At(20, 10))

	frame = Rasterize(nil, 0, 0, 2)
	require.Empty(t, frame.Cells)
}

func TestVisible(t *testing.T) {
	var visible []Color
	for _, face := range Faces(0, 0, 0, false, CubeDimensions) {
		if face.Visible() {
			visible = append(visible, face.Color)
		}
	}
	require.Equal(t, []Color{ColorRed}, visible)
}
