package geometry

import (
	"fmt"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

func TestPlaneFromEquation(t *testing.T) {
	p := PlaneFromEquation(mgl32.Vec4{0, 2, 0, 4})
	require.Equal(t, mgl32.Vec3{0, 1, 0}, p.Normal)
	require.Equal(t, float32(2), p.D)
	require.Equal(t, float32(3), p.Distance(mgl32.Vec3{7, 1, -3}))

	require.Equal(t, Plane{}, PlaneFromEquation(mgl32.Vec4{0, 0, 0, 1}))
}

func TestPlaneFlip(t *testing.T) {
	p := Plane{Normal: mgl32.Vec3{0, 1, 0}, D: -2}
	point := mgl32.Vec3{4, 5, -1}
	require.Equal(t, float32(3), p.Distance(point))
	require.Equal(t, float32(-3), p.Flip().Distance(point))
	require.Equal(t, p, p.Flip().Flip())
}

func TestIsPointInsidePlanes(t *testing.T) {
	// unit cube as outward planes
	planes := []Plane{
		{Normal: mgl32.Vec3{1, 0, 0}, D: -1},
		{Normal: mgl32.Vec3{-1, 0, 0}, D: -1},
		{Normal: mgl32.Vec3{0, 1, 0}, D: -1},
		{Normal: mgl32.Vec3{0, -1, 0}, D: -1},
		{Normal: mgl32.Vec3{0, 0, 1}, D: -1},
		{Normal: mgl32.Vec3{0, 0, -1}, D: -1},
	}
	for idx, tc := range []struct {
		point  mgl32.Vec3
		margin float32
		want   bool
	}{
		{mgl32.Vec3{0, 0, 0}, 0, true},
		{mgl32.Vec3{1, 1, 1}, 0, true},
		{mgl32.Vec3{1.5, 0, 0}, 0, false},
		{mgl32.Vec3{1.5, 0, 0}, 0.6, true},
		{mgl32.Vec3{0.5, 0, 0}, -0.6, false},
	} {
		t.Run(fmt.Sprintf("%d/%v", idx, tc.point), func(t *testing.T) {
			require.Equal(t, tc.want, IsPointInsidePlanes(planes, tc.point, tc.margin))
		})
	}
	require.True(t, IsPointInsidePlanes(nil, mgl32.Vec3{1e6, 0, 0}, 0))
}

func TestAreVerticesBehindPlane(t *testing.T) {
	ground := Plane{Normal: mgl32.Vec3{0, 1, 0}}
	below := []mgl32.Vec3{{0, -1, 0}, {3, -0.5, 2}, {1, 0, 1}}
	require.True(t, AreVerticesBehindPlane(ground, below, 0))
	require.False(t, AreVerticesBehindPlane(ground, append(below, mgl32.Vec3{0, 0.1, 0}), 0))
	require.True(t, AreVerticesBehindPlane(ground, append(below, mgl32.Vec3{0, 0.1, 0}), 0.2))
}

func TestFrustumFromIdentity(t *testing.T) {
	// identity clip volume is x, y in [-1, 1] and z in [0, 1]
	f := FrustumFromMatrix(mgl32.Ident4())
	for idx, tc := range []struct {
		point mgl32.Vec3
		want  bool
	}{
		{mgl32.Vec3{0, 0, 0.5}, true},
		{mgl32.Vec3{-1, 1, 0}, true},
		{mgl32.Vec3{2, 0, 0.5}, false},
		{mgl32.Vec3{0, -2, 0.5}, false},
		{mgl32.Vec3{0, 0, -0.1}, false},
		{mgl32.Vec3{0, 0, 1.1}, false},
	} {
		t.Run(fmt.Sprintf("%d/%v", idx, tc.point), func(t *testing.T) {
			require.Equal(t, tc.want, f.ContainsSphere(Sphere{Center: tc.point}))
		})
	}

	require.True(t, f.ContainsSphere(Sphere{Center: mgl32.Vec3{1.5, 0, 0.5}, Radius: 0.6}))
	require.False(t, f.ContainsSphere(Sphere{Center: mgl32.Vec3{1.5, 0, 0.5}, Radius: 0.4}))
}

func TestFrustumFollowsView(t *testing.T) {
	f := FrustumFromMatrix(mgl32.Translate3D(-5, 0, 0))
	require.True(t, f.ContainsSphere(Sphere{Center: mgl32.Vec3{5, 0, 0.5}}))
	require.False(t, f.ContainsSphere(Sphere{Center: mgl32.Vec3{0, 0, 0.5}}))
}

func TestFrustumContainsVertices(t *testing.T) {
	f := FrustumFromMatrix(mgl32.Ident4())
	for idx, tc := range []struct {
		name     string
		vertices []mgl32.Vec3
		want     bool
	}{
		{"inside", []mgl32.Vec3{{0, 0, 0.5}, {0.2, 0.2, 0.6}}, true},
		{"right of frustum", []mgl32.Vec3{{1.5, 0, 0.5}, {3, 0.5, 0.2}}, false},
		{"behind near plane", []mgl32.Vec3{{0, 0, -1}, {0.5, 0.5, -0.2}}, false},
		{"one corner inside", []mgl32.Vec3{{1.5, 0, 0.5}, {0.9, 0, 0.5}}, true},
		// outside two different planes but never all outside one
		{"straddles corner", []mgl32.Vec3{{1.5, 0, 0.5}, {0, 1.5, 0.5}}, true},
		{"on the plane", []mgl32.Vec3{{1, 0, 0.5}, {2, 0, 0.5}}, true},
	} {
		t.Run(fmt.Sprintf("%d/%s", idx, tc.name), func(t *testing.T) {
			require.Equal(t, tc.want, f.ContainsVertices(tc.vertices))
		})
	}
}

func TestBoxFromPoints(t *testing.T) {
	require.Equal(t, Box{}, BoxFromPoints(nil))

	b := BoxFromPoints([]mgl32.Vec3{{-1, 2, 0}, {3, -2, 1}, {0, 0, 5}})
	require.Equal(t, Box{Min: mgl32.Vec3{-1, -2, 0}, Max: mgl32.Vec3{3, 2, 5}}, b)
	require.Equal(t, mgl32.Vec3{1, 0, 2.5}, b.Center())

	corners := b.Corners(mgl32.Translate3D(10, 0, 0))
	require.Equal(t, mgl32.Vec3{9, -2, 0}, corners[0])
	require.Equal(t, mgl32.Vec3{13, 2, 5}, corners[7])
	require.Equal(t, mgl32.Vec3{13, -2, 0}, corners[1])
	require.Equal(t, mgl32.Vec3{9, 2, 0}, corners[2])
	require.Equal(t, mgl32.Vec3{9, -2, 5}, corners[4])
}

func TestSphereFromPoints(t *testing.T) {
	require.Equal(t, Sphere{}, SphereFromPoints(nil))

	s := SphereFromPoints([]mgl32.Vec3{{-1, -1, -1}, {1, 1, 1}, {0, 0.5, 0}})
	require.Equal(t, mgl32.Vec3{0, 0, 0}, s.Center)
	require.InDelta(t, 1.7320508, s.Radius, 1e-5)

	moved := s.Transform(mgl32.Translate3D(2, 0, 0).Mul4(mgl32.Scale3D(3, 1, 1)))
	require.True(t, moved.Center.ApproxEqual(mgl32.Vec3{2, 0, 0}))
	require.InDelta(t, 3*1.7320508, moved.Radius, 1e-4)
}
