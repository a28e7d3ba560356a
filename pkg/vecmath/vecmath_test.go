package vecmath

import (
	"math"
	"testing"
)

const eps = 1e-5

func close32(a, b float32) bool {
	return math.Abs(float64(a-b)) < eps
}

func TestVec3Normalize(t *testing.T) {
	v := Vec3{3, 0, 4}.Normalize()
	if !close32(v.Length(), 1) {
		t.Errorf("normalized length = %v", v.Length())
	}
	if !close32(v.X, 0.6) || !close32(v.Z, 0.8) {
		t.Errorf("normalize direction wrong: %+v", v)
	}

	zero := Vec3{}.Normalize()
	if zero != (Vec3{}) {
		t.Errorf("zero vector must stay zero, got %+v", zero)
	}
}

func TestVec3Cross(t *testing.T) {
	x := Vec3{1, 0, 0}
	y := Vec3{0, 1, 0}
	z := x.Cross(y)
	if !close32(z.Z, 1) || !close32(z.X, 0) || !close32(z.Y, 0) {
		t.Errorf("x cross y = %+v, want +z", z)
	}
}

func TestMat4IdentityMul(t *testing.T) {
	m := Translate(1, 2, 3).Mul(Identity())
	p := m.TransformPoint([3]float32{0, 0, 0})
	if !close32(p[0], 1) || !close32(p[1], 2) || !close32(p[2], 3) {
		t.Errorf("translate origin = %v", p)
	}
}

func TestLookAtPlacesEyeAtOrigin(t *testing.T) {
	eye := Vec3{0, 0, 5}
	view := LookAt(eye, Vec3{}, Vec3{Y: 1})
	p := view.TransformPoint([3]float32{0, 0, 5})
	for i, want := range []float32{0, 0, 0} {
		if !close32(p[i], want) {
			t.Errorf("eye in view space = %v", p)
			break
		}
	}
	// A point at the origin should land on the -Z axis at distance 5.
	q := view.TransformPoint([3]float32{0, 0, 0})
	if !close32(q[2], -5) {
		t.Errorf("center in view space = %v, want z=-5", q)
	}
}

func TestOrthoMapsExtents(t *testing.T) {
	proj := Ortho(-2, 2, -2, 2, 0.1, 10)
	p := proj.TransformPoint([3]float32{2, -2, -10})
	if !close32(p[0], 1) || !close32(p[1], -1) {
		t.Errorf("ortho corner = %v", p)
	}
}

func TestRotateYQuarterTurn(t *testing.T) {
	m := RotateY(float32(math.Pi / 2))
	p := m.TransformPoint([3]float32{1, 0, 0})
	if !close32(p[0], 0) || !close32(p[2], -1) {
		t.Errorf("rotateY(90) of +x = %v, want -z", p)
	}
}
