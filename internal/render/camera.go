package render

import (
	"math"

	"github.com/Faultbox/meshdeck/pkg/vecmath"
)

// OrbitCamera orbits a target point with yaw/pitch angles and a zoom
// distance, the standard asset-viewer control scheme.
type OrbitCamera struct {
	Target   vecmath.Vec3
	Yaw      float32 // radians around +Y
	Pitch    float32 // radians above the horizon
	Distance float32
}

const (
	minPitch    = -1.55
	maxPitch    = 1.55
	minDistance = 0.2
	maxDistance = 50
)

// NewOrbitCamera returns the default framing for a unit-ball model.
func NewOrbitCamera() *OrbitCamera {
	return &OrbitCamera{
		Yaw:      0.6,
		Pitch:    0.35,
		Distance: 2.6,
	}
}

// Rotate applies yaw/pitch deltas, clamping pitch short of the poles.
func (c *OrbitCamera) Rotate(dYaw, dPitch float32) {
	c.Yaw += dYaw
	c.Pitch = clamp(c.Pitch+dPitch, minPitch, maxPitch)
}

// Zoom scales the distance multiplicatively; factor > 1 moves away.
func (c *OrbitCamera) Zoom(factor float32) {
	if factor <= 0 {
		return
	}
	c.Distance = clamp(c.Distance*factor, minDistance, maxDistance)
}

// Pan shifts the target in the camera's screen plane.
func (c *OrbitCamera) Pan(dx, dy float32) {
	eye := c.Eye()
	forward := c.Target.Sub(eye).Normalize()
	right := forward.Cross(vecmath.Vec3{Y: 1}).Normalize()
	up := right.Cross(forward)
	scale := c.Distance * 0.5
	c.Target = c.Target.Add(right.Scale(dx * scale)).Add(up.Scale(dy * scale))
}

// Eye returns the camera position in world space.
func (c *OrbitCamera) Eye() vecmath.Vec3 {
	cosP := float32(math.Cos(float64(c.Pitch)))
	return vecmath.Vec3{
		X: c.Target.X + c.Distance*cosP*float32(math.Sin(float64(c.Yaw))),
		Y: c.Target.Y + c.Distance*float32(math.Sin(float64(c.Pitch))),
		Z: c.Target.Z + c.Distance*cosP*float32(math.Cos(float64(c.Yaw))),
	}
}

// ViewMatrix returns the look-at matrix for the current orbit state.
func (c *OrbitCamera) ViewMatrix() vecmath.Mat4 {
	return vecmath.LookAt(c.Eye(), c.Target, vecmath.Vec3{Y: 1})
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
