package viz

import "math"

// JointView is what DrawJoint needs from one cycle.
type JointView struct {
	Angle     float64 // degrees
	PressureA float64 // kPa
	PressureB float64 // kPa
}

// DrawJoint renders the pivot, the crossbar with the lever hanging from it
// and the two muscles running up to the frame. Muscle A pulls the left end
// of the crossbar, so positive angles lift it. Line weight follows
// pressure.
func DrawJoint(c *Canvas, v JointView) {
	c.Clear()
	w, h := c.PixelWidth(), c.PixelHeight()
	cx, cy := w/2, h/3
	r := float64(w) / 5
	lever := float64(h) * 0.55
	span := int(r) + 4

	c.DrawLine(cx-span-6, 0, cx+span+6, 0)

	theta := v.Angle * math.Pi / 180
	sin, cos := math.Sincos(theta)
	rot := func(x, y float64) (int, int) {
		return cx + int(math.Round(x*cos-y*sin)), cy + int(math.Round(x*sin+y*cos))
	}

	lx, ly := rot(-r, 0)
	rx, ry := rot(r, 0)
	tx, ty := rot(0, lever)

	c.DrawThickLine(cx-span, 0, lx, ly, muscleWidth(v.PressureA))
	c.DrawThickLine(cx+span, 0, rx, ry, muscleWidth(v.PressureB))
	c.DrawLine(lx, ly, rx, ry)
	c.DrawLine(cx, cy, tx, ty)
	c.FillCircle(tx, ty, 2)
	c.FillCircle(cx, cy, 1)
}

func muscleWidth(kPa float64) int {
	switch {
	case kPa >= 400:
		return 3
	case kPa >= 150:
		return 2
	default:
		return 1
	}
}
