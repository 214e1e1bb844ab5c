// Package rpc evaluates runtime parameter curves (RPCs): piecewise maps
// from a Variable's current value to a delta applied to a voice parameter.
// The five curve shapes are the same sample-driven shapes the teacher's
// internal/lfo package produces from a phase accumulator; here they are
// generalized to evaluate an arbitrary x (the variable's value) against an
// explicit list of control points rather than a free-running phase.
package rpc

import (
	"math"

	"github.com/soundrt/engine/internal/schema"
)

// evalSegment interpolates between two adjacent control points according to
// the curve shape carried on the segment's starting point.
func evalSegment(p0, p1 schema.RPCPoint, x float32) float32 {
	if p1.X <= p0.X {
		return p0.Y
	}
	t := (x - p0.X) / (p1.X - p0.X)
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}

	switch p0.Type {
	case schema.CurveDiscrete:
		return p0.Y
	case schema.CurveFast:
		// Ease-out: fast initial movement, flattens near p1.
		t = 1 - (1-t)*(1-t)
	case schema.CurveSlow:
		// Ease-in: slow initial movement, accelerates toward p1.
		t = t * t
	case schema.CurveSine:
		t = float32(0.5 - 0.5*math.Cos(float64(t)*math.Pi))
	case schema.CurveLinear:
		// t unchanged.
	}
	return p0.Y + t*(p1.Y-p0.Y)
}

// Evaluate maps x through an already-validated RPC's control points. x
// values outside [Points[0].X, Points[len-1].X] clamp to the nearest
// endpoint's Y, per spec.md §4.3. Evaluate assumes r.Points has already
// passed schema.ValidateRPC (non-empty, finite, strictly increasing X).
func Evaluate(r schema.RPC, x float32) float32 {
	pts := r.Points
	if x <= pts[0].X {
		return pts[0].Y
	}
	last := pts[len(pts)-1]
	if x >= last.X {
		return last.Y
	}
	for i := 0; i < len(pts)-1; i++ {
		if x >= pts[i].X && x <= pts[i+1].X {
			return evalSegment(pts[i], pts[i+1], x)
		}
	}
	return last.Y
}
