package spatialmath

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/dualquat"
	"gonum.org/v1/gonum/num/quat"
)

// dualQuaternion is the Pose implementation. The real part is the rotation quaternion q and the
// dual part is 0.5 * t * q for translation t.
type dualQuaternion struct {
	dualquat.Number
}

func newDualQuaternion() *dualQuaternion {
	return &dualQuaternion{dualquat.Number{Real: quat.Number{Real: 1}}}
}

func newDualQuaternionFromPose(p Pose) *dualQuaternion {
	if dq, ok := p.(*dualQuaternion); ok {
		return dq
	}
	q := newDualQuaternion()
	q.Real = p.Orientation().Quaternion()
	q.setTranslation(p.Point())
	return q
}

// Point returns the translation component.
func (q *dualQuaternion) Point() r3.Vector {
	t := quat.Scale(2, quat.Mul(q.Dual, quat.Conj(q.Real)))
	return r3.Vector{X: t.Imag, Y: t.Jmag, Z: t.Kmag}
}

// Orientation returns the rotation component.
func (q *dualQuaternion) Orientation() Orientation {
	rot := quaternion(q.Real)
	return &rot
}

func (q *dualQuaternion) setTranslation(pt r3.Vector) {
	q.Dual = quat.Scale(0.5, quat.Mul(quat.Number{Imag: pt.X, Jmag: pt.Y, Kmag: pt.Z}, q.Real))
}

// transformation multiplies the dual quaternion by another, i.e. applies `by` in this frame.
func (q *dualQuaternion) transformation(by dualquat.Number) dualquat.Number {
	return dualquat.Mul(q.Number, by)
}
