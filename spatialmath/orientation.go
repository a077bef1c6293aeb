package spatialmath

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Orientation is an interface used to express the different parameterizations of the orientation
// of a rigid object or a frame of reference in 3D Euclidean space.
type Orientation interface {
	AxisAngles() *R4AA
	Quaternion() quat.Number
	EulerAngles() *EulerAngles
}

// NewZeroOrientation returns an orientatation which signifies no rotation.
func NewZeroOrientation() Orientation {
	return &quaternion{1, 0, 0, 0}
}

// OrientationAlmostEqual will return a bool describing whether 2 poses have approximately the same orientation.
func OrientationAlmostEqual(o1, o2 Orientation) bool {
	return QuaternionAlmostEqual(o1.Quaternion(), o2.Quaternion(), 1e-5)
}

// QuaternionAlmostEqual is an equality test for two quaternions. q and -q describe the same rotation.
func QuaternionAlmostEqual(a, b quat.Number, tol float64) bool {
	same := func(s float64) bool {
		return math.Abs(a.Real-s*b.Real) < tol &&
			math.Abs(a.Imag-s*b.Imag) < tol &&
			math.Abs(a.Jmag-s*b.Jmag) < tol &&
			math.Abs(a.Kmag-s*b.Kmag) < tol
	}
	return same(1) || same(-1)
}

// quaternion is an orientation stored directly as a unit quaternion.
type quaternion quat.Number

// NewOrientationFromQuaternion wraps a quaternion, normalizing it first.
func NewOrientationFromQuaternion(q quat.Number) Orientation {
	n := quat.Abs(q)
	if n == 0 {
		return NewZeroOrientation()
	}
	normed := quaternion(quat.Scale(1/n, q))
	return &normed
}

// Quaternion returns orientation in quaternion representation.
func (q *quaternion) Quaternion() quat.Number {
	return quat.Number(*q)
}

// AxisAngles returns the orientation in axis angle representation.
func (q *quaternion) AxisAngles() *R4AA {
	return QuatToR4AA(q.Quaternion())
}

// EulerAngles returns orientation in Euler angle representation.
func (q *quaternion) EulerAngles() *EulerAngles {
	return QuatToEulerAngles(q.Quaternion())
}

// QuatToR4AA converts a quat to an R4 axis angle in the same way the C++ Eigen library does.
// https://eigen.tuxfamily.org/dox/AngleAxis_8h_source.html
func QuatToR4AA(q quat.Number) *R4AA {
	denom := Norm(q)

	angle := 2 * math.Atan2(denom, math.Abs(q.Real))
	if q.Real < 0 {
		angle *= -1
	}

	if denom < 1e-6 {
		return &R4AA{Theta: angle, RX: 0, RY: 0, RZ: 1}
	}
	return &R4AA{angle, q.Imag / denom, q.Jmag / denom, q.Kmag / denom}
}

// Norm returns the norm of the imaginary part of the quaternion.
func Norm(q quat.Number) float64 {
	return math.Sqrt(q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
}

// QuatToEulerAngles converts a quaternion to roll, pitch, yaw.
// https://en.wikipedia.org/wiki/Conversion_between_quaternions_and_Euler_angles#Quaternion_to_Euler_angles_conversion
func QuatToEulerAngles(q quat.Number) *EulerAngles {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	sinRCosP := 2 * (w*x + y*z)
	cosRCosP := 1 - 2*(x*x+y*y)
	roll := math.Atan2(sinRCosP, cosRCosP)

	sinP := 2 * (w*y - z*x)
	var pitch float64
	if math.Abs(sinP) >= 1 {
		pitch = math.Copysign(math.Pi/2, sinP)
	} else {
		pitch = math.Asin(sinP)
	}

	sinYCosP := 2 * (w*z + x*y)
	cosYCosP := 1 - 2*(y*y+z*z)
	yaw := math.Atan2(sinYCosP, cosYCosP)

	return &EulerAngles{Roll: roll, Pitch: pitch, Yaw: yaw}
}

func quaternionNumber(w, x, y, z float64) quat.Number {
	return quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z}
}
