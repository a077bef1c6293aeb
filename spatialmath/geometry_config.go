package spatialmath

import (
	"encoding/json"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// OrientationType defines what orientation representations are known.
type OrientationType string

// The set of allowed representations for orientation.
const (
	NoOrientation   = OrientationType("")
	QuaternionType  = OrientationType("quaternion")
	AxisAnglesType  = OrientationType("axis_angles")
	EulerAnglesType = OrientationType("euler_angles")
)

// OrientationConfig holds the underlying type of orientation, and the value.
type OrientationConfig struct {
	Type  OrientationType `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

type quaternionJSON struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// ParseConfig will use the Type in OrientationConfig and convert into the correct struct that implements Orientation.
func (config *OrientationConfig) ParseConfig() (Orientation, error) {
	switch config.Type {
	case NoOrientation:
		return NewZeroOrientation(), nil
	case QuaternionType:
		var q quaternionJSON
		if err := json.Unmarshal(config.Value, &q); err != nil {
			return nil, err
		}
		return NewOrientationFromQuaternion(quaternionNumber(q.W, q.X, q.Y, q.Z)), nil
	case AxisAnglesType:
		var o R4AA
		if err := json.Unmarshal(config.Value, &o); err != nil {
			return nil, err
		}
		return &o, nil
	case EulerAnglesType:
		var o EulerAngles
		if err := json.Unmarshal(config.Value, &o); err != nil {
			return nil, err
		}
		return &o, nil
	default:
		return nil, errors.Errorf("orientation type %q not recognized", config.Type)
	}
}

// NewOrientationConfig encodes an orientation as an axis angle config.
func NewOrientationConfig(o Orientation) (*OrientationConfig, error) {
	bytes, err := json.Marshal(o.AxisAngles())
	if err != nil {
		return nil, err
	}
	return &OrientationConfig{Type: AxisAnglesType, Value: bytes}, nil
}

// GeometryConfig specifies the format of geometries specified through JSON configuration files.
// Dimensions are in meters.
type GeometryConfig struct {
	Type GeometryType `json:"type"`

	// parameters used for defining a box's rectangular cross-section
	X float64 `json:"x,omitempty"`
	Y float64 `json:"y,omitempty"`
	Z float64 `json:"z,omitempty"`

	// parameter used for defining a sphere's or capsule's radius
	R float64 `json:"r,omitempty"`

	// parameter used for defining a capsule's length
	L float64 `json:"l,omitempty"`

	// define an offset to position the geometry
	TranslationOffset r3.Vector         `json:"translation,omitempty"`
	OrientationOffset OrientationConfig `json:"orientation,omitempty"`

	Label string `json:"label,omitempty"`
}

// ParseConfig converts a GeometryConfig into the correct Geometry type.
func (config *GeometryConfig) ParseConfig() (Geometry, error) {
	orientation, err := config.OrientationOffset.ParseConfig()
	if err != nil {
		return nil, err
	}
	offset := NewPose(config.TranslationOffset, orientation)

	switch config.Type {
	case BoxType:
		return NewBox(offset, r3.Vector{X: config.X, Y: config.Y, Z: config.Z}, config.Label)
	case SphereType:
		return NewSphere(offset, config.R, config.Label)
	case CapsuleType:
		return NewCapsule(offset, config.R, config.L, config.Label)
	case UnknownType:
		// no type specified, iterate through supported types and try to infer intent
		if g, err := NewBox(offset, r3.Vector{X: config.X, Y: config.Y, Z: config.Z}, config.Label); err == nil {
			return g, nil
		}
		if g, err := NewCapsule(offset, config.R, config.L, config.Label); err == nil {
			return g, nil
		}
		if g, err := NewSphere(offset, config.R, config.Label); err == nil {
			return g, nil
		}
		return nil, errors.Wrap(ErrGeometryTypeUnsupported, "could not infer geometry type from dimensions")
	default:
		return nil, errors.Wrapf(ErrGeometryTypeUnsupported, "%q", config.Type)
	}
}

// NewGeometryConfig returns the config that reproduces the geometry.
func NewGeometryConfig(g Geometry) (*GeometryConfig, error) {
	orientation, err := NewOrientationConfig(g.Pose().Orientation())
	if err != nil {
		return nil, err
	}
	config := &GeometryConfig{
		TranslationOffset: g.Pose().Point(),
		OrientationOffset: *orientation,
		Label:             g.Label(),
	}
	switch gType := g.(type) {
	case *box:
		config.Type = BoxType
		dims := gType.Dims()
		config.X, config.Y, config.Z = dims.X, dims.Y, dims.Z
	case *sphere:
		config.Type = SphereType
		config.R = gType.radius
	case *capsule:
		config.Type = CapsuleType
		config.R = gType.radius
		config.L = gType.length
	default:
		return nil, errors.Wrapf(ErrGeometryTypeUnsupported, "%T", gType)
	}
	return config, nil
}
