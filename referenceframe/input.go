package referenceframe

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ParseJointValues parses "name=value,name=value" into a joint value map. Values are radians for
// revolute joints and meters for prismatic joints.
func ParseJointValues(s string) (map[string]float64, error) {
	values := map[string]float64{}
	s = strings.TrimSpace(s)
	if s == "" {
		return values, nil
	}
	for _, part := range strings.Split(s, ",") {
		name, raw, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name == "" {
			return nil, errors.Errorf("joint value %q is not of the form name=value", part)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "joint %q", name)
		}
		values[strings.TrimSpace(name)] = v
	}
	return values, nil
}
