package collisionproximity

import (
	"encoding/json"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/golang/geo/r3"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/proximity/distancefield"
)

// default values for a collision space.
const (
	defaultResolution             = 0.02
	defaultTolerance              = 1e-3
	defaultMaxEnvironmentDistance = 0.25
	defaultPadding                = 0.01
)

var (
	defaultSize   = r3.Vector{X: 3, Y: 3, Z: 3}
	defaultOrigin = r3.Vector{X: -1.5, Y: -1.5, Z: -1.5}
)

// AllowedContact lets the listed links or attached objects touch the environment, and each other,
// as long as they do not penetrate deeper than Depth.
type AllowedContact struct {
	Name  string   `json:"name,omitempty"`
	Links []string `json:"links"`
	Depth float64  `json:"depth"`
}

// Config describes a collision space: the distance field covering the workspace and how robot
// bodies are padded and compared against it.
type Config struct {
	// Size, Origin and Resolution place the distance field grid in the world frame; Origin is the
	// center of the first cell.
	Size       r3.Vector `json:"size"`
	Origin     r3.Vector `json:"origin"`
	Resolution float64   `json:"resolution"`

	// Tolerance is added to every collision threshold.
	Tolerance float64 `json:"tolerance"`
	// MaxEnvironmentDistance is the largest distance the field propagates and reports.
	MaxEnvironmentDistance float64 `json:"max_environment_distance"`

	DefaultPadding float64            `json:"default_padding"`
	LinkPadding    map[string]float64 `json:"link_padding,omitempty"`

	// EnvironmentExcludes names links and attached objects never tested against the environment.
	EnvironmentExcludes []string `json:"environment_excludes,omitempty"`
	// IgnoreAdjacentLinks disables self collision checks between a link and its parent link.
	IgnoreAdjacentLinks bool             `json:"ignore_adjacent_links"`
	AllowedContacts     []AllowedContact `json:"allowed_contacts,omitempty"`
}

// NewDefaultConfig returns a Config covering a 3 m cube centered on the world origin.
func NewDefaultConfig() *Config {
	return &Config{
		Size:                   defaultSize,
		Origin:                 defaultOrigin,
		Resolution:             defaultResolution,
		Tolerance:              defaultTolerance,
		MaxEnvironmentDistance: defaultMaxEnvironmentDistance,
		DefaultPadding:         defaultPadding,
		IgnoreAdjacentLinks:    true,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate() error {
	fieldCfg := cfg.FieldConfig()
	if err := fieldCfg.Validate(); err != nil {
		return errors.Wrap(ErrConfiguration, err.Error())
	}
	if cfg.Tolerance < 0 {
		return errors.Wrapf(ErrConfiguration, "invalid tolerance (%.4f), must not be negative", cfg.Tolerance)
	}
	if cfg.DefaultPadding < 0 {
		return errors.Wrapf(ErrConfiguration, "invalid default padding (%.4f), must not be negative", cfg.DefaultPadding)
	}
	for link, padding := range cfg.LinkPadding {
		if padding < 0 {
			return errors.Wrapf(ErrConfiguration, "invalid padding (%.4f) for %q, must not be negative", padding, link)
		}
	}
	for i, ac := range cfg.AllowedContacts {
		if len(ac.Links) == 0 {
			return errors.Wrapf(ErrConfiguration, "allowed contact %d names no links", i)
		}
		if ac.Depth < 0 {
			return errors.Wrapf(ErrConfiguration, "allowed contact %d has negative depth %.4f", i, ac.Depth)
		}
	}
	return nil
}

// FieldConfig returns the distance field part of the config.
func (cfg *Config) FieldConfig() distancefield.Config {
	return distancefield.Config{
		Size:        cfg.Size,
		Origin:      cfg.Origin,
		Resolution:  cfg.Resolution,
		MaxDistance: cfg.MaxEnvironmentDistance,
	}
}

// Padding returns the padding applied to the named body.
func (cfg *Config) Padding(name string) float64 {
	if p, ok := cfg.LinkPadding[name]; ok {
		return p
	}
	return cfg.DefaultPadding
}

// EnvironmentExcluded reports whether the named body is left out of environment checks.
func (cfg *Config) EnvironmentExcluded(name string) bool {
	return lo.Contains(cfg.EnvironmentExcludes, name)
}

// AllowedDepth returns how deep the named body may penetrate the environment.
func (cfg *Config) AllowedDepth(name string) float64 {
	depth := 0.
	for _, ac := range cfg.AllowedContacts {
		if lo.Contains(ac.Links, name) && ac.Depth > depth {
			depth = ac.Depth
		}
	}
	return depth
}

// AllowedPairDepth returns how deep two bodies may penetrate each other. Contact is only allowed
// when a single entry lists both.
func (cfg *Config) AllowedPairDepth(a, b string) float64 {
	depth := 0.
	for _, ac := range cfg.AllowedContacts {
		if lo.Contains(ac.Links, a) && lo.Contains(ac.Links, b) && ac.Depth > depth {
			depth = ac.Depth
		}
	}
	return depth
}

// NewConfigFromAttributes decodes an attribute map, as found in a larger JSON config, on top of
// the defaults.
func NewConfigFromAttributes(attributes map[string]interface{}) (*Config, error) {
	cfg := NewDefaultConfig()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return nil, errors.Wrap(ErrConfiguration, err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UnmarshalConfigJSON parses a JSON config on top of the defaults.
func UnmarshalConfigJSON(data []byte) (*Config, error) {
	cfg := NewDefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal collision space config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseConfigJSONFile reads a JSON config, substituting ${VAR} references from the environment.
func ParseConfigJSONFile(filename string) (*Config, error) {
	data, err := envsubst.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read collision space config file")
	}
	return UnmarshalConfigJSON(data)
}

// ConfigSchema returns the JSON schema of Config.
func ConfigSchema() *jsonschema.Schema {
	return jsonschema.Reflect(&Config{})
}
