package types

import "regexp"

// Provider selects which backend family the caller wants.
type Provider string

const (
	ProviderAuto       Provider = "auto"
	ProviderRelational Provider = "relational"
	ProviderKeyValue   Provider = "keyvalue"
)

// Config holds backend selection and parameters for opening a database.
type Config struct {
	// Name is the database name. It becomes part of on-disk paths and
	// must match ^[A-Za-z0-9][A-Za-z0-9._-]*$.
	Name string `json:"name" yaml:"name"`

	// Version is the schema version, >= 1. Zero means 1.
	Version int `json:"version" yaml:"version"`

	// Provider selects the backend family. Empty means auto.
	Provider Provider `json:"provider" yaml:"provider"`

	// Backend pins a concrete backend, bypassing selection. Optional.
	Backend BackendID `json:"backend,omitempty" yaml:"backend,omitempty"`

	// DataDir is where file-backed backends keep their state.
	// Empty means the current directory.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Options carries recognized backend-specific keys (quota sizes,
	// sync directory overrides). Unrecognized keys are ignored.
	Options map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
}

var nameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Validate checks that the Config is well-formed. It returns a
// *ConfigurationError naming the offending field on failure.
func (c Config) Validate() error {
	if c.Name == "" {
		return &ConfigurationError{Field: "name", Reason: "must not be empty"}
	}
	if !nameRe.MatchString(c.Name) {
		return &ConfigurationError{Field: "name", Reason: "contains characters outside [A-Za-z0-9._-]"}
	}
	if c.Version < 0 {
		return &ConfigurationError{Field: "version", Reason: "must be >= 1"}
	}
	switch c.Provider {
	case "", ProviderAuto, ProviderRelational, ProviderKeyValue:
	default:
		return &ConfigurationError{Field: "provider", Reason: "unsupported provider " + string(c.Provider)}
	}
	if c.Backend != "" && !c.Backend.Valid() {
		return &ConfigurationError{Field: "backend", Reason: "unknown backend " + string(c.Backend)}
	}
	return nil
}

// EffectiveProvider returns the provider with the empty default applied.
func (c Config) EffectiveProvider() Provider {
	if c.Provider == "" {
		return ProviderAuto
	}
	return c.Provider
}

// EffectiveVersion returns the version with the zero default applied.
func (c Config) EffectiveVersion() int {
	if c.Version == 0 {
		return 1
	}
	return c.Version
}
