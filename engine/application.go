package engine

type ApplicationConfig struct {
	// The application name used in windowing, if applicable. Overrides the
	// window title of the configuration file when set.
	Name string
	// ConfigPath is the TOML configuration file. A missing file leaves the
	// defaults in place.
	ConfigPath string
	// LogLevel overrides the level of the configuration file when set.
	LogLevel string
}
