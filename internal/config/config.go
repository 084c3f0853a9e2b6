// Package config handles surfnorm configuration loading and management.
package config

// Config holds all surfnorm settings.
type Config struct {
	Surfaces SurfacesConfig `yaml:"surfaces"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SurfacesConfig holds surface normalization settings.
type SurfacesConfig struct {
	// OutputDir is where normalized surfaces are written.
	OutputDir string `yaml:"output_dir"`
	// InvertTransform sets the default for the apply command.
	InvertTransform bool `yaml:"invert_transform"`
	// CenterCoords sets the default for the apply command.
	CenterCoords bool `yaml:"center_coords"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Surfaces: SurfacesConfig{
			OutputDir:       ".",
			InvertTransform: false,
			CenterCoords:    false,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
