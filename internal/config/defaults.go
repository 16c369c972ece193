package config

// DefaultConfig returns the built-in configuration: four slots, warnings
// fail the build, no task graph.
func DefaultConfig() *Config {
	return &Config{
		Parallelism: "4",
		Tasks:       make(map[string]TaskConfig),
	}
}
