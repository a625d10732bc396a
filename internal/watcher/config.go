package watcher

import "time"

type Config struct {
	Enabled        bool          `yaml:"enabled"`
	DebounceWindow time.Duration `yaml:"debounce_window"`
	MaxBatchSize   int           `yaml:"max_batch_size"`
	IgnorePatterns []string      `yaml:"ignore_patterns"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		DebounceWindow: 300 * time.Millisecond,
		MaxBatchSize:   32,
		IgnorePatterns: []string{
			"**/*.tmp",
			"**/*.swp",
			"**/*~",
			"**/.#*",
			"**/4913", // vim atomic-save probe file
		},
	}
}
