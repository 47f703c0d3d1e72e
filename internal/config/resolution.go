package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
)

// Flags holds the command-line values that override file and environment
// settings. A nil pointer means the flag was not given.
type Flags struct {
	Parallel *int
	NoColor  *bool
}

// Settings are the resolved run settings.
type Settings struct {
	Parallel int
	NoColor  bool

	// Where each value came from: "cli", "env", "file" or "default".
	ParallelSource string
	NoColorSource  string
}

// Resolve applies flags, environment and cfg (which may be nil) in
// precedence order.
func Resolve(flags Flags, cfg *Config) (Settings, error) {
	s := Settings{
		Parallel:       runtime.NumCPU(),
		ParallelSource: "default",
		NoColorSource:  "default",
	}

	switch {
	case flags.Parallel != nil:
		s.Parallel, s.ParallelSource = *flags.Parallel, "cli"
	case os.Getenv("TALLY_PARALLEL") != "":
		n, err := strconv.Atoi(os.Getenv("TALLY_PARALLEL"))
		if err != nil {
			return Settings{}, fmt.Errorf("%w: TALLY_PARALLEL: %w", ErrInvalid, err)
		}
		s.Parallel, s.ParallelSource = n, "env"
	case cfg != nil && cfg.Parallel > 0:
		s.Parallel, s.ParallelSource = cfg.Parallel, "file"
	}
	if s.Parallel < 0 {
		return Settings{}, fmt.Errorf("%w: parallel must be >= 0, got %d (%s)", ErrInvalid, s.Parallel, s.ParallelSource)
	}
	if s.Parallel == 0 {
		s.Parallel = runtime.NumCPU()
	}

	if flags.NoColor != nil {
		s.NoColor, s.NoColorSource = *flags.NoColor, "cli"
	} else if v := getEnvBool("TALLY_NO_COLOR"); v != nil {
		s.NoColor, s.NoColorSource = *v, "env"
	} else if os.Getenv("NO_COLOR") != "" {
		s.NoColor, s.NoColorSource = true, "env"
	}
	return s, nil
}

// getEnvBool reads a boolean from environment variables, trying multiple keys.
// Returns nil if none are set, or a pointer to the boolean value.
func getEnvBool(keys ...string) *bool {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				return &b
			}
		}
	}
	return nil
}
