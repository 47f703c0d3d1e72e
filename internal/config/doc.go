// Package config loads tally's .tally.yaml files and resolves run settings.
//
// # Configuration Precedence
//
// Run settings are resolved in the following order (highest to lowest priority):
//
//  1. CLI flags (--parallel, --no-color)
//  2. Environment variables (TALLY_PARALLEL, TALLY_NO_COLOR, NO_COLOR)
//  3. The root .tally.yaml (parallel)
//  4. Hardcoded defaults
//
// # File Lookup
//
// Without an explicit path, .tally.yaml is searched for in the working
// directory and then in each parent directory.
//
// # Includes
//
// A config may include other directories that carry their own .tally.yaml.
// Each include becomes a child build; its tasks are addressed as
// ":<include>:<task>". Include cycles are rejected. Only the root file's
// parallel setting is used.
//
// # Environment Files
//
// A task's env_file is read with godotenv relative to the config directory.
// Values from env take precedence over values from env_file.
package config
