package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the name of a tally configuration file.
const FileName = ".tally.yaml"

var (
	// ErrNotFound is returned when no .tally.yaml exists in the directory or
	// any parent.
	ErrNotFound = errors.New(FileName + " not found (or any parent up to the root)")

	// ErrInvalid marks a config that parsed but failed validation.
	ErrInvalid = errors.New("invalid config")

	// ErrIncludeCycle marks an include chain that returns to one of its own files.
	ErrIncludeCycle = errors.New("include cycle")
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Task configures one test task.
type Task struct {
	Name    string            `yaml:"name"`
	Command []string          `yaml:"command"`
	Dir     string            `yaml:"dir"`
	Env     map[string]string `yaml:"env"`
	EnvFile string            `yaml:"env_file"`
}

// Include names a directory (or file) whose config becomes a child build.
type Include struct {
	Path string `yaml:"path"`
	Name string `yaml:"name"`
}

// Config is one parsed .tally.yaml. Load resolves task directories and
// environments and loads every include into Included.
type Config struct {
	Name     string    `yaml:"name"`
	Parallel int       `yaml:"parallel"`
	Tasks    []Task    `yaml:"tasks"`
	Includes []Include `yaml:"includes"`

	// Path is the absolute path of the file; Dir its directory.
	Path     string    `yaml:"-"`
	Dir      string    `yaml:"-"`
	Included []*Config `yaml:"-"`
}

// FindFile walks up from startDir until it finds a .tally.yaml.
func FindFile(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		configPath := filepath.Join(dir, FileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotFound
		}
		dir = parent
	}
}

// Parse decodes and validates a single config without resolving paths or
// includes. Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields of c that do not depend on the filesystem.
func (c *Config) Validate() error {
	if c.Name != "" && !namePattern.MatchString(c.Name) {
		return fmt.Errorf("%w: name %q must match %s", ErrInvalid, c.Name, namePattern)
	}
	if c.Parallel < 0 {
		return fmt.Errorf("%w: parallel must be >= 0, got %d", ErrInvalid, c.Parallel)
	}

	seen := make(map[string]bool)
	for i, t := range c.Tasks {
		if !namePattern.MatchString(t.Name) {
			return fmt.Errorf("%w: tasks[%d]: name %q must match %s", ErrInvalid, i, t.Name, namePattern)
		}
		if seen[t.Name] {
			return fmt.Errorf("%w: tasks[%d]: duplicate task %q", ErrInvalid, i, t.Name)
		}
		seen[t.Name] = true
		if len(t.Command) == 0 || t.Command[0] == "" {
			return fmt.Errorf("%w: task %q: command is empty", ErrInvalid, t.Name)
		}
	}

	includes := make(map[string]bool)
	for i, inc := range c.Includes {
		if inc.Path == "" {
			return fmt.Errorf("%w: includes[%d]: path is empty", ErrInvalid, i)
		}
		if inc.Name == "" {
			continue
		}
		if !namePattern.MatchString(inc.Name) {
			return fmt.Errorf("%w: includes[%d]: name %q must match %s", ErrInvalid, i, inc.Name, namePattern)
		}
		if includes[inc.Name] {
			return fmt.Errorf("%w: includes[%d]: duplicate include %q", ErrInvalid, i, inc.Name)
		}
		includes[inc.Name] = true
	}
	return nil
}

// Load reads the config at path and, recursively, every include.
func Load(path string) (*Config, error) {
	return load(path, nil)
}

func load(path string, stack []string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		abs = filepath.Join(abs, FileName)
	}
	for _, p := range stack {
		if p == abs {
			return nil, fmt.Errorf("%w: %s", ErrIncludeCycle, abs)
		}
	}

	data, err := os.ReadFile(abs) // #nosec G304 - config paths come from the user or their includes
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", abs, err)
	}
	cfg.Path = abs
	cfg.Dir = filepath.Dir(abs)
	if cfg.Name == "" {
		cfg.Name = filepath.Base(cfg.Dir)
	}

	for i := range cfg.Tasks {
		if err := cfg.resolveTask(&cfg.Tasks[i]); err != nil {
			return nil, fmt.Errorf("%s: task %q: %w", abs, cfg.Tasks[i].Name, err)
		}
	}

	stack = append(stack, abs)
	names := make(map[string]string)
	for _, inc := range cfg.Includes {
		child, err := load(cfg.rel(inc.Path), stack)
		if err != nil {
			return nil, err
		}
		if inc.Name != "" {
			child.Name = inc.Name
		}
		if prev, ok := names[child.Name]; ok {
			return nil, fmt.Errorf("%s: %w: include name %q used by %s and %s", abs, ErrInvalid, child.Name, prev, child.Path)
		}
		names[child.Name] = child.Path
		cfg.Included = append(cfg.Included, child)
	}
	return cfg, nil
}

// resolveTask makes the task directory absolute and folds env_file into Env.
func (c *Config) resolveTask(t *Task) error {
	t.Dir = c.rel(t.Dir)
	if t.EnvFile == "" {
		return nil
	}

	fromFile, err := godotenv.Read(c.rel(t.EnvFile))
	if err != nil {
		return fmt.Errorf("reading env_file: %w", err)
	}
	for k, v := range t.Env {
		fromFile[k] = v
	}
	t.Env = fromFile
	return nil
}

func (c *Config) rel(p string) string {
	if p == "" {
		return c.Dir
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}
