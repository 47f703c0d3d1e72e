package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/tally/pkg/build"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestFindFile_WalksUpToParentDirectory(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, FileName), "name: app\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	got, err := FindFile(nested)
	require.NoError(t, err)

	want, _ := filepath.EvalSymlinks(filepath.Join(root, FileName))
	gotResolved, _ := filepath.EvalSymlinks(got)
	assert.Equal(t, want, gotResolved)
}

func TestFindFile_ReturnsErrNotFound(t *testing.T) {
	t.Parallel()

	_, err := FindFile(t.TempDir())
	// A .tally.yaml above the temp dir would make this flaky; none is expected.
	require.ErrorIs(t, err, ErrNotFound)
}

func TestParse_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name:  "valid config",
			input: "name: app\nparallel: 2\ntasks:\n  - name: unit\n    command: [go, test, -json, ./...]\n",
		},
		{
			name:  "empty file",
			input: "",
		},
		{
			name:    "unknown key",
			input:   "name: app\nparalel: 2\n",
			wantErr: "field paralel not found",
		},
		{
			name:    "negative parallel",
			input:   "parallel: -1\n",
			wantErr: "parallel must be >= 0",
		},
		{
			name:    "task without command",
			input:   "tasks:\n  - name: unit\n",
			wantErr: `task "unit": command is empty`,
		},
		{
			name:    "duplicate task",
			input:   "tasks:\n  - name: unit\n    command: [go]\n  - name: unit\n    command: [go]\n",
			wantErr: `duplicate task "unit"`,
		},
		{
			name:    "task name with colon",
			input:   "tasks:\n  - name: a:b\n    command: [go]\n",
			wantErr: `name "a:b" must match`,
		},
		{
			name:    "include without path",
			input:   "includes:\n  - name: lib\n",
			wantErr: "path is empty",
		},
		{
			name:    "duplicate include name",
			input:   "includes:\n  - path: a\n    name: lib\n  - path: b\n    name: lib\n",
			wantErr: `duplicate include "lib"`,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse(strings.NewReader(tc.input))
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoad_ResolvesDirsEnvAndIncludes(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, FileName), `
name: app
parallel: 3
tasks:
  - name: unit
    command: [go, test, -json, ./...]
    env:
      SHARED: from-env
    env_file: .env.test
includes:
  - path: lib
  - path: tools/gen
    name: generator
`)
	writeFile(t, filepath.Join(root, ".env.test"), "SHARED=from-file\nONLY_FILE=yes\n")
	writeFile(t, filepath.Join(root, "lib", FileName), `
tasks:
  - name: unit
    command: [go, test, -json, ./...]
    dir: sub
`)
	writeFile(t, filepath.Join(root, "tools", "gen", FileName), "name: gen\n")

	cfg, err := Load(filepath.Join(root, FileName))
	require.NoError(t, err)

	assert.Equal(t, "app", cfg.Name)
	assert.Equal(t, 3, cfg.Parallel)
	require.Len(t, cfg.Tasks, 1)
	assert.Equal(t, root, cfg.Tasks[0].Dir)
	assert.Equal(t, map[string]string{"SHARED": "from-env", "ONLY_FILE": "yes"}, cfg.Tasks[0].Env)

	require.Len(t, cfg.Included, 2)
	lib := cfg.Included[0]
	assert.Equal(t, "lib", lib.Name, "include name defaults to the directory name")
	assert.Equal(t, filepath.Join(root, "lib", "sub"), lib.Tasks[0].Dir)
	assert.Equal(t, "generator", cfg.Included[1].Name)
}

func TestLoad_RejectsIncludeCycles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", FileName), "includes:\n  - path: ../b\n")
	writeFile(t, filepath.Join(root, "b", FileName), "includes:\n  - path: ../a\n")

	_, err := Load(filepath.Join(root, "a"))
	require.ErrorIs(t, err, ErrIncludeCycle)
}

func TestLoad_RejectsCollidingIncludeNames(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, FileName), "includes:\n  - path: x/lib\n  - path: y/lib\n")
	writeFile(t, filepath.Join(root, "x", "lib", FileName), "")
	writeFile(t, filepath.Join(root, "y", "lib", FileName), "")

	_, err := Load(root)
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), `include name "lib"`)
}

func TestLoad_MissingEnvFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, FileName), "tasks:\n  - name: unit\n    command: [go]\n    env_file: missing.env\n")

	_, err := Load(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading env_file")
}

func TestNewBuild_MirrorsIncludes(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Name:  "app",
		Tasks: []Task{{Name: "unit", Command: []string{"go"}}},
		Included: []*Config{
			{Name: "lib", Tasks: []Task{{Name: "unit", Command: []string{"go"}}, {Name: "race", Command: []string{"go"}}}},
		},
	}

	var applied []string
	root, err := NewBuild(cfg, func(p *build.Project) error {
		applied = append(applied, p.Path())
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{":", ":lib"}, applied)

	var paths []string
	root.Walk(func(b *build.Build) {
		for _, task := range b.RootProject().Tasks() {
			paths = append(paths, task.Path())
		}
	})
	assert.Equal(t, []string{":unit", ":lib:unit", ":lib:race"}, paths)
}

func TestResolve_Precedence(t *testing.T) {
	two, four := 2, 4
	yes := true

	t.Setenv("TALLY_PARALLEL", "")
	t.Setenv("TALLY_NO_COLOR", "")
	t.Setenv("NO_COLOR", "")

	s, err := Resolve(Flags{}, &Config{Parallel: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Parallel)
	assert.Equal(t, "file", s.ParallelSource)
	assert.False(t, s.NoColor)

	t.Setenv("TALLY_PARALLEL", "4")
	s, err = Resolve(Flags{}, &Config{Parallel: 3})
	require.NoError(t, err)
	assert.Equal(t, four, s.Parallel)
	assert.Equal(t, "env", s.ParallelSource)

	s, err = Resolve(Flags{Parallel: &two, NoColor: &yes}, &Config{Parallel: 3})
	require.NoError(t, err)
	assert.Equal(t, two, s.Parallel)
	assert.Equal(t, "cli", s.ParallelSource)
	assert.True(t, s.NoColor)
	assert.Equal(t, "cli", s.NoColorSource)

	t.Setenv("TALLY_PARALLEL", "")
	t.Setenv("NO_COLOR", "1")
	s, err = Resolve(Flags{}, nil)
	require.NoError(t, err)
	assert.Positive(t, s.Parallel)
	assert.Equal(t, "default", s.ParallelSource)
	assert.True(t, s.NoColor)
	assert.Equal(t, "env", s.NoColorSource)
}

func TestResolve_RejectsBadParallel(t *testing.T) {
	t.Setenv("TALLY_PARALLEL", "many")
	_, err := Resolve(Flags{}, nil)
	require.ErrorIs(t, err, ErrInvalid)

	t.Setenv("TALLY_PARALLEL", "")
	neg := -1
	_, err = Resolve(Flags{Parallel: &neg}, nil)
	require.ErrorIs(t, err, ErrInvalid)
}
