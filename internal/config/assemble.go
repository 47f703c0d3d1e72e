package config

import (
	"github.com/dkoosis/tally/pkg/build"
)

// NewBuild turns cfg and its includes into a build hierarchy. apply, when
// non-nil, runs for each build's root project before its tasks are added.
func NewBuild(cfg *Config, apply func(*build.Project) error, opts ...build.Option) (*build.Build, error) {
	root := build.New(cfg.Name, opts...)
	if err := populate(root, cfg, apply); err != nil {
		return nil, err
	}
	return root, nil
}

func populate(b *build.Build, cfg *Config, apply func(*build.Project) error) error {
	project := b.RootProject()
	if apply != nil {
		if err := apply(project); err != nil {
			return err
		}
	}
	for _, t := range cfg.Tasks {
		spec := build.TaskSpec{
			Name:    t.Name,
			Command: t.Command,
			Dir:     t.Dir,
			Env:     t.Env,
		}
		if _, err := project.AddTask(spec); err != nil {
			return err
		}
	}
	for _, child := range cfg.Included {
		if err := populate(b.Include(child.Name), child, apply); err != nil {
			return err
		}
	}
	return nil
}
