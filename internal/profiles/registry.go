package profiles

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/pelletier/go-toml/v2"

	"sprocket/internal/queue"
	"sprocket/internal/services"
)

//go:embed defaults.toml
var defaultDefinitions []byte

// Profile is a named operation preset. Parameters hold raw values exactly as
// written in the definitions document; the resolver normalizes and types
// them at submission time.
type Profile struct {
	Name        string
	Operation   queue.Operation
	Description string
	Parameters  map[string]any
}

// WorkflowStep references a profile within a workflow. A chained step takes
// its input from the preceding step's output and runs only after that step
// completes. Overrides replace individual profile parameters for this step.
type WorkflowStep struct {
	Profile   string         `toml:"profile"`
	Chained   bool           `toml:"chained"`
	Overrides map[string]any `toml:"overrides"`
}

// Workflow is a named ordered list of profile invocations.
type Workflow struct {
	Name        string
	Description string
	Jobs        []WorkflowStep
}

type profileDoc struct {
	Operation   string         `toml:"operation"`
	Description string         `toml:"description"`
	Parameters  map[string]any `toml:"parameters"`
}

type workflowDoc struct {
	Description string         `toml:"description"`
	Jobs        []WorkflowStep `toml:"jobs"`
}

type document struct {
	Profiles  map[string]profileDoc  `toml:"profiles"`
	Workflows map[string]workflowDoc `toml:"workflows"`
}

// Registry holds the validated, immutable set of profile and workflow
// definitions.
type Registry struct {
	profiles  map[string]Profile
	workflows map[string]Workflow
}

// Load builds the registry from the built-in definitions, then overlays the
// definitions file at path when one is given. User entries replace built-in
// entries of the same name. A missing definitions file is not an error; a
// malformed or inconsistent one is.
func Load(path string) (*Registry, error) {
	var builtin document
	if err := toml.Unmarshal(defaultDefinitions, &builtin); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "profiles", "load", "parse built-in definitions", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// Config names a definitions file that was never created; run on
			// the built-ins alone.
		case err != nil:
			return nil, services.Wrap(services.ErrConfiguration, "profiles", "load", fmt.Sprintf("read definitions file %s", path), err)
		default:
			var user document
			if err := toml.Unmarshal(data, &user); err != nil {
				return nil, services.Wrap(services.ErrConfiguration, "profiles", "load", fmt.Sprintf("parse definitions file %s", path), err)
			}
			for name, doc := range user.Profiles {
				if builtin.Profiles == nil {
					builtin.Profiles = make(map[string]profileDoc)
				}
				builtin.Profiles[name] = doc
			}
			for name, doc := range user.Workflows {
				if builtin.Workflows == nil {
					builtin.Workflows = make(map[string]workflowDoc)
				}
				builtin.Workflows[name] = doc
			}
		}
	}

	registry := &Registry{
		profiles:  make(map[string]Profile, len(builtin.Profiles)),
		workflows: make(map[string]Workflow, len(builtin.Workflows)),
	}

	for name, doc := range builtin.Profiles {
		op, ok := queue.ParseOperation(doc.Operation)
		if !ok {
			return nil, services.Wrap(services.ErrConfiguration, "profiles", "load", fmt.Sprintf("profile %q uses unknown operation %q", name, doc.Operation), nil)
		}
		registry.profiles[name] = Profile{
			Name:        name,
			Operation:   op,
			Description: doc.Description,
			Parameters:  doc.Parameters,
		}
	}

	for name, doc := range builtin.Workflows {
		if len(doc.Jobs) == 0 {
			return nil, services.Wrap(services.ErrConfiguration, "profiles", "load", fmt.Sprintf("workflow %q has no steps", name), nil)
		}
		if doc.Jobs[0].Chained {
			return nil, services.Wrap(services.ErrConfiguration, "profiles", "load", fmt.Sprintf("workflow %q chains its first step", name), nil)
		}
		for i, step := range doc.Jobs {
			if _, ok := registry.profiles[step.Profile]; !ok {
				return nil, services.Wrap(services.ErrConfiguration, "profiles", "load", fmt.Sprintf("workflow %q step %d references unknown profile %q", name, i+1, step.Profile), nil)
			}
		}
		registry.workflows[name] = Workflow{
			Name:        name,
			Description: doc.Description,
			Jobs:        doc.Jobs,
		}
	}

	return registry, nil
}

// ResolveProfile returns the profile with the given name. Parameters are
// copied so callers can layer overrides without mutating the registry.
func (r *Registry) ResolveProfile(name string) (Profile, error) {
	profile, ok := r.profiles[name]
	if !ok {
		return Profile{}, services.Wrap(services.ErrNotFound, "profiles", "resolve", fmt.Sprintf("profile %q not found", name), nil)
	}
	profile.Parameters = cloneParams(profile.Parameters)
	return profile, nil
}

// ResolveWorkflow returns the workflow with the given name.
func (r *Registry) ResolveWorkflow(name string) (Workflow, error) {
	workflow, ok := r.workflows[name]
	if !ok {
		return Workflow{}, services.Wrap(services.ErrNotFound, "profiles", "resolve", fmt.Sprintf("workflow %q not found", name), nil)
	}
	steps := make([]WorkflowStep, len(workflow.Jobs))
	for i, step := range workflow.Jobs {
		step.Overrides = cloneParams(step.Overrides)
		steps[i] = step
	}
	workflow.Jobs = steps
	return workflow, nil
}

// Profiles returns every profile sorted by name.
func (r *Registry) Profiles() []Profile {
	out := make([]Profile, 0, len(r.profiles))
	for _, profile := range r.profiles {
		profile.Parameters = cloneParams(profile.Parameters)
		out = append(out, profile)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Workflows returns every workflow sorted by name.
func (r *Registry) Workflows() []Workflow {
	out := make([]Workflow, 0, len(r.workflows))
	for _, workflow := range r.workflows {
		out = append(out, workflow)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func cloneParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	cp := make(map[string]any, len(params))
	for key, value := range params {
		cp[key] = value
	}
	return cp
}
