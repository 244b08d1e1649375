// Package layer describes the service definition the operator installs into
// the process supervisor.
//
// A Layer has the shape of a Pebble layer: a summary, a description and a set
// of named services. The operator declares exactly one service, the blackbox
// exporter, whose command line points at the same config file the reconciler
// pushes.
package layer

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"gopkg.in/yaml.v3"
)

// Override policies understood by the supervisor.
const (
	OverrideReplace = "replace"
	OverrideMerge   = "merge"
)

// Startup policies.
const (
	StartupEnabled  = "enabled"
	StartupDisabled = "disabled"
)

// DefaultCommandTemplate starts the exporter against the pushed config file.
const DefaultCommandTemplate = "{{ .Binary }} --config.file={{ .ConfigPath }}"

// Layer is a declarative service definition merged into the supervisor's plan.
type Layer struct {
	Summary     string              `yaml:"summary,omitempty"`
	Description string              `yaml:"description,omitempty"`
	Services    map[string]*Service `yaml:"services,omitempty"`
}

// Service is a single service entry of a Layer.
type Service struct {
	Override string `yaml:"override"`
	Summary  string `yaml:"summary,omitempty"`
	Command  string `yaml:"command,omitempty"`
	Startup  string `yaml:"startup,omitempty"`
}

// Params are the inputs used to build the exporter layer.
type Params struct {
	ServiceName     string
	Binary          string
	ConfigPath      string
	CommandTemplate string
}

// New builds the exporter layer from params. The command line is produced by
// executing CommandTemplate with params as data; sprig functions are available.
func New(params Params) (*Layer, error) {
	if params.ServiceName == "" {
		return nil, fmt.Errorf("layer: service name is required")
	}

	command, err := renderCommand(params)
	if err != nil {
		return nil, err
	}

	return &Layer{
		Summary:     "blackbox exporter layer",
		Description: "pebble config layer for blackbox exporter",
		Services: map[string]*Service{
			params.ServiceName: {
				Override: OverrideReplace,
				Summary:  "blackbox exporter for prometheus",
				Command:  command,
				Startup:  StartupDisabled,
			},
		},
	}, nil
}

func renderCommand(params Params) (string, error) {
	text := params.CommandTemplate
	if text == "" {
		text = DefaultCommandTemplate
	}

	tmpl, err := template.New("command").Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("layer: invalid command template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("layer: failed to render command template: %w", err)
	}

	command := strings.TrimSpace(buf.String())
	if command == "" {
		return "", fmt.Errorf("layer: command template rendered an empty command")
	}
	return command, nil
}

// Marshal returns the YAML form of the layer as sent to the supervisor.
func (l *Layer) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("layer: failed to marshal: %w", err)
	}
	return data, nil
}

// Unmarshal parses a layer document.
func Unmarshal(data []byte) (*Layer, error) {
	var l Layer
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("layer: failed to parse: %w", err)
	}
	return &l, nil
}

// Combine applies overlay onto base following each service's override policy
// and returns the result. Neither argument is modified.
//
// A service with override "replace" (or one base does not know) replaces the
// base entry wholesale; "merge" only overwrites the fields overlay sets.
func Combine(base, overlay *Layer) (*Layer, error) {
	out := base.clone()
	if overlay == nil {
		return out, nil
	}
	if overlay.Summary != "" {
		out.Summary = overlay.Summary
	}
	if overlay.Description != "" {
		out.Description = overlay.Description
	}

	for name, svc := range overlay.Services {
		if svc == nil {
			continue
		}
		existing, ok := out.Services[name]
		switch {
		case svc.Override == OverrideReplace || !ok:
			if svc.Override != OverrideReplace && svc.Override != OverrideMerge {
				return nil, fmt.Errorf("layer: service %q has invalid override %q", name, svc.Override)
			}
			cp := *svc
			out.Services[name] = &cp
		case svc.Override == OverrideMerge:
			if svc.Summary != "" {
				existing.Summary = svc.Summary
			}
			if svc.Command != "" {
				existing.Command = svc.Command
			}
			if svc.Startup != "" {
				existing.Startup = svc.Startup
			}
		default:
			return nil, fmt.Errorf("layer: service %q has invalid override %q", name, svc.Override)
		}
	}
	return out, nil
}

func (l *Layer) clone() *Layer {
	out := &Layer{Services: map[string]*Service{}}
	if l == nil {
		return out
	}
	out.Summary = l.Summary
	out.Description = l.Description
	for name, svc := range l.Services {
		if svc == nil {
			continue
		}
		cp := *svc
		out.Services[name] = &cp
	}
	return out
}
