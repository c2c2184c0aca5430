package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/graceinfra/ibmisteps/internal/charset"
	"github.com/graceinfra/ibmisteps/types"
	"gopkg.in/yaml.v3"
)

const (
	DefaultServersFile  = "ibmisteps.yml"
	DefaultPipelineFile = "pipeline.yml"
)

// StepValidator knows the registered step types and their parameters.
type StepValidator interface {
	IsKnownType(typeName string) bool
	GetRegisteredTypes() []string
	Validate(step *types.Step) []string
}

// Step names end up in log file names.
var stepNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

var serverNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,31}$`)

// Object names as accepted by CL: 1-10 chars, starting with a letter or $#@.
var objectNameRegex = regexp.MustCompile(`^[A-Z$#@][A-Z0-9$#@_.]{0,9}$`)

func LoadServers(filename string) (*types.ServersConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	var cfg types.ServersConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML in %s: %w", filename, err)
	}

	if err := ValidateServers(&cfg); err != nil {
		return nil, fmt.Errorf("validation error in %s: %w", filename, err)
	}
	return &cfg, nil
}

func ValidateServers(cfg *types.ServersConfig) error {
	var errs []string

	if len(cfg.Servers) == 0 {
		errs = append(errs, "at least one server must be defined under the 'servers' list")
	}

	names := make(map[string]bool)
	for i, s := range cfg.Servers {
		serverCtx := fmt.Sprintf("server[%d]", i)
		if s.Name != "" {
			serverCtx = fmt.Sprintf("server[%d] (name: %q)", i, s.Name)
		}

		if s.Name == "" {
			errs = append(errs, fmt.Sprintf("server[%d]: field 'name' is required", i))
		} else {
			if !serverNameRegex.MatchString(s.Name) {
				errs = append(errs, fmt.Sprintf("%s: invalid name (letters, digits, '-' and '_' only)", serverCtx))
			}
			upperName := strings.ToUpper(s.Name)
			if names[upperName] {
				errs = append(errs, fmt.Sprintf("%s: duplicate server name found", serverCtx))
			}
			names[upperName] = true
		}

		if s.User == "" {
			errs = append(errs, fmt.Sprintf("%s: field 'user' is required", serverCtx))
		} else if len(s.User) > 10 {
			errs = append(errs, fmt.Sprintf("%s: user %q exceeds 10 characters", serverCtx, s.User))
		}

		if s.CCSID != 0 && !charset.Valid(s.CCSID) {
			errs = append(errs, fmt.Sprintf("%s: ccsid %d is outside %d-%d", serverCtx, s.CCSID, charset.MinCCSID, charset.MaxCCSID))
		}
		if s.Port < 0 || s.Port > 65535 {
			errs = append(errs, fmt.Sprintf("%s: port %d is not valid", serverCtx, s.Port))
		}

		switch s.Credentials {
		case "", types.CredentialsKeyring, types.CredentialsEnv:
		default:
			errs = append(errs, fmt.Sprintf("%s: invalid credentials %q; allowed values are: [%s %s]", serverCtx, s.Credentials, types.CredentialsEnv, types.CredentialsKeyring))
		}
	}

	if len(errs) > 0 {
		return errors.New("server configuration validation failed:\n- " + strings.Join(errs, "\n- "))
	}
	return nil
}

func LoadPipeline(filename string) (*types.Pipeline, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline file %s: %w", filename, err)
	}

	var p types.Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse YAML in %s: %w", filename, err)
	}
	return &p, nil
}

// ValidatePipeline checks the pipeline against the known servers and step types
// and reports every problem at once.
func ValidatePipeline(p *types.Pipeline, servers *types.ServersConfig, steps StepValidator) error {
	var errs []string

	if p.Server == "" {
		errs = append(errs, "field 'server' is required")
	} else if servers != nil {
		if _, ok := servers.Find(p.Server); !ok {
			errs = append(errs, fmt.Sprintf("server %q is not defined in the servers file", p.Server))
		}
	}

	if p.IASP != "" && !strings.EqualFold(p.IASP, "*SYSBAS") && !objectNameRegex.MatchString(strings.ToUpper(p.IASP)) {
		errs = append(errs, fmt.Sprintf("invalid 'iasp' %q", p.IASP))
	}

	if len(p.Steps) == 0 {
		errs = append(errs, "at least one step must be defined under the 'steps' list")
	}

	names := make(map[string]bool)
	for i, step := range p.Steps {
		stepCtx := fmt.Sprintf("step[%d]", i)
		if step.Name != "" {
			stepCtx = fmt.Sprintf("step[%d] (name: %q)", i, step.Name)
		}

		if step.Name == "" {
			errs = append(errs, fmt.Sprintf("step[%d]: field 'name' is required", i))
		} else {
			if !stepNameRegex.MatchString(step.Name) {
				errs = append(errs, fmt.Sprintf("%s: invalid name (letters, digits, '.', '-' and '_' only, at most 64 characters)", stepCtx))
			}
			upperName := strings.ToUpper(step.Name)
			if names[upperName] {
				errs = append(errs, fmt.Sprintf("%s: duplicate step name found", stepCtx))
			}
			names[upperName] = true
		}

		if step.Type == "" {
			errs = append(errs, fmt.Sprintf("%s: field 'type' is required", stepCtx))
			continue
		}
		if !steps.IsKnownType(step.Type) {
			errs = append(errs, fmt.Sprintf("%s: invalid type %q; allowed types are: %v", stepCtx, step.Type, steps.GetRegisteredTypes()))
			continue
		}
		for _, e := range steps.Validate(step) {
			errs = append(errs, fmt.Sprintf("%s: %s", stepCtx, e))
		}
	}

	if len(errs) > 0 {
		return errors.New("pipeline validation failed:\n- " + strings.Join(errs, "\n- "))
	}
	return nil
}

// ValidObjectName reports whether name is a valid library or object name.
func ValidObjectName(name string) bool {
	return objectNameRegex.MatchString(strings.ToUpper(name))
}
