package steps

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	execctx "github.com/graceinfra/ibmisteps/internal/context"
	"github.com/graceinfra/ibmisteps/internal/models"
	"github.com/graceinfra/ibmisteps/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StepHandler defines the interface every step type implements.
type StepHandler interface {
	// Type returns the identifier used in the 'type' field of pipeline.yml.
	Type() string

	// Validate checks the step's 'with' parameters and returns one message per problem.
	Validate(step *types.Step) []string

	// Execute runs the step. It stores its results in record and returns an
	// error when the step failed; timing and status are filled in by the caller.
	Execute(ctx context.Context, ec *execctx.ExecutionContext, step *types.Step, record *models.StepExecutionRecord, logger zerolog.Logger) error
}

// Registry holds registered step handlers.
type Registry struct {
	handlers map[string]StepHandler
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]StepHandler),
	}
}

// NewDefaultRegistry returns a registry with every built-in step type.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&CommandHandler{})
	r.Register(&SQLHandler{})
	r.Register(&SpooledFilesHandler{})
	r.Register(&WaitJobHandler{})
	r.Register(&GetIFSHandler{})
	r.Register(&PutIFSHandler{})
	r.Register(&GetSAVFHandler{})
	r.Register(&PutSAVFHandler{})
	r.Register(&ShellHandler{})
	return r
}

// Register adds a handler. It panics if the type is already registered,
// which only happens on a wiring mistake at startup.
func (r *Registry) Register(handler StepHandler) {
	typeName := handler.Type()
	if _, exists := r.handlers[typeName]; exists {
		panic(fmt.Sprintf("handler for type %q already registered", typeName))
	}
	r.handlers[typeName] = handler
	log.Debug().Str("handler_type", typeName).Msg("Registered step handler")
}

func (r *Registry) Get(typeName string) (StepHandler, bool) {
	handler, exists := r.handlers[typeName]
	return handler, exists
}

// MustGet panics if the handler is not found. Use it after validation.
func (r *Registry) MustGet(typeName string) StepHandler {
	handler, exists := r.Get(typeName)
	if !exists {
		panic(fmt.Sprintf("critical error: no handler registered for type %q", typeName))
	}
	return handler
}

func (r *Registry) IsKnownType(typeName string) bool {
	_, exists := r.Get(typeName)
	return exists
}

// GetRegisteredTypes returns a sorted list of known step types.
func (r *Registry) GetRegisteredTypes() []string {
	keys := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate dispatches to the step's handler. Unknown types yield no messages;
// the caller reports those.
func (r *Registry) Validate(step *types.Step) []string {
	handler, ok := r.Get(step.Type)
	if !ok {
		return nil
	}
	return handler.Validate(step)
}

// --- Parameter helpers ---

func required(step *types.Step, keys ...string) []string {
	var errs []string
	for _, key := range keys {
		if strings.TrimSpace(step.String(key)) == "" {
			errs = append(errs, fmt.Sprintf("parameter '%s' is required", key))
		}
	}
	return errs
}

func checkBool(step *types.Step, key string) []string {
	if _, err := step.Bool(key, false); err != nil {
		return []string{err.Error()}
	}
	return nil
}

// localPath resolves p against the run's working directory.
func localPath(ec *execctx.ExecutionContext, p string) string {
	if filepath.IsAbs(p) || ec.WorkDir == "" {
		return p
	}
	return filepath.Join(ec.WorkDir, p)
}

// failOnError reads the 'failOnError' parameter, which defaults to true.
func failOnError(step *types.Step) bool {
	fail, err := step.Bool("failOnError", true)
	return err != nil || fail
}
