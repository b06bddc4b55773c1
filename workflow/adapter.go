package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Collaborator is an external stage (a classifier, a generator, a remote
// service) invoked through declared inputs and outputs. It never sees or
// mutates workflow state directly.
type Collaborator interface {
	Invoke(ctx context.Context, inputs map[string]any) (map[string]any, error)
}

// CollaboratorFunc adapts a function to Collaborator.
type CollaboratorFunc func(ctx context.Context, inputs map[string]any) (map[string]any, error)

// Invoke implements Collaborator.
func (f CollaboratorFunc) Invoke(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	return f(ctx, inputs)
}

// ParseError signals that a collaborator produced output that could not be
// interpreted. The adapter answers it with the configured defaults instead
// of failing the node.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("collaborator output could not be parsed: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Validator checks one output field. A non-nil error replaces the value with its default.
type Validator func(v any) error

// Adapter wraps a Collaborator as a Task. It projects the snapshot onto the
// read set, keeps only write-set fields of the output, and substitutes
// per-field defaults for missing, invalid or unparsable output.
type Adapter struct {
	name       string
	collab     Collaborator
	reads      []string
	writes     []string
	defaults   map[string]any
	validators map[string]Validator
	critical   bool
	timeout    time.Duration
	logger     *zap.Logger
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithReads declares the fields passed to the collaborator.
func WithReads(fields ...string) AdapterOption {
	return func(a *Adapter) { a.reads = append(a.reads, fields...) }
}

// WithWrites declares the fields accepted from the collaborator.
func WithWrites(fields ...string) AdapterOption {
	return func(a *Adapter) { a.writes = append(a.writes, fields...) }
}

// WithDefault sets the value used for field when the collaborator omits it,
// returns an invalid value, or returns a ParseError. The field is added to
// the write set if missing.
func WithDefault(field string, value any) AdapterOption {
	return func(a *Adapter) {
		a.defaults[field] = value
		for _, w := range a.writes {
			if w == field {
				return
			}
		}
		a.writes = append(a.writes, field)
	}
}

// WithValidator checks field before it is accepted.
func WithValidator(field string, v Validator) AdapterOption {
	return func(a *Adapter) { a.validators[field] = v }
}

// AsCritical marks the resulting node critical.
func AsCritical() AdapterOption {
	return func(a *Adapter) { a.critical = true }
}

// WithAdapterTimeout sets the node timeout of the resulting node.
func WithAdapterTimeout(d time.Duration) AdapterOption {
	return func(a *Adapter) { a.timeout = d }
}

// WithAdapterLogger sets the adapter logger.
func WithAdapterLogger(logger *zap.Logger) AdapterOption {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAdapter creates an adapter named name around c.
func NewAdapter(name string, c Collaborator, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		name:       name,
		collab:     c,
		defaults:   make(map[string]any),
		validators: make(map[string]Validator),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(zap.String("component", "collaborator"), zap.String("node", name))
	return a
}

// Name returns the node name the adapter registers under.
func (a *Adapter) Name() string { return a.name }

// Node describes the adapter as a graph node.
func (a *Adapter) Node() Node {
	return Node{
		Name:     a.name,
		Task:     a,
		Reads:    append([]string(nil), a.reads...),
		Writes:   append([]string(nil), a.writes...),
		Critical: a.critical,
		Timeout:  a.timeout,
	}
}

// Execute implements Task.
func (a *Adapter) Execute(ctx context.Context, snap Snapshot) (Update, error) {
	out, err := a.collab.Invoke(ctx, snap.Project(a.reads))
	if err != nil {
		var pe *ParseError
		if !errors.As(err, &pe) {
			return nil, err
		}
		a.logger.Warn("collaborator output unparsable, using defaults", zap.Error(err))
		return a.defaultsOnly(), nil
	}

	update := make(Update, len(a.writes))
	for _, field := range a.writes {
		v, ok := out[field]
		if ok {
			if validate, has := a.validators[field]; has {
				if verr := validate(v); verr != nil {
					a.logger.Debug("collaborator field invalid, using default", zap.String("field", field), zap.Error(verr))
					ok = false
				}
			}
		}
		if !ok {
			def, has := a.defaults[field]
			if !has {
				continue
			}
			v = def
		}
		update[field] = v
	}
	for field := range out {
		if _, kept := update[field]; !kept && !a.declaresWrite(field) {
			a.logger.Debug("dropping undeclared collaborator output", zap.String("field", field))
		}
	}
	return update, nil
}

func (a *Adapter) declaresWrite(field string) bool {
	for _, w := range a.writes {
		if w == field {
			return true
		}
	}
	return false
}

func (a *Adapter) defaultsOnly() Update {
	update := make(Update, len(a.defaults))
	for field, v := range a.defaults {
		update[field] = v
	}
	return update
}
