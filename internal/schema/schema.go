// Package schema checks decoded response bodies against CUE definitions.
//
// The definitions live in schemas.cue and are compiled once. A body is
// encoded into CUE, unified with the definition, and validated for
// concreteness, so both wrong types and missing required fields are reported.
package schema

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed schemas.cue
var source string

// Name selects a definition.
type Name string

const (
	Health     Name = "#Health"
	User       Name = "#User"
	Auth       Name = "#Auth"
	Entity     Name = "#Entity"
	EntityList Name = "#EntityList"
	Message    Name = "#Message"
)

// MismatchError reports a body that does not satisfy a definition.
type MismatchError struct {
	Schema  Name
	Message string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("body does not match %s: %s", e.Schema, e.Message)
}

// Registry holds compiled definitions. It is safe for concurrent use.
type Registry struct {
	mu   sync.Mutex
	ctx  *cue.Context
	root cue.Value
}

// New compiles src into a Registry.
func New(src string) (*Registry, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString(src, cue.Filename("schemas.cue"))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compiling schemas: %w", firstError(err))
	}
	return &Registry{ctx: ctx, root: root}, nil
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
	defaultErr  error
)

// Default returns the registry built from the embedded definitions.
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		defaultReg, defaultErr = New(source)
	})
	return defaultReg, defaultErr
}

// Validate checks body against the embedded definition name.
func Validate(name Name, body any) error {
	reg, err := Default()
	if err != nil {
		return err
	}
	return reg.Validate(name, body)
}

// Validate checks body against definition name.
func (r *Registry) Validate(name Name, body any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	def := r.root.LookupPath(cue.ParsePath(string(name)))
	if !def.Exists() {
		return fmt.Errorf("unknown schema %s", name)
	}

	val := r.ctx.Encode(body)
	if err := val.Err(); err != nil {
		return &MismatchError{Schema: name, Message: firstError(err).Error()}
	}

	if err := def.Unify(val).Validate(cue.Concrete(true)); err != nil {
		return &MismatchError{Schema: name, Message: firstError(err).Error()}
	}
	return nil
}

// firstError reduces a CUE error list to its first entry.
func firstError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	return errs[0]
}
