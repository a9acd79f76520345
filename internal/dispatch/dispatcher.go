// Package dispatch turns caller requests into engine calls and normalizes the replies.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/michaelbrown/gauntlet/internal/catalog"
	"github.com/michaelbrown/gauntlet/internal/engine"
)

var ErrValidation = errors.New("validation error")

// Bounds for a caller-supplied run timeout, in milliseconds.
const (
	MinRunTimeout = 1
	MaxRunTimeout = 3000
)

// Resolver finds the runtime serving a language/version query.
type Resolver interface {
	Resolve(ctx context.Context, language string, version *string) (catalog.Runtime, error)
}

// Engine runs a program remotely.
type Engine interface {
	Execute(ctx context.Context, req engine.ExecuteRequest) (*engine.Execution, error)
}

// Dispatcher validates a Request, resolves its runtime, calls the engine and
// normalizes the result according to its Profile.
type Dispatcher struct {
	engine   Engine
	resolver Resolver
	profile  Profile
}

// New creates a Dispatcher.
func New(eng Engine, resolver Resolver, profile Profile) *Dispatcher {
	return &Dispatcher{engine: eng, resolver: resolver, profile: profile}
}

// Profile returns the compatibility profile in use.
func (d *Dispatcher) Profile() Profile {
	return d.profile
}

// Execute runs req once. No retries are attempted.
func (d *Dispatcher) Execute(ctx context.Context, req Request) (Execution, error) {
	if err := d.validate(req); err != nil {
		return Execution{}, err
	}

	rt, err := d.resolver.Resolve(ctx, req.Language, req.Version)
	if err != nil {
		return Execution{}, err
	}

	res, err := d.engine.Execute(ctx, d.BuildRequest(rt, req))
	if err != nil {
		return Execution{}, err
	}
	return Normalize(d.profile, res), nil
}

func (d *Dispatcher) validate(req Request) error {
	if req.RunTimeout == nil || !d.profile.AllowRunTimeout {
		return nil
	}
	if t := *req.RunTimeout; t < MinRunTimeout || t > MaxRunTimeout {
		return fmt.Errorf("%w: run_timeout must be between %d and %d ms, got %d", ErrValidation, MinRunTimeout, MaxRunTimeout, t)
	}
	return nil
}

// BuildRequest assembles the engine request for req on runtime rt.
func (d *Dispatcher) BuildRequest(rt catalog.Runtime, req Request) engine.ExecuteRequest {
	memory := engine.MemoryLimit
	er := engine.ExecuteRequest{
		Language:           rt.Language,
		Version:            rt.Version,
		Files:              []engine.File{{Name: d.profile.FileName, Content: req.Code}},
		CompileMemoryLimit: &memory,
		RunMemoryLimit:     &memory,
	}

	if req.Input != nil {
		switch d.profile.InputMode {
		case InputArgs:
			er.Args = lines(*req.Input)
		case InputBoth:
			er.Stdin = req.Input
			er.Args = lines(*req.Input)
		default:
			er.Stdin = req.Input
		}
	}

	if d.profile.AllowRunTimeout && req.RunTimeout != nil {
		t := *req.RunTimeout
		er.RunTimeout = &t
	}
	return er
}

// lines splits s on newlines, dropping a trailing empty line and any carriage returns.
func lines(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	for i, p := range parts {
		parts[i] = strings.TrimSuffix(p, "\r")
	}
	return parts
}
