package health

import (
	"context"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusPresent = "present"
	StatusMissing = "missing"
)

// Checker represents a dependency health check.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

type checkFunc struct {
	name string
	fn   func(ctx context.Context) error
}

func (c checkFunc) Name() string                    { return c.name }
func (c checkFunc) Check(ctx context.Context) error { return c.fn(ctx) }

// NewChecker adapts a function to a Checker.
func NewChecker(name string, fn func(ctx context.Context) error) Checker {
	return checkFunc{name: name, fn: fn}
}

// Failed is a checker for a dependency that never initialized; it always
// reports err.
func Failed(name string, err error) Checker {
	return checkFunc{name: name, fn: func(context.Context) error { return err }}
}

// Report is the JSON body served on /health.
type Report struct {
	EnvironmentVariables map[string]string  `json:"environment_variables"`
	Dependencies         map[string]string  `json:"dependencies"`
	InitializationErrors map[string]*string `json:"initialization_errors"`
}

// OK reports whether every variable is present and every dependency is ok.
func (r Report) OK() bool {
	for _, v := range r.EnvironmentVariables {
		if v != StatusPresent {
			return false
		}
	}
	for _, v := range r.Dependencies {
		if v != StatusOK {
			return false
		}
	}
	return true
}

// Service aggregates environment presence, dependency checkers and the
// errors recorded while the process was starting.
type Service struct {
	envKeys  []string
	checkers []Checker
	timeout  time.Duration
	lookup   func(string) (string, bool)

	mu         sync.RWMutex
	initErrors map[string]*string
}

// NewService builds a service reporting on envKeys and checkers.
func NewService(envKeys []string, checkers ...Checker) *Service {
	return &Service{
		envKeys:    envKeys,
		checkers:   checkers,
		timeout:    3 * time.Second,
		lookup:     os.LookupEnv,
		initErrors: map[string]*string{},
	}
}

// AddChecker registers another dependency check.
func (s *Service) AddChecker(c Checker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkers = append(s.checkers, c)
}

// RecordInit stores the outcome of initializing component. A nil err is
// reported as null.
func (s *Service) RecordInit(component string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		s.initErrors[component] = nil
		return
	}
	msg := err.Error()
	s.initErrors[component] = &msg
}

// Report runs every checker concurrently and assembles the health report.
func (s *Service) Report(ctx context.Context) Report {
	s.mu.RLock()
	checkers := append([]Checker(nil), s.checkers...)
	initErrors := make(map[string]*string, len(s.initErrors))
	for k, v := range s.initErrors {
		initErrors[k] = v
	}
	s.mu.RUnlock()

	env := make(map[string]string, len(s.envKeys))
	for _, key := range s.envKeys {
		if v, ok := s.lookup(key); ok && v != "" {
			env[key] = StatusPresent
		} else {
			env[key] = StatusMissing
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	results := make([]string, len(checkers))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range checkers {
		g.Go(func() error {
			if err := c.Check(gctx); err != nil {
				results[i] = StatusError + ": " + err.Error()
			} else {
				results[i] = StatusOK
			}
			return nil
		})
	}
	_ = g.Wait()

	deps := make(map[string]string, len(checkers))
	for i, c := range checkers {
		deps[c.Name()] = results[i]
	}

	return Report{
		EnvironmentVariables: env,
		Dependencies:         deps,
		InitializationErrors: initErrors,
	}
}
