package flow

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"intake-workers/internal/intake/state"
	"intake-workers/internal/models"
)

// Engine is one sub-flow state machine. It owns a disjoint set of routed states
// and only ever leaves them through EffectComplete or EffectExit.
type Engine interface {
	Name() string
	States() []state.State
	ServiceTypes() []models.ServiceType
	// Begin runs when a menu action starts serviceType. The session's accumulator
	// has already been reset for it.
	Begin(ctx context.Context, sess *models.Session, serviceType models.ServiceType) (Directive, error)
	// Handle advances the session by one turn while it sits in one of States().
	Handle(ctx context.Context, sess *models.Session, in Input) (Directive, error)
}

// Registry is the explicit state -> engine and service type -> engine table.
type Registry struct {
	byState   map[state.State]Engine
	byService map[models.ServiceType]Engine
	engines   []Engine
}

// NewRegistry builds the routing table and rejects overlaps, non-routed states and gaps.
func NewRegistry(engines ...Engine) (*Registry, error) {
	r := &Registry{
		byState:   map[state.State]Engine{},
		byService: map[models.ServiceType]Engine{},
	}

	for _, e := range engines {
		for _, s := range e.States() {
			if !s.IsRouted() {
				return nil, fmt.Errorf("engine %s declares non-routed state %s", e.Name(), s)
			}
			if other, ok := r.byState[s]; ok {
				return nil, fmt.Errorf("state %s owned by both %s and %s", s, other.Name(), e.Name())
			}
			r.byState[s] = e
		}
		for _, st := range e.ServiceTypes() {
			if other, ok := r.byService[st]; ok {
				return nil, fmt.Errorf("service type %s handled by both %s and %s", st, other.Name(), e.Name())
			}
			r.byService[st] = e
		}
		r.engines = append(r.engines, e)
	}

	if err := r.CheckExhaustive(); err != nil {
		return nil, err
	}
	return r, nil
}

// CheckExhaustive verifies every routed state and every service type has an owner.
func (r *Registry) CheckExhaustive() error {
	var missing []string
	for _, s := range state.Routed() {
		if _, ok := r.byState[s]; !ok {
			missing = append(missing, "state "+string(s))
		}
	}
	for _, st := range models.ServiceTypes {
		if _, ok := r.byService[st]; !ok {
			missing = append(missing, "service "+string(st))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("unowned: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Owner returns the engine owning s.
func (r *Registry) Owner(s state.State) (Engine, bool) {
	e, ok := r.byState[s]
	return e, ok
}

// ForService returns the engine that runs serviceType.
func (r *Registry) ForService(serviceType models.ServiceType) (Engine, bool) {
	e, ok := r.byService[serviceType]
	return e, ok
}

func (r *Registry) Engines() []Engine {
	return append([]Engine(nil), r.engines...)
}
