package challenge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// State is a challenge instance's lifecycle state. No instance transitions
// concurrently with itself.
type State int

const (
	StateUnstarted State = iota
	StateStarting
	StateStarted
	StateStartFailed
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateStarting:
		return "starting"
	case StateStarted:
		return "started"
	case StateStartFailed:
		return "start-failed"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var startFailuresMetric = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ctfkit",
	Subsystem: "challenge",
	Name:      "start_failures_total",
	Help:      "Number of challenge instances that failed to start",
}, []string{"cid"})

type instance struct {
	ch Challenge

	mu    sync.Mutex
	state State
}

func (i *instance) setState(s State) {
	i.mu.Lock()
	i.state = s
	i.mu.Unlock()
}

func (i *instance) getState() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Set owns every challenge instance in the process and drives their
// concurrent startup and shutdown with per-instance fault isolation.
type Set struct {
	env       *Env
	instances map[string]*instance
}

// NewSet resolves every configured cid through the registry into an
// instance. An unresolvable kind fails construction outright; that is a
// deployment misconfiguration, surfaced at initialization.
func NewSet(ctx context.Context, reg *Registry, env *Env) (*Set, error) {
	cids, err := env.Store.Challenges(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading configured challenges: %w", err)
	}

	s := &Set{
		env:       env,
		instances: make(map[string]*instance, len(cids)),
	}
	var merr *multierror.Error
	for _, cid := range cids {
		ch, err := reg.Instantiate(cid, env)
		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("instantiating %s: %w", cid, err))
			continue
		}
		s.instances[cid] = &instance{ch: ch}
	}
	if err := merr.ErrorOrNil(); err != nil {
		// Report every misconfigured cid at once instead of one per boot.
		return nil, err
	}
	env.Logger().Info("challenges resolved",
		zap.Int("instances", len(s.instances)),
		zap.Strings("kinds", reg.Kinds()),
	)
	return s, nil
}

// Get returns the instance for a cid.
func (s *Set) Get(cid string) (Challenge, bool) {
	inst, ok := s.instances[cid]
	if !ok {
		return nil, false
	}
	return inst.ch, true
}

// CIDs returns the sorted identifiers of all instances.
func (s *Set) CIDs() []string {
	cids := make([]string, 0, len(s.instances))
	for cid := range s.instances {
		cids = append(cids, cid)
	}
	sort.Strings(cids)
	return cids
}

// State returns the lifecycle state of a cid's instance.
func (s *Set) State(cid string) State {
	inst, ok := s.instances[cid]
	if !ok {
		return StateUnstarted
	}
	return inst.getState()
}

// StartAll starts every instance concurrently. Each instance's failure is
// absorbed and logged under that instance's namespace; it never blocks or
// aborts the startup of any sibling. A failed instance is marked so its
// Stop is skipped later. No timeout is imposed; a hung Start simply delays
// the fan-in join.
func (s *Set) StartAll(ctx context.Context) {
	var wg sync.WaitGroup
	for cid, inst := range s.instances {
		wg.Add(1)
		go func(cid string, inst *instance) {
			defer wg.Done()
			s.startOne(ctx, cid, inst)
		}(cid, inst)
	}
	wg.Wait()
}

func (s *Set) startOne(ctx context.Context, cid string, inst *instance) {
	logger := s.env.Logger().Named(cid)
	inst.setState(StateStarting)
	if err := capture(func() error { return inst.ch.Start(ctx) }); err != nil {
		logger.Error("failed to start", zap.Error(err))
		startFailuresMetric.WithLabelValues(cid).Inc()
		inst.setState(StateStartFailed)
		return
	}
	inst.setState(StateStarted)
}

// StopAll stops every started instance concurrently. Instances that never
// started are never stopped. Failures are logged, never propagated, and
// never block stopping of siblings.
func (s *Set) StopAll(ctx context.Context) {
	var wg sync.WaitGroup
	for cid, inst := range s.instances {
		if inst.getState() != StateStarted {
			continue
		}
		wg.Add(1)
		go func(cid string, inst *instance) {
			defer wg.Done()
			s.stopOne(ctx, cid, inst)
		}(cid, inst)
	}
	wg.Wait()
}

func (s *Set) stopOne(ctx context.Context, cid string, inst *instance) {
	logger := s.env.Logger().Named(cid)
	inst.setState(StateStopping)
	if err := capture(func() error { return inst.ch.Stop(ctx) }); err != nil {
		logger.Error("failed to stop", zap.Error(err))
	} else {
		logger.Debug("stopped")
	}
	inst.setState(StateStopped)
}

// Dispatch routes a request from the external router to a challenge's
// HandleRequest. A plugin fault is absorbed here and surfaced as an inert
// server-error response, never as a crash of the serving layer.
func (s *Set) Dispatch(ctx context.Context, user, cid string, req *http.Request) *Response {
	inst, ok := s.instances[cid]
	if !ok {
		return &Response{Status: http.StatusNotFound, Body: "Unknown challenge."}
	}

	logger := s.env.Logger().Named(cid).With(
		zap.String("request_id", uuid.NewString()),
		zap.String("uid", user),
	)

	var resp *Response
	err := capture(func() error {
		var err error
		resp, err = inst.ch.HandleRequest(ctx, user, req)
		return err
	})
	switch {
	case errors.Is(err, ErrNotSupported):
		return &Response{Status: http.StatusBadRequest, Body: "Challenge has no API."}
	case err != nil:
		logger.Error("request handler failed", zap.Error(err))
		return &Response{Status: http.StatusInternalServerError, Body: "Challenge error."}
	case resp == nil:
		return &Response{Status: http.StatusOK}
	default:
		return resp
	}
}

// capture runs a challenge capability and converts a panic into an error so
// one instance's fault cannot take down a batch operation.
func capture(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn()
}
