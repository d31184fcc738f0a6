package generation

import (
	"sync"
	"time"

	"github.com/questanalytics/questa/core"
)

// healthTracker owns the per-model health table. All mutation goes
// through recordSuccess/recordFailure so that state transitions happen
// in exactly one place and remain race-free.
type healthTracker struct {
	mu               sync.Mutex
	order            []string
	models           map[string]*core.ModelHealth
	failureThreshold int
	degradedLatency  time.Duration
}

func newHealthTracker(modelIDs []string, failureThreshold int, degradedLatency time.Duration) *healthTracker {
	models := make(map[string]*core.ModelHealth, len(modelIDs))
	order := make([]string, len(modelIDs))
	for i, id := range modelIDs {
		order[i] = id
		// Fallbacks start HEALTHY too: untested is not unreachable.
		models[id] = &core.ModelHealth{
			ModelID: id,
			State:   core.StateHealthy,
		}
	}
	return &healthTracker{
		order:            order,
		models:           models,
		failureThreshold: failureThreshold,
		degradedLatency:  degradedLatency,
	}
}

// recordSuccess applies a successful call: failures reset, and the state
// follows the latency against the degraded threshold.
func (h *healthTracker) recordSuccess(modelID string, latency time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	health, ok := h.models[modelID]
	if !ok {
		return
	}

	health.ConsecutiveFailures = 0
	health.LastLatency = latency
	health.LastChecked = time.Now().UTC()
	if latency > h.degradedLatency {
		health.State = core.StateDegraded
	} else {
		health.State = core.StateHealthy
	}
}

// recordFailure applies a failed or timed-out call. The state only flips
// to UNREACHABLE once the consecutive-failure threshold is reached.
func (h *healthTracker) recordFailure(modelID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	health, ok := h.models[modelID]
	if !ok {
		return
	}

	health.ConsecutiveFailures++
	health.LastChecked = time.Now().UTC()
	if health.ConsecutiveFailures >= h.failureThreshold {
		health.State = core.StateUnreachable
	}
}

// available returns the model IDs whose state is not UNREACHABLE, in
// priority order.
func (h *healthTracker) available() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids := make([]string, 0, len(h.order))
	for _, id := range h.order {
		if h.models[id].State != core.StateUnreachable {
			ids = append(ids, id)
		}
	}
	return ids
}

// state returns the current state of a model.
func (h *healthTracker) state(modelID string) core.ModelState {
	h.mu.Lock()
	defer h.mu.Unlock()

	if health, ok := h.models[modelID]; ok {
		return health.State
	}
	return 0
}

// snapshot returns a copy of the health table in priority order.
func (h *healthTracker) snapshot() []*core.ModelHealth {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*core.ModelHealth, len(h.order))
	for i, id := range h.order {
		copied := *h.models[id]
		out[i] = &copied
	}
	return out
}
