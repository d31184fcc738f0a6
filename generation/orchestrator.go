// Copyright 2026 Quest Analytics
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package generation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/questanalytics/questa/ai"
	"github.com/questanalytics/questa/core"
)

const (
	// DefaultFailureThreshold is the consecutive failure count after
	// which a model is marked UNREACHABLE.
	DefaultFailureThreshold = 3
	// DefaultDegradedLatency is the response time above which a
	// successful call marks the model DEGRADED.
	DefaultDegradedLatency = 10 * time.Second
	// DefaultProbeInterval is how often the background probe revisits
	// non-healthy models.
	DefaultProbeInterval = 30 * time.Second
	// DefaultAttemptTimeout bounds a single model attempt within a
	// request, so one hung model cannot eat the whole fallback chain.
	DefaultAttemptTimeout = 60 * time.Second
)

// Orchestrator routes generation requests across an ordered model chain
// with per-model health tracking. A request tries the first model whose
// state is not UNREACHABLE and fails over transparently within the same
// request; only exhaustion of the whole chain surfaces an error.
type Orchestrator struct {
	models  map[string]ai.ChatModel
	health  *healthTracker
	logger  *slog.Logger
	timeout time.Duration

	probeInterval time.Duration
	stopProbe     chan struct{}
	probeWG       sync.WaitGroup
	startOnce     sync.Once
	stopOnce      sync.Once
}

// Option configures an Orchestrator.
type Option func(*config)

type config struct {
	failureThreshold int
	degradedLatency  time.Duration
	probeInterval    time.Duration
	attemptTimeout   time.Duration
	logger           *slog.Logger
}

// WithFailureThreshold sets the consecutive failure count that marks a
// model UNREACHABLE.
func WithFailureThreshold(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.failureThreshold = n
		}
	}
}

// WithDegradedLatency sets the latency above which a success still marks
// the model DEGRADED.
func WithDegradedLatency(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.degradedLatency = d
		}
	}
}

// WithProbeInterval sets the background probe period. Zero disables the
// background probe; ProbeOnce can still be called directly.
func WithProbeInterval(d time.Duration) Option {
	return func(c *config) {
		c.probeInterval = d
	}
}

// WithAttemptTimeout bounds a single model attempt.
func WithAttemptTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.attemptTimeout = d
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewOrchestrator creates an orchestrator over the provider's model chain.
// The first model in the chain is the primary; the rest are fallbacks in order.
func NewOrchestrator(provider ai.AIProvider, opts ...Option) (*Orchestrator, error) {
	if provider == nil {
		return nil, ErrAIProviderRequired
	}
	chain := provider.ChatModels()
	if len(chain) == 0 {
		return nil, ErrNoModelsConfigured
	}

	cfg := &config{
		failureThreshold: DefaultFailureThreshold,
		degradedLatency:  DefaultDegradedLatency,
		probeInterval:    DefaultProbeInterval,
		attemptTimeout:   DefaultAttemptTimeout,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	models := make(map[string]ai.ChatModel, len(chain))
	ids := make([]string, len(chain))
	for i, model := range chain {
		models[model.ModelID()] = model
		ids[i] = model.ModelID()
	}

	return &Orchestrator{
		models:        models,
		health:        newHealthTracker(ids, cfg.failureThreshold, cfg.degradedLatency),
		logger:        cfg.logger.With("component", "orchestrator"),
		timeout:       cfg.attemptTimeout,
		probeInterval: cfg.probeInterval,
		stopProbe:     make(chan struct{}),
	}, nil
}

// Start launches the background probe loop. It is a no-op when the probe
// interval is zero or Start was already called.
func (o *Orchestrator) Start() {
	if o.probeInterval <= 0 {
		return
	}
	o.startOnce.Do(func() {
		o.probeWG.Add(1)
		go o.probeLoop()
	})
}

// Stop terminates the background probe loop and waits for it to exit.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		close(o.stopProbe)
	})
	o.probeWG.Wait()
}

// Generate answers the question from the retrieved context. Models are
// tried in priority order, skipping UNREACHABLE ones; a failure moves on
// to the next model within the same request. The answer reports which
// model produced it.
func (o *Orchestrator) Generate(ctx context.Context, question string, results []*core.RetrievalResult) (*core.Answer, error) {
	prompt := buildPrompt(question, results)

	candidates := o.health.available()
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: every model is unreachable", ErrAllModelsFailed)
	}

	var lastErr error
	for _, modelID := range candidates {
		model := o.models[modelID]

		attemptCtx, cancel := context.WithTimeout(ctx, o.timeout)
		start := time.Now()
		text, err := model.Chat(attemptCtx, systemPrompt, prompt)
		latency := time.Since(start)
		cancel()

		if err != nil {
			// A caller cancellation is not a model failure; health
			// stays untouched.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			o.logger.Warn("model call failed, trying next in chain",
				"model", modelID, "latency", latency, "err", err)
			o.health.recordFailure(modelID)
			lastErr = err
			continue
		}

		o.health.recordSuccess(modelID, latency)
		if state := o.health.state(modelID); state == core.StateDegraded {
			o.logger.Warn("model responded above latency budget",
				"model", modelID, "latency", latency)
		}

		return &core.Answer{
			Text:      text,
			ModelID:   modelID,
			Citations: citationsFrom(results),
		}, nil
	}

	return nil, fmt.Errorf("%w: last error: %w", ErrAllModelsFailed, lastErr)
}

// ModelHealth returns the current health table in priority order.
func (o *Orchestrator) ModelHealth() []*core.ModelHealth {
	return o.health.snapshot()
}

// ProbeOnce runs one probe pass: every model not currently HEALTHY gets a
// lightweight call, and the outcome feeds the same transition rules as
// user traffic.
func (o *Orchestrator) ProbeOnce(ctx context.Context) {
	for _, health := range o.health.snapshot() {
		if health.State == core.StateHealthy {
			continue
		}
		if !o.probeModel(ctx, health.ModelID) {
			return
		}
	}
}

// CheckModels probes every model in the chain regardless of recorded
// state and returns the refreshed health table. Used for on-demand
// health checks where a stale HEALTHY entry is not good enough.
func (o *Orchestrator) CheckModels(ctx context.Context) []*core.ModelHealth {
	for _, health := range o.health.snapshot() {
		if !o.probeModel(ctx, health.ModelID) {
			break
		}
	}
	return o.health.snapshot()
}

// probeModel probes a single model and records the outcome. Returns
// false when the caller's context is done.
func (o *Orchestrator) probeModel(ctx context.Context, modelID string) bool {
	model := o.models[modelID]

	probeCtx, cancel := context.WithTimeout(ctx, o.timeout)
	start := time.Now()
	err := model.Probe(probeCtx)
	latency := time.Since(start)
	cancel()

	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		o.health.recordFailure(modelID)
		o.logger.Debug("probe failed", "model", modelID, "err", err)
		return true
	}

	o.health.recordSuccess(modelID, latency)
	o.logger.Debug("probe succeeded",
		"model", modelID,
		"state", o.health.state(modelID).String(),
		"latency", latency)
	return true
}

// probeLoop runs ProbeOnce on the configured interval until Stop.
func (o *Orchestrator) probeLoop() {
	defer o.probeWG.Done()

	ticker := time.NewTicker(o.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.stopProbe:
			return
		case <-ticker.C:
			o.ProbeOnce(context.Background())
		}
	}
}
