// Package generation routes answer generation across an ordered chain of
// language models with per-model health tracking.
//
// Each model is HEALTHY, DEGRADED, or UNREACHABLE. Successes reset the
// failure count and set the state from the observed latency; a
// configurable run of consecutive failures marks a model UNREACHABLE.
// Requests walk the chain in priority order, skipping UNREACHABLE
// models and failing over within the same request. A background probe
// revisits non-healthy models so they can recover without user traffic.
// All health state lives behind a single owning tracker; nothing else
// mutates it.
package generation
