// Package mock provides test doubles for the ai package interfaces.
//
// All mocks support behavior injection via function fields and expose
// call counters for assertions. Default behaviors are deterministic so
// tests are reproducible without external AI services.
package mock
