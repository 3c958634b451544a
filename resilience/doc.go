// Package resilience guards calls to remote collaborators and bounds local
// concurrency. It provides retry with exponential backoff, a circuit
// breaker, a token bucket and a bulkhead. Each has a Config that loads from
// YAML; Policy bundles the three used around an outbound client.
package resilience
