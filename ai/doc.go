// Package ai defines the outbound embedding abstraction. Chunking
// itself never generates vectors; callers who want embedded chunks
// supply an Embedder and run it over chunk bodies after chunking.
//
// Two implementation sub-packages are provided:
//
//   - ai/openai: production implementation for OpenAI-compatible APIs
//   - ai/mock: deterministic test double with no external dependency
//
// Production constructors return the Embedder interface to keep
// callers decoupled from the concrete client; the mock constructor
// returns its concrete type so tests can inject behavior and assert
// call counts.
package ai
