// Package mock provides deterministic ai test doubles for unit tests
// that must not reach an external embedding service.
package mock
