// Package mock provides test doubles for the operator's collaborators.
//
// Supervisor is an in-memory supervisor.Client that records the calls made
// against it, reports configurable service states and can be told to fail
// individual methods. MockClock is a controllable time source for code that
// stamps records with the current time.
package mock
