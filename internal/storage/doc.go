// Package storage provides the resource store abstraction the dispatch core
// persists through, and a thread-safe in-memory implementation of it.
//
// The store exclusively owns persisted records: Put and the read methods
// deep-copy resources at the boundary, so an in-flight request never
// observes a partially written record and never mutates a stored one
// through an aliased map.
package storage
