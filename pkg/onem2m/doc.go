// Package onem2m defines the protocol-level constants shared across the CSE:
// resource types and their short-name tags, operations, permissions, response
// status codes, filter and result-content selectors, and timestamp handling.
//
// The package is deliberately free of behavior. Components that need to agree
// on a wire-level value import it; everything else lives in the packages that
// implement the dispatch core.
package onem2m
