// Package id generates the identifiers the CSE hands out: resource
// identifiers, resource names, AE-IDs and request identifiers.
// This is the canonical source for ID generation across the codebase.
package id
