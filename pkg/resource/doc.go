// Package resource defines the generic resource record the dispatch core
// operates on: a typed node in the CSE tree carrying a flat attribute map,
// plus the closed type registry that replaces the JSON-root-keyed
// polymorphism of the protocol with an explicit factory.
//
// Type-specific business attributes are opaque to this package. What it
// knows about are the common envelope attributes (ri, rn, pi, ty, ct, lt,
// acpi, lbl) and the internal bookkeeping attributes, which carry a double
// underscore prefix and never leave the process.
package resource
