// Package dispatch implements the CRUD entry points of the CSE: address
// resolution, transit forwarding, fan-out and virtual resource redirection,
// the generic create/retrieve/update/delete state machine with its rollback
// semantics, and the shaping of discovery results into response trees.
//
// The dispatcher composes its collaborators through small interfaces
// declared here; the concrete implementations live in the security,
// registration, events and virtual packages.
package dispatch
