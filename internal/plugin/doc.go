// Package plugin implements plugin negotiation for a deployment
// session.
//
// Before any resource work begins, the coordinator determines which
// provider plugins the program requires and at which versions. The
// requirement set comes from the project manifest (Capstan.yaml),
// validated against an embedded CUE schema before resolution.
//
// Negotiation is a fail-fast precondition: a ResolutionError aborts the
// session before a single provider call is issued, and it is never
// retried within the session.
package plugin
