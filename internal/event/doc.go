// Package event provides the Mothership show model and its identity.
//
// An Event is an immutable value scraped from the venue's listing page. Its
// identity is either a SHA-256 content hash over the displayed fields or the
// provider-supplied external ID, depending on the Scheme in use. The identity
// is the key of the dedup store, so a deployment must keep the same scheme
// across runs.
package event
