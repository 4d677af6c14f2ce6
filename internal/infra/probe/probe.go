// Package probe contains one reachability prober per dependency kind. A
// prober issues exactly one externally-defined call and reports failure as
// an error; it never panics and never applies its own timeout — the caller
// bounds every probe with one uniform context deadline.
package probe

import "context"

// Prober checks a single dependency.
type Prober interface {
	// Name returns the unique service name for snapshot entries.
	Name() string

	// Probe performs the reachability check. A nil return means healthy.
	Probe(ctx context.Context) error
}
