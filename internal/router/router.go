// Package router implements path-based origin selection for the edge
// gateway. Selection is a pure function of the request path: an ordered
// rule list is evaluated first-match-wins, and a fallback origin
// guarantees every path resolves to exactly one origin.
package router

import "strings"

// Origin identifies one of the upstream services.
type Origin string

const (
	// OriginDocs is the documentation site.
	OriginDocs Origin = "docs"
	// OriginAPI is the backend REST API.
	OriginAPI Origin = "api"
	// OriginFrontend is the single-page app.
	OriginFrontend Origin = "frontend"
)

// Rule pairs a set of path prefixes with the origin that serves them.
type Rule struct {
	Prefixes []string
	Origin   Origin
}

// DefaultRules returns the routing table, in evaluation order. Paths
// that match no rule fall through to the frontend origin.
func DefaultRules() []Rule {
	return []Rule{
		{Prefixes: []string{"/docs"}, Origin: OriginDocs},
		{Prefixes: []string{"/api", "/auth", "/admin"}, Origin: OriginAPI},
	}
}

// Table resolves request paths to upstream base URLs. A Table is
// immutable after construction; reloads build a new Table and swap it
// in atomically.
type Table struct {
	rules    []Rule
	origins  map[Origin]string
	fallback Origin
}

// Option is a functional option for configuring the table.
type Option func(*Table)

// WithRules replaces the default routing rules.
func WithRules(rules []Rule) Option {
	return func(t *Table) {
		t.rules = rules
	}
}

// WithFallback replaces the default fallback origin.
func WithFallback(origin Origin) Option {
	return func(t *Table) {
		t.fallback = origin
	}
}

// New creates a routing table over the given origin base URLs.
func New(origins map[Origin]string, opts ...Option) *Table {
	t := &Table{
		rules:    DefaultRules(),
		origins:  origins,
		fallback: OriginFrontend,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Select returns the origin key and base URL for a request path. It is
// total: every path selects exactly one origin. Matching is raw
// string-prefix, not segment-aware, so "/docsite" matches the "/docs"
// rule.
func (t *Table) Select(path string) (Origin, string) {
	for _, rule := range t.rules {
		for _, prefix := range rule.Prefixes {
			if strings.HasPrefix(path, prefix) {
				return rule.Origin, t.origins[rule.Origin]
			}
		}
	}
	return t.fallback, t.origins[t.fallback]
}

// Rules returns a copy of the routing rules in evaluation order.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Origins returns a copy of the origin base URLs.
func (t *Table) Origins() map[Origin]string {
	out := make(map[Origin]string, len(t.origins))
	for k, v := range t.origins {
		out[k] = v
	}
	return out
}

// Fallback returns the fallback origin.
func (t *Table) Fallback() Origin {
	return t.fallback
}
