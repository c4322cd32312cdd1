// Package mcptools builds the per-session tool registry. Capabilities are
// declared as a value list built once per session construction and then
// registered onto that session's own MCP server instance, so tool sets never
// leak between sessions.
package mcptools

import "searchmcp/internal/upstream"

// Kind discriminates capability variants.
type Kind int

const (
	// KindSearch is a search capability bound to one collection.
	KindSearch Kind = iota
	// KindIntrospection is the no-argument configuration report capability.
	KindIntrospection
)

// Capability is one declared tool for a session.
type Capability struct {
	Kind       Kind
	Collection upstream.Collection
}

// Build returns the declarative capability list for a session: one search
// capability per discovered collection plus the introspection capability.
// When discovery yielded nothing, a single search capability against the
// default collection is substituted so a session is never toolless.
func Build(defaultCollection string, collections []upstream.Collection) []Capability {
	if len(collections) == 0 {
		collections = []upstream.Collection{{
			ID:     defaultCollection,
			Name:   defaultCollection,
			Status: "unknown",
		}}
	}

	caps := make([]Capability, 0, len(collections)+1)
	for _, col := range collections {
		caps = append(caps, Capability{Kind: KindSearch, Collection: col})
	}
	return append(caps, Capability{Kind: KindIntrospection})
}

// ToolName returns the deterministic tool name for a capability.
func (c Capability) ToolName() string {
	switch c.Kind {
	case KindSearch:
		return "search-" + c.Collection.ID
	case KindIntrospection:
		return "get-config"
	default:
		return ""
	}
}
