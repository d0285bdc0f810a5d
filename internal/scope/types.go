package scope

// ScopeRules defines crawling scope rules.
type ScopeRules struct {
	// MaxDepth bounds link depth; the seed is depth 0. Zero disables the bound.
	MaxDepth int
}
