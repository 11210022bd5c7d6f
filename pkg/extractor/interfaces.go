package extractor

// Matcher decides whether a target URL appears among search result links.
type Matcher interface {
	Matches(target string, links []string) bool
	Name() string
}

// Filter drops entries from a URL list. Filters never reorder or
// deduplicate: duplicate inputs stay independent lookups.
type Filter interface {
	Apply(urls []string) []string
	Name() string
}
