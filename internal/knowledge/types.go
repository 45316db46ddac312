package knowledge

// Document is a knowledge snippet stored in a collection.
// Metadata values are flat strings (category, source, etc.).
type Document struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// Result is a single retrieval hit.
// Distance is cosine distance: 0 is identical, smaller is closer.
type Result struct {
	Text     string
	Metadata map[string]string
	Distance float64
}

// Collection is a handle to a named document namespace.
// The embedding dimension is pinned by the first upsert; every vector
// written or queried afterwards must match it.
type Collection struct {
	id   int64
	Name string
}
