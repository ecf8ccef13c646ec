package board

import "fmt"

// Registry selects an Extractor by board identifier at construction time.
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry creates a registry with the built-in board extractors.
func NewRegistry() *Registry {
	r := &Registry{extractors: make(map[string]Extractor)}
	for _, e := range []Extractor{
		NewIndeed(),
		NewLinkedIn(),
		NewGlassdoor(),
		NewRemoteJobs(),
	} {
		r.extractors[e.Board()] = e
	}
	return r
}

// Register adds or replaces an extractor for a board.
func (r *Registry) Register(e Extractor) {
	r.extractors[e.Board()] = e
}

// Lookup returns the extractor for a board identifier.
func (r *Registry) Lookup(boardID string) (Extractor, error) {
	e, ok := r.extractors[boardID]
	if !ok {
		return nil, fmt.Errorf("board: no extractor for %q", boardID)
	}
	return e, nil
}

// Boards lists the registered board identifiers.
func (r *Registry) Boards() []string {
	out := make([]string, 0, len(r.extractors))
	for k := range r.extractors {
		out = append(out, k)
	}
	return out
}
