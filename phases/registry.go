package phases

// Entry pairs a phase constructor with the gate that admits it.
type Entry struct {
	Gate Gate
	New  func() Phase
}

// Registry is the declarative, ordered table of every known phase.
type Registry struct {
	entries []Entry
}

// NewRegistry constructs a registry from entries in declaration order.
func NewRegistry(entries ...Entry) *Registry {
	r := &Registry{}
	r.entries = append(r.entries, entries...)
	return r
}

// Add appends an entry.
func (r *Registry) Add(gate Gate, ctor func() Phase) *Registry {
	r.entries = append(r.entries, Entry{Gate: gate, New: ctor})
	return r
}

// Entries returns a copy of the table.
func (r *Registry) Entries() []Entry {
	if r == nil {
		return nil
	}
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Build instantiates every entry whose gate admits opts, in declaration
// order. An empty list is valid. Duplicate or empty IDs are programming
// errors.
func (r *Registry) Build(opts RunOptions) ([]Phase, error) {
	if r == nil {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(r.entries))
	var out []Phase
	for _, entry := range r.entries {
		if !entry.Gate.Allows(opts) {
			continue
		}
		if entry.New == nil {
			return nil, ValidationError{Reason: "registry entry has no constructor"}
		}
		phase := entry.New()
		if phase == nil {
			return nil, ValidationError{Reason: "registry constructor returned nil"}
		}
		id := phase.Metadata().ID
		if id == "" {
			return nil, ValidationError{Reason: "phase id must not be empty"}
		}
		if _, exists := seen[id]; exists {
			return nil, DuplicatePhaseError{ID: id}
		}
		seen[id] = struct{}{}
		out = append(out, phase)
	}
	return out, nil
}
