package persona

// Store exposes persona lookup to handlers and the prompt builder.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
}

// MemoryStore implements Store over a fixed slice.
type MemoryStore struct {
	items []Persona
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
func NewMemoryStore(items []Persona) *MemoryStore {
	return &MemoryStore{items: append([]Persona(nil), items...)}
}

func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Persona{}, false
}

// Resolve returns the persona with id, falling back to the first one stored.
func Resolve(s Store, id string) (Persona, bool) {
	if p, ok := s.FindByID(id); ok {
		return p, true
	}
	items := s.List()
	if len(items) == 0 {
		return Persona{}, false
	}
	return items[0], true
}
