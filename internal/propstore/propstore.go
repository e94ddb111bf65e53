// Package propstore implements the property store (spec component C3): a
// named attribute bag per entity, with typed setters, a dirty flag, and
// "signal" properties that mirror a typed slot elsewhere on the entity
// (e.g. bbox mirrors Location.BBox) and notify on change.
package propstore

// Signal is implemented by a property that is backed by a typed slot
// elsewhere on the entity (the bbox property mirrors Location.BBox). Set
// pushes the new value into that slot and fires the notify callback.
type Signal interface {
	Set(v any)
	Get() any
}

// signalProp adapts a get/set pair (typically closures over a Location
// field) into a Signal, invoking onChange after every Set — the same role
// as the original's SignalProperty<BBox>::modified.connect wiring.
type signalProp struct {
	get      func() any
	set      func(any)
	onChange func()
}

func NewSignal(get func() any, set func(any), onChange func()) Signal {
	return &signalProp{get: get, set: set, onChange: onChange}
}

func (s *signalProp) Get() any { return s.get() }
func (s *signalProp) Set(v any) {
	s.set(v)
	if s.onChange != nil {
		s.onChange()
	}
}

// plainProp is an ordinary value-holding property.
type plainProp struct{ v any }

func (p *plainProp) Get() any  { return p.v }
func (p *plainProp) Set(v any) { p.v = v }

// Store is a named bag of properties. Any Set ORs the dirty flag, which the
// owning entity consults to decide whether to broadcast a Sight(Set(...)).
type Store struct {
	props map[string]Signal
	dirty bool
}

func New() *Store {
	return &Store{props: make(map[string]Signal)}
}

// SetSignal installs a Signal-backed property under name (e.g. "bbox").
// Must be called before Set/Get are used for that name.
func (s *Store) SetSignal(name string, sig Signal) {
	s.props[name] = sig
}

// Set upserts a plain value property, or routes through an existing Signal
// if one is installed under name, and marks the store dirty.
func (s *Store) Set(name string, v any) {
	if existing, ok := s.props[name]; ok {
		existing.Set(v)
	} else {
		s.props[name] = &plainProp{v: v}
	}
	s.dirty = true
}

// Get returns the property's value and whether it is present.
func (s *Store) Get(name string) (any, bool) {
	p, ok := s.props[name]
	if !ok {
		return nil, false
	}
	return p.Get(), true
}

// Dirty reports whether any Set has occurred since the last ClearDirty.
func (s *Store) Dirty() bool { return s.dirty }

func (s *Store) ClearDirty() { s.dirty = false }

// Each iterates all installed properties, for serialisation
// (addToMessage/addToEntity).
func (s *Store) Each(fn func(name string, value any)) {
	for name, p := range s.props {
		fn(name, p.Get())
	}
}
