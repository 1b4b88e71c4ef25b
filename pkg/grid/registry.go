package grid

import (
	"slices"

	"github.com/matzehuels/lanegrid/pkg/errors"
)

// Registry is the ordered collection of admitted items plus an id lookup.
// Registration order is placement priority on reload.
type Registry struct {
	items []*Item
	byID  map[string]*Item
	ids   IDGenerator
}

// NewRegistry returns an empty registry. A nil generator uses [CounterIDs].
func NewRegistry(ids IDGenerator) *Registry {
	if ids == nil {
		ids = NewCounterIDs()
	}
	return &Registry{
		byID: make(map[string]*Item),
		ids:  ids,
	}
}

// Admit appends it to the registry, assigning an identifier if it has none.
// An item keeps its identifier for life, so re-admitting a removed item
// reuses it. Admitting an item that is already registered, or whose
// identifier belongs to another item, is an INVALID_ITEM error.
func (r *Registry) Admit(it *Item) error {
	if it.id == "" {
		id := r.ids.NextID()
		for r.byID[id] != nil {
			id = r.ids.NextID()
		}
		it.id = id
	} else if other := r.byID[it.id]; other != nil {
		if other == it {
			return errors.New(errors.ErrCodeInvalidItem, "item %s is already registered", it.id)
		}
		return errors.New(errors.ErrCodeInvalidItem, "duplicate item id %s", it.id)
	}
	r.items = append(r.items, it)
	r.byID[it.id] = it
	return nil
}

// Remove unregisters it. It reports false if it was not registered.
func (r *Registry) Remove(it *Item) bool {
	if !r.Contains(it) {
		return false
	}
	delete(r.byID, it.id)
	if i := r.IndexOf(it); i >= 0 {
		r.items = slices.Delete(r.items, i, i+1)
	}
	return true
}

// Contains reports whether it is registered.
func (r *Registry) Contains(it *Item) bool {
	return it != nil && it.id != "" && r.byID[it.id] == it
}

// Get looks up an item by identifier.
func (r *Registry) Get(id string) (*Item, bool) {
	it, ok := r.byID[id]
	return it, ok
}

// IndexOf returns the registration index of it, or -1.
func (r *Registry) IndexOf(it *Item) int {
	return slices.Index(r.items, it)
}

// Items returns the registered items in registration order.
// The slice is a copy; the items are not.
func (r *Registry) Items() []*Item {
	return slices.Clone(r.items)
}

// Len returns the number of registered items.
func (r *Registry) Len() int { return len(r.items) }
