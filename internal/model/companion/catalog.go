package companion

import (
	"errors"
	"fmt"
	"strings"
)

// Directory is the read side of the companion catalog used by handlers and
// services.
type Directory interface {
	List() []Companion
	Get(id string) (Companion, bool)
	Resolve(id string) Companion
}

// Catalog is an immutable, ordered set of companions that always contains
// DefaultID.
type Catalog struct {
	ordered []Companion
	byID    map[string]int
}

// NewCatalog indexes items in the given order. IDs must be non-empty and
// unique, and the default companion must be present.
func NewCatalog(items []Companion) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]int, len(items))}
	for _, item := range items {
		id := strings.TrimSpace(item.ID)
		if id == "" {
			return nil, errors.New("companion without id")
		}
		if _, dup := c.byID[id]; dup {
			return nil, fmt.Errorf("duplicate companion %q", id)
		}
		item.ID = id
		item.Techniques = append([]string(nil), item.Techniques...)
		c.byID[id] = len(c.ordered)
		c.ordered = append(c.ordered, item)
	}
	if _, ok := c.byID[DefaultID]; !ok {
		return nil, fmt.Errorf("catalog is missing default companion %q", DefaultID)
	}
	return c, nil
}

// DefaultCatalog is the catalog of built-in companions.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(Seed())
	if err != nil {
		panic(err)
	}
	return c
}

// List returns every companion in catalog order.
func (c *Catalog) List() []Companion {
	out := make([]Companion, len(c.ordered))
	for i, item := range c.ordered {
		out[i] = item.clone()
	}
	return out
}

// Get returns the companion with id.
func (c *Catalog) Get(id string) (Companion, bool) {
	i, ok := c.byID[strings.TrimSpace(id)]
	if !ok {
		return Companion{}, false
	}
	return c.ordered[i].clone(), true
}

// Resolve returns the companion with id, or the default companion when id
// is empty or no longer in the catalog.
func (c *Catalog) Resolve(id string) Companion {
	if item, ok := c.Get(id); ok {
		return item
	}
	return c.ordered[c.byID[DefaultID]].clone()
}

func (c Companion) clone() Companion {
	c.Techniques = append([]string(nil), c.Techniques...)
	return c
}
