package memory

import (
	"context"
	"sort"
	"sync"

	domainproperty "rentalspot/internal/domain/property"
)

// PropertyCatalog holds property pricing configuration loaded at startup.
type PropertyCatalog struct {
	mu    sync.RWMutex
	items map[string]domainproperty.Property
}

func NewPropertyCatalog(props ...domainproperty.Property) *PropertyCatalog {
	c := &PropertyCatalog{items: make(map[string]domainproperty.Property, len(props))}
	for _, p := range props {
		c.items[p.ID] = p
	}
	return c
}

func (c *PropertyCatalog) Property(ctx context.Context, id string) (*domainproperty.Property, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.items[id]
	if !ok {
		return nil, domainproperty.ErrPropertyNotFound
	}
	return &p, nil
}

func (c *PropertyCatalog) List(ctx context.Context) ([]*domainproperty.Property, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*domainproperty.Property, 0, len(c.items))
	for _, p := range c.items {
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Put replaces the configuration of one property.
func (c *PropertyCatalog) Put(p domainproperty.Property) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[p.ID] = p
}

var _ domainproperty.Catalog = (*PropertyCatalog)(nil)
