// Package pricing holds the immutable service catalog and resolves the
// historical service identifiers still emitted by older clients.
package pricing

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownService = errors.New("unknown service")

// Canonical service identifiers.
const (
	Massage30   = "30min_massage"
	Massage60   = "60min_massage"
	Massage90   = "90min_massage"
	Massage120  = "120min_massage"
	TestProduct = "test_product"
)

// Service is one bookable offering.
type Service struct {
	ID              string `yaml:"id" json:"id"`
	Name            string `yaml:"name" json:"name"`
	DurationMinutes int    `yaml:"duration_minutes" json:"duration_minutes"`
	BasePrice       Money  `yaml:"base_price" json:"base_price_cents"`
	PromoPrice      *Money `yaml:"promo_price,omitempty" json:"promo_price_cents,omitempty"`
	PromoLabel      string `yaml:"promo_label,omitempty" json:"promo_label,omitempty"`
	Test            bool   `yaml:"test,omitempty" json:"test,omitempty"`
}

// Price is the amount charged: the promotional price when one is set.
func (s Service) Price() Money {
	if s.PromoPrice != nil {
		return *s.PromoPrice
	}
	return s.BasePrice
}

// OnPromo reports whether a promotional price applies.
func (s Service) OnPromo() bool { return s.PromoPrice != nil && *s.PromoPrice < s.BasePrice }

// Catalog is safe for concurrent use; it is never mutated after construction.
type Catalog struct {
	services []Service
	byID     map[string]int
	aliases  map[string]string
}

// NewCatalog validates services and builds the alias index. Every canonical
// ID resolves to itself; extra aliases map lower-cased names to canonical IDs.
func NewCatalog(services []Service, aliases map[string]string) (*Catalog, error) {
	if len(services) == 0 {
		return nil, errors.New("catalog is empty")
	}

	c := &Catalog{
		services: make([]Service, len(services)),
		byID:     make(map[string]int, len(services)),
		aliases:  make(map[string]string, len(aliases)+len(services)),
	}
	copy(c.services, services)

	for i, s := range c.services {
		id := normalize(s.ID)
		switch {
		case id == "":
			return nil, fmt.Errorf("service %d: id is required", i)
		case s.DurationMinutes <= 0:
			return nil, fmt.Errorf("service %s: duration must be positive", s.ID)
		case s.BasePrice < 0 || (s.PromoPrice != nil && *s.PromoPrice < 0):
			return nil, fmt.Errorf("service %s: price must not be negative", s.ID)
		}
		if _, dup := c.byID[id]; dup {
			return nil, fmt.Errorf("service %s: duplicate id", s.ID)
		}
		c.services[i].ID = id
		c.byID[id] = i
		c.aliases[id] = id
	}

	for alias, target := range aliases {
		a, t := normalize(alias), normalize(target)
		if _, ok := c.byID[t]; !ok {
			return nil, fmt.Errorf("alias %q: %w %q", alias, ErrUnknownService, target)
		}
		if prev, ok := c.aliases[a]; ok && prev != t {
			return nil, fmt.Errorf("alias %q maps to both %s and %s", alias, prev, t)
		}
		c.aliases[a] = t
	}

	return c, nil
}

// Resolve maps any known identifier to its canonical service.
func (c *Catalog) Resolve(id string) (Service, error) {
	canonical, ok := c.aliases[normalize(id)]
	if !ok {
		return Service{}, fmt.Errorf("%w: %q", ErrUnknownService, id)
	}
	return c.services[c.byID[canonical]], nil
}

// Lookup is Resolve without the error detail.
func (c *Catalog) Lookup(id string) (Service, bool) {
	s, err := c.Resolve(id)
	return s, err == nil
}

// All returns services in display order. Test products are omitted unless includeTest is set.
func (c *Catalog) All(includeTest bool) []Service {
	out := make([]Service, 0, len(c.services))
	for _, s := range c.services {
		if s.Test && !includeTest {
			continue
		}
		out = append(out, s)
	}
	return out
}

func normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
