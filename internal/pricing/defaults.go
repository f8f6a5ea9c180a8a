package pricing

import "fmt"

func money(v Money) *Money { return &v }

var defaultServices = []Service{
	{ID: Massage30, Name: "30 Minute Massage", DurationMinutes: 30, BasePrice: Dollars(85)},
	{ID: Massage60, Name: "60 Minute Massage", DurationMinutes: 60, BasePrice: Dollars(150)},
	{
		ID:              Massage90,
		Name:            "90 Minute Fascial Release",
		DurationMinutes: 90,
		BasePrice:       Dollars(210),
		PromoPrice:      money(Dollars(180)),
		PromoLabel:      "Introductory offer",
	},
	{ID: Massage120, Name: "120 Minute Fascial Release", DurationMinutes: 120, BasePrice: Dollars(275)},
	{ID: TestProduct, Name: "Test Product", DurationMinutes: 30, BasePrice: Money(100), Test: true},
}

// DefaultAliases lists every historical identifier per canonical service.
// Canonical IDs resolve to themselves and are not repeated here.
func DefaultAliases() map[string]string {
	aliases := map[string]string{
		"test":         TestProduct,
		"test-product": TestProduct,
	}
	for _, n := range []int{30, 60, 90, 120} {
		target := fmt.Sprintf("%dmin_massage", n)
		for _, f := range []string{
			"%d",
			"%dmin",
			"%d-min",
			"%d_min",
			"%d-minute",
			"fascial-release-%d",
			"massage-%d",
		} {
			aliases[fmt.Sprintf(f, n)] = target
		}
	}
	return aliases
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := NewCatalog(defaultServices, DefaultAliases())
	if err != nil {
		panic(fmt.Sprintf("pricing: invalid built-in catalog: %v", err))
	}
	return c
}
