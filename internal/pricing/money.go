package pricing

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Money is an amount in US cents.
type Money int64

// Dollars builds Money from whole dollars.
func Dollars(d int64) Money { return Money(d * 100) }

func (m Money) Cents() int64 { return int64(m) }

// String formats m as "$150.00".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s$%d.%02d", sign, v/100, v%100)
}

// ParseMoney accepts "150", "150.5" and "150.00", with an optional leading "$".
func ParseMoney(s string) (Money, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "$")
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	d, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	var c int64
	if hasFrac {
		if len(frac) == 0 || len(frac) > 2 {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
		if len(frac) == 1 {
			frac += "0"
		}
		c, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
	}
	return Money(d*100 + c), nil
}

// UnmarshalYAML lets catalog files write prices as plain numbers or strings.
func (m *Money) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: price must be a scalar", value.Line)
	}
	v, err := ParseMoney(value.Value)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
