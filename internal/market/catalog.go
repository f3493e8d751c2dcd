package market

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidCatalog is returned by ParseCatalog for malformed entries.
var ErrInvalidCatalog = errors.New("market: invalid catalog entry")

// catalogEntryRegex matches: {Name}:{basePrice}:{quantity}[:#rrggbb]
// Example: Wood:1:5000:#987654
var catalogEntryRegex = regexp.MustCompile(
	`^([A-Za-z][A-Za-z ]*):(\d+(?:\.\d+)?):(\d+)(?::(#[0-9a-fA-F]{6}))?$`,
)

// Display colors of the built-in goods.
const (
	colorPaleBrown = "#987654"
	colorGray      = "#808080"
	colorSteelBlue = "#4682b4"
	colorWhite     = "#ffffff"
	colorDarkGray  = "#404040"
	colorLightBlue = "#00ffff"
	colorYellow    = "#ffff00"
	colorRed       = "#ff0000"
	colorRose      = "#ff007f"
	colorOrange    = "#ff8c00"
)

// DefaultCatalog returns the twelve goods a new game starts with.
// Wood, Stone and Iron are charted by default.
func DefaultCatalog() []Spec {
	spec := func(name string, base, qty int64, color string, chart bool) Spec {
		return Spec{
			Name:           name,
			BasePrice:      decimal.NewFromInt(base),
			MarketQuantity: qty,
			DisplayKey:     color,
			ShowInCharts:   chart,
		}
	}
	return []Spec{
		spec("Wood", 1, 5000, colorPaleBrown, true),
		spec("Stone", 2, 2000, colorGray, true),
		spec("Iron", 5, 900, colorSteelBlue, true),
		spec("Wool", 3, 2500, colorWhite, false),
		spec("Hide", 4, 1000, colorDarkGray, false),
		spec("Fish", 2, 5000, colorLightBlue, false),
		spec("Wheat", 1, 5000, colorYellow, false),
		spec("Wine", 10, 500, colorRed, false),
		spec("Beer", 5, 500, colorPaleBrown, false),
		spec("Meat", 5, 800, colorRose, false),
		spec("Pottery", 3, 3500, colorOrange, false),
		spec("Linen", 3, 2000, colorWhite, false),
	}
}

// ParseCatalog parses a comma separated list of catalog entries.
// Format per entry: {Name}:{basePrice}:{quantity}[:#rrggbb]
func ParseCatalog(s string) ([]Spec, error) {
	var specs []Spec
	for _, raw := range strings.Split(s, ",") {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}

		matches := catalogEntryRegex.FindStringSubmatch(entry)
		if matches == nil {
			return nil, fmt.Errorf("%w: %q (expected {name}:{base}:{qty}[:#rrggbb])",
				ErrInvalidCatalog, entry)
		}

		base, err := decimal.NewFromString(matches[2])
		if err != nil || !base.IsPositive() {
			return nil, fmt.Errorf("%w: %q base price must be positive", ErrInvalidCatalog, entry)
		}
		qty, err := strconv.ParseInt(matches[3], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q quantity out of range", ErrInvalidCatalog, entry)
		}

		specs = append(specs, Spec{
			Name:           strings.TrimSpace(matches[1]),
			BasePrice:      base,
			MarketQuantity: qty,
			DisplayKey:     strings.ToLower(matches[4]),
		})
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: no entries", ErrInvalidCatalog)
	}
	return specs, nil
}
