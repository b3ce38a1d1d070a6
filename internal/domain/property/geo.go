package property

import (
	"fmt"
	"math"
	"strings"
)

// earthRadiusMeters is the mean Earth radius used for great-circle distance.
const earthRadiusMeters = 6371000.0

// HaversineMeters returns the great-circle distance in meters between two
// WGS-84 coordinates. Pure and total for any finite inputs.
func HaversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// hebrew street-type abbreviations expanded during normalization. Expansion
// runs before quote stripping, since the abbreviations contain a geresh.
var addressExpansions = []struct{ abbr, full string }{
	{"רח'", "רחוב"},
	{"שד'", "שדרות"},
}

var addressQuoteStripper = strings.NewReplacer(`"`, "", "'", "", "׳", "", "״", "")

// NormalizeAddress canonicalizes an Israeli street address for deduplication
// fingerprints: lowercases, expands street-type abbreviations, strips quote
// characters, and collapses whitespace. Not suitable for display.
func NormalizeAddress(address string) string {
	s := strings.ToLower(address)
	for _, e := range addressExpansions {
		s = strings.ReplaceAll(s, e.abbr, e.full)
	}
	s = addressQuoteStripper.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// DuplicateFingerprint returns a pipe-joined key identifying the underlying
// transaction: two observations with the same fingerprint are the same sale
// recorded twice (the government feeds overlap). Coordinates are bucketed to
// 4 decimal places (~11 m), the sale date is truncated to the day, the price
// is rounded to the nearest 1,000 and the size to the nearest m².
//
// Callers deduplicate pools on this key before comparable search; the search
// engine itself never deduplicates.
func DuplicateFingerprint(p FeaturePayload) string {
	return strings.Join([]string{
		NormalizeAddress(p.Address),
		strings.ToLower(strings.TrimSpace(p.City)),
		fmt.Sprintf("%.4f", p.Lat),
		fmt.Sprintf("%.4f", p.Lng),
		p.SaleDate.Time().UTC().Format("2006-01-02"),
		fmt.Sprintf("%.0f", math.Round(p.SalePrice/1000)*1000),
		fmt.Sprintf("%.0f", math.Round(p.SizeSqm)),
	}, "|")
}

// DeduplicatePool drops observations whose fingerprint was already seen,
// keeping the first occurrence. Order is otherwise preserved.
func DeduplicatePool(pool []FeaturePayload) []FeaturePayload {
	seen := make(map[string]struct{}, len(pool))
	out := make([]FeaturePayload, 0, len(pool))
	for _, p := range pool {
		fp := DuplicateFingerprint(p)
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}
		out = append(out, p)
	}
	return out
}
