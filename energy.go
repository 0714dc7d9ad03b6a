package bdxplot

import (
	"fmt"
	"strconv"
	"strings"
)

var energyUnits = []struct {
	name   string
	perGeV float64
}{
	{"eV", 1e9},
	{"keV", 1e6},
	{"MeV", 1e3},
	{"GeV", 1},
}

// FormatEnergy renders an energy given in GeV with the largest unit among
// eV, keV, MeV and GeV whose magnitude stays below 1000, e.g. 1e-7 -> "100.0eV".
func FormatEnergy(gev float64) string {
	for _, u := range energyUnits[:len(energyUnits)-1] {
		v := gev * u.perGeV
		if v < 1000 {
			return fmt.Sprintf("%.1f%s", v, u.name)
		}
	}
	return fmt.Sprintf("%.1fGeV", gev)
}

// ParseEnergy is the inverse of FormatEnergy and returns the value in GeV.
func ParseEnergy(s string) (float64, error) {
	s = strings.TrimSpace(s)
	// longest suffix first: "keV" and "MeV" also end in "eV".
	for _, u := range []int{1, 2, 3, 0} {
		unit := energyUnits[u]
		if !strings.HasSuffix(s, unit.name) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, unit.name), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid energy %q: %w", s, err)
		}
		return v / unit.perGeV, nil
	}
	return 0, fmt.Errorf("invalid energy %q: missing unit", s)
}

// ParseEnergyRanges parses "min-max,min-max" pairs. Bounds are plain
// numbers in GeV or carry a unit as printed by FormatEnergy.
func ParseEnergyRanges(s string) ([][2]float64, error) {
	var ranges [][2]float64
	for _, r := range strings.Split(s, ",") {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		i := rangeSep(r)
		if i < 0 {
			return nil, fmt.Errorf("invalid energy range %q", r)
		}
		min, err := parseBound(r[:i])
		if err != nil {
			return nil, fmt.Errorf("invalid energy range %q: %w", r, err)
		}
		max, err := parseBound(r[i+1:])
		if err != nil {
			return nil, fmt.Errorf("invalid energy range %q: %w", r, err)
		}
		if !(max > min) {
			return nil, fmt.Errorf("invalid energy range %q: empty", r)
		}
		ranges = append(ranges, [2]float64{min, max})
	}
	return ranges, nil
}

// rangeSep returns the index of the '-' separating the bounds of r,
// skipping exponent signs.
func rangeSep(r string) int {
	for i := 1; i < len(r)-1; i++ {
		if r[i] == '-' && r[i-1] != 'e' && r[i-1] != 'E' {
			return i
		}
	}
	return -1
}

func parseBound(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}
	return ParseEnergy(s)
}
