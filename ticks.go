package bdxplot

import (
	"math"
	"strconv"

	"gonum.org/v1/plot"
)

// PreciseTicks places labelled major ticks on round values and unlabelled
// minor ticks in between, aiming at NSuggestedTicks labels.
type PreciseTicks struct {
	NSuggestedTicks int
}

func (t PreciseTicks) Ticks(min, max float64) []plot.Tick {
	if t.NSuggestedTicks < 2 {
		t.NSuggestedTicks = 4
	}
	if !(max > min) || math.IsInf(max-min, 0) {
		return []plot.Tick{{Value: min, Label: formatFloatTick(min, -1)}}
	}

	majorMult, majorDelta := majorStep(min, max, t.NSuggestedTicks)

	mag := math.Max(math.Abs(min), math.Abs(max))
	prec := int(math.Ceil(math.Log10(mag)) - math.Floor(math.Log10(majorDelta)))

	var ticks []plot.Tick
	major := make(map[float64]bool)
	val := math.Floor(min/majorDelta) * majorDelta
	for ; val <= max; val += majorDelta {
		if val < min {
			continue
		}
		v := round(val, prec)
		major[v] = true
		ticks = append(ticks, plot.Tick{Value: v, Label: formatFloatTick(v, -1)})
	}

	minorDelta := majorDelta / 2
	switch majorMult {
	case 3, 6:
		minorDelta = majorDelta / 3
	case 5:
		minorDelta = majorDelta / 5
	}
	for val = math.Floor(min/minorDelta) * minorDelta; val <= max; val += minorDelta {
		if val >= min && !major[val] {
			ticks = append(ticks, plot.Tick{Value: val})
		}
	}
	return ticks
}

// majorStep returns the multiplier and spacing of major ticks.
func majorStep(min, max float64, n int) (int, float64) {
	tens := math.Pow10(int(math.Floor(math.Log10(max - min))))
	span := (max - min) / tens
	for span < float64(n)-1 {
		tens /= 10
		span = (max - min) / tens
	}

	mult := int(span / float64(n-1))
	switch mult {
	case 7:
		mult = 6
	case 9:
		mult = 8
	}
	if mult < 1 {
		mult = 1
	}
	return mult, float64(mult) * tens
}

func round(x float64, prec int) float64 {
	if x == 0 {
		// Make sure zero is returned
		// without the negative bit set.
		return 0
	}
	if prec >= 0 && x == math.Trunc(x) {
		return x
	}
	pow := math.Pow10(prec)
	intermed := x * pow
	if math.IsInf(intermed, 0) {
		return x
	}
	if x < 0 {
		x = math.Ceil(intermed - 0.5)
	} else {
		x = math.Floor(intermed + 0.5)
	}

	if x == 0 {
		return 0
	}

	return x / pow
}

func formatFloatTick(v float64, prec int) string {
	return strconv.FormatFloat(v, 'g', prec, 64)
}
