package bdxplot

import (
	"fmt"
	"strconv"
	"strings"
)

// FloatArrayFlags collects a repeated float flag. The first Set discards
// any default value.
type FloatArrayFlags struct {
	Array   []float64
	beenSet bool
}

func (f *FloatArrayFlags) Set(valueStr string) error {
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return err
	}

	if !f.beenSet {
		f.beenSet = true
		f.Array = nil
	}

	f.Array = append(f.Array, value)
	return nil
}

func (f *FloatArrayFlags) String() string {
	return fmt.Sprint(f.Array)
}

// Range returns the two values of a [lo, hi] flag pair.
func (f *FloatArrayFlags) Range() (lo, hi float64, ok bool) {
	if len(f.Array) != 2 || f.Array[1] <= f.Array[0] {
		return 0, 0, false
	}
	return f.Array[0], f.Array[1], true
}

// StringArrayFlags collects a repeated string flag.
type StringArrayFlags struct {
	Array   []string
	beenSet bool
}

func (f *StringArrayFlags) Set(value string) error {
	if !f.beenSet {
		f.beenSet = true
		f.Array = nil
	}

	f.Array = append(f.Array, value)
	return nil
}

func (f *StringArrayFlags) String() string {
	return strings.Join(f.Array, ",")
}
