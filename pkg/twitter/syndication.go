package twitter

import (
	"errors"
	"math"
	"regexp"
	"strconv"
)

var syndicationTokenStrip = regexp.MustCompile(`(0+|\.)`)

// SyndicationToken derives the token the syndication endpoint expects for a
// post: (id / 1e15 * pi) rendered in base 36 with zeros and the radix point
// removed. The endpoint compares it byte for byte, so the float arithmetic and
// the base-36 rendering must match the web embed script exactly.
func SyndicationToken(tweetID string) string {
	id, err := strconv.ParseFloat(tweetID, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		id = math.NaN()
	}
	scaled := float64(id/1e15) * math.Pi
	return syndicationTokenStrip.ReplaceAllString(formatRadix(scaled, 36), "")
}

const radixDigits = "0123456789abcdefghijklmnopqrstuvwxyz"

// formatRadix renders a float64 in the given radix using the shortest digit
// string that round-trips, matching Number.prototype.toString(radix).
func formatRadix(value float64, radix int) string {
	switch {
	case math.IsNaN(value):
		return "NaN"
	case math.IsInf(value, 1):
		return "Infinity"
	case math.IsInf(value, -1):
		return "-Infinity"
	}

	negative := value < 0
	if negative {
		value = -value
	}
	r := float64(radix)

	integer := math.Floor(value)
	fraction := value - integer
	// Only emit fractional digits up to the precision of the input.
	delta := 0.5 * (math.Nextafter(value, math.Inf(1)) - value)
	delta = math.Max(math.SmallestNonzeroFloat64, delta)

	var frac []byte
	if fraction >= delta {
		frac = append(frac, '.')
		for {
			fraction = float64(fraction * r)
			delta = float64(delta * r)
			digit := int(fraction)
			frac = append(frac, radixDigits[digit])
			fraction -= float64(digit)

			// Round half to even, propagating carries back through the
			// digits already written.
			if fraction > 0.5 || (fraction == 0.5 && digit&1 == 1) {
				if fraction+delta > 1 {
					for {
						last := len(frac) - 1
						if last == 0 {
							integer++
							frac = frac[:0]
							break
						}
						d := digitValue(frac[last])
						if d+1 < radix {
							frac[last] = radixDigits[d+1]
							break
						}
						frac = frac[:last]
					}
					break
				}
			}
			if fraction < delta {
				break
			}
		}
	}

	// Digits below the precision of the integer part are rendered as zeros.
	var intDigits []byte
	for doubleExponent(integer/r) > 0 {
		integer /= r
		intDigits = append(intDigits, '0')
	}
	for {
		remainder := math.Mod(integer, r)
		intDigits = append(intDigits, radixDigits[int(remainder)])
		integer = (integer - remainder) / r
		if integer <= 0 {
			break
		}
	}

	out := make([]byte, 0, len(intDigits)+len(frac)+1)
	if negative {
		out = append(out, '-')
	}
	for i := len(intDigits) - 1; i >= 0; i-- {
		out = append(out, intDigits[i])
	}
	return string(append(out, frac...))
}

func digitValue(c byte) int {
	if c > '9' {
		return int(c-'a') + 10
	}
	return int(c - '0')
}

// doubleExponent returns the binary exponent of d scaled so the significand
// is an integer.
func doubleExponent(d float64) int {
	biased := int(math.Float64bits(d)>>52) & 0x7ff
	if biased == 0 {
		return -1074
	}
	return biased - 1075
}
