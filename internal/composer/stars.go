package composer

import "strings"

// starParts splits a score into full stars and an optional half star.
// 3.5 renders as three full stars and a half.
func starParts(score float64) (full int, half bool) {
	full = int(score)
	frac := score - float64(full)
	if frac >= 0.5 {
		half = true
	}
	if full > 5 {
		full, half = 5, false
	}
	return full, half
}

// StarRow renders a score as "★★★½".
func StarRow(score float64) string {
	full, half := starParts(score)
	var b strings.Builder
	b.WriteString(strings.Repeat("★", full))
	if half {
		b.WriteString("½")
	}
	return b.String()
}
