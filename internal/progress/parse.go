package progress

import (
	"regexp"
	"strconv"
)

var percentPattern = regexp.MustCompile(`^.+\s(\d*\.?\d*)%.+$`)

// ParseProgress extracts a completion fraction from lines such as
// "Processing 1/5 frames: 42.0% done". The percent token must be preceded by
// whitespace and followed by more text.
func ParseProgress(line string) (float64, bool) {
	match := percentPattern.FindStringSubmatch(line)
	if len(match) < 2 || match[1] == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return value / 100, true
}
