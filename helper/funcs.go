package helper

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/mitchellh/hashstructure"
)

var ipv4RE = regexp.MustCompile(`(25[0-5]|2[0-4][0-9]|1[0-9][0-9]|[1-9]?[0-9])\.` +
	`(25[0-5]|2[0-4][0-9]|1[0-9][0-9]|[1-9]?[0-9])\.` +
	`(25[0-5]|2[0-4][0-9]|1[0-9][0-9]|[1-9]?[0-9])\.` +
	`(25[0-5]|2[0-4][0-9]|1[0-9][0-9]|[1-9]?[0-9])`)

// FindIP will return the first IPv4 address from a string. This is used to
// deal with resolver output such as "51.15.0.1 STREAM bbb-w1.example.com".
func FindIP(input string) string {
	return ipv4RE.FindString(input)
}

// Max returns the largest float from a variable length list of floats.
func Max(values ...float64) float64 {
	max := values[0]
	for _, i := range values[1:] {
		if i > max {
			max = i
		}
	}

	return max
}

// Round rounds v half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// Difference returns the items of requested missing from succeeded,
// preserving order.
func Difference(requested, succeeded []string) []string {
	done := make(map[string]struct{}, len(succeeded))
	for _, s := range succeeded {
		done[s] = struct{}{}
	}

	var out []string
	for _, r := range requested {
		if _, ok := done[r]; !ok {
			out = append(out, r)
		}
	}
	return out
}

// Fingerprint hashes any value into a stable identifier.
func Fingerprint(v interface{}) (uint64, error) {
	return hashstructure.Hash(v, nil)
}

// ParseNumbers parses a comma separated list of positive numbers and ranges
// such as "1,4-6". The result is sorted and deduplicated.
func ParseNumbers(input string) ([]int, error) {
	seen := make(map[int]struct{})

	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		first, last := part, part
		if i := strings.Index(part, "-"); i > 0 {
			first, last = part[:i], part[i+1:]
		}

		from, err := strconv.Atoi(strings.TrimSpace(first))
		if err != nil || from < 1 {
			return nil, fmt.Errorf("invalid number %q", part)
		}
		to, err := strconv.Atoi(strings.TrimSpace(last))
		if err != nil || to < from {
			return nil, fmt.Errorf("invalid range %q", part)
		}

		for n := from; n <= to; n++ {
			seen[n] = struct{}{}
		}
	}

	numbers := make([]int, 0, len(seen))
	for n := range seen {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers, nil
}
