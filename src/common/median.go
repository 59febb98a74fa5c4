package common

import (
	"sort"
	"time"
)

// MedianDuration returns the median of a window of duration samples. It is
// used to smooth RTT measurements so a single slow probe does not reorder
// routes.
func MedianDuration(input []time.Duration) time.Duration {
	s := make([]time.Duration, len(input))
	copy(s, input)
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })

	l := len(s)
	switch {
	case l == 0:
		return 0
	case l%2 == 0:
		mid := l/2 - 1
		return (s[mid] + s[mid+1]) / 2
	default:
		return s[l/2]
	}
}
