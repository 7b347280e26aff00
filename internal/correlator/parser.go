package correlator

import (
	"regexp"
	"strconv"
)

// The processed feed serves fragments under a /segments/ prefix
// (e.g. http://localhost:8000/api/segments/248123.ts). The raw feed comes
// from a CDN with an arbitrary path, so its only usable convention is the
// trailing <digits>.<ext> component. Try the stricter pattern first.
var (
	processedFragmentRe = regexp.MustCompile(`/segments/(\d+)\.\w+$`)
	rawFragmentRe       = regexp.MustCompile(`/(\d+)\.\w+$`)
)

// ParseSegmentID extracts the segment id from a fragment URL.
// It returns ok=false for URLs that match neither feed's naming convention
// and for ids that parse to zero; callers treat both as "no observation".
// The function is pure and never panics, whatever the input.
func ParseSegmentID(fragmentURL string) (SegmentID, bool) {
	m := processedFragmentRe.FindStringSubmatch(fragmentURL)
	if m == nil {
		m = rawFragmentRe.FindStringSubmatch(fragmentURL)
	}
	if m == nil {
		return 0, false
	}

	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || n == 0 {
		// Overlong digit runs overflow int64; treat them like any other
		// out-of-convention URL. Zero is reserved for "no segment".
		return 0, false
	}
	return SegmentID(n), true
}
