// Package mcversion classifies and compares Minecraft version strings for
// factory dispatch bounds checking. Minecraft versions aren't semver (release
// strings like "1.20.1" coexist with snapshot strings like "24w14a"), so this
// is a small bespoke comparator rather than an off-the-shelf semver package.
package mcversion

import (
	"regexp"
	"strconv"
	"strings"
)

var releasePattern = regexp.MustCompile(`^\d+\.\d+(\.\d+)?$`)

// IsRelease reports whether s looks like a dotted release version.
func IsRelease(s string) bool {
	return releasePattern.MatchString(s)
}

// Compare orders two release version strings numerically component-by-
// component. Returns -1, 0, or 1. Non-release strings compare equal to
// everything (snapshots have no total order in this scheme).
func Compare(a, b string) int {
	if !IsRelease(a) || !IsRelease(b) {
		return 0
	}
	pa, pb := parts(a), parts(b)
	for i := 0; i < len(pa) || i < len(pb); i++ {
		var va, vb int
		if i < len(pa) {
			va = pa[i]
		}
		if i < len(pb) {
			vb = pb[i]
		}
		if va != vb {
			if va < vb {
				return -1
			}
			return 1
		}
	}
	return 0
}

// InBounds reports whether v falls within [min, max] inclusive. An empty
// bound is unconstrained on that side.
func InBounds(v, min, max string) bool {
	if min != "" && Compare(v, min) < 0 {
		return false
	}
	if max != "" && Compare(v, max) > 0 {
		return false
	}
	return true
}

func parts(s string) []int {
	fields := strings.Split(s, ".")
	out := make([]int, len(fields))
	for i, f := range fields {
		n, _ := strconv.Atoi(f)
		out[i] = n
	}
	return out
}
