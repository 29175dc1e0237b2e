package sources

import (
	"strconv"
	"strings"
)

// NextName returns label followed by the smallest positive integer that does
// not collide with any name in existing ("Browser Source 1", "Browser Source 2").
// Names are compared exactly, so callers pass already-normalised names.
func NextName(label string, existing []string) string {
	used := map[int]bool{}
	prefix := label + " "
	for _, name := range existing {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		n, err := strconv.Atoi(name[len(prefix):])
		if err != nil || n <= 0 || strconv.Itoa(n) != name[len(prefix):] {
			continue
		}
		used[n] = true
	}
	n := 1
	for used[n] {
		n++
	}
	return prefix + strconv.Itoa(n)
}
