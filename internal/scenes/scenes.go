// Package scenes estimates how many scenes a script describes.
package scenes

import "strings"

// MinScenes is the floor used when no script text is available.
const MinScenes = 2

// Count returns the number of lines that, trimmed and lowercased, start with
// "escena" or "s". It is a heuristic; any text is accepted.
func Count(script string) int {
	n := 0
	for _, line := range strings.Split(script, "\n") {
		line = strings.ToLower(strings.TrimSpace(line))
		if strings.HasPrefix(line, "escena") || strings.HasPrefix(line, "s") {
			n++
		}
	}
	return n
}

// Resolve picks the scene count for a manifest: the script count when script
// text is present, otherwise max(MinScenes, propertyImages).
func Resolve(script string, hasScript bool, propertyImages int) int {
	if hasScript && strings.TrimSpace(script) != "" {
		return Count(script)
	}
	return max(MinScenes, propertyImages)
}
