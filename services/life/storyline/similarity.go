// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storyline

import "strings"

// normalizeTitle lowercases and trims a title for comparison.
func normalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// titleWordSet tokenizes a normalized title into its set of words.
func titleWordSet(title string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, word := range strings.Fields(title) {
		set[word] = struct{}{}
	}
	return set
}

// TitleSimilarity computes the Jaccard overlap of two titles' word sets:
// |intersection| / |union|. Case and surrounding whitespace are ignored.
// Two empty titles score 0, not 1; there is nothing to match.
func TitleSimilarity(a, b string) float64 {
	setA := titleWordSet(normalizeTitle(a))
	setB := titleWordSet(normalizeTitle(b))
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for word := range setA {
		if _, ok := setB[word]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection

	return float64(intersection) / float64(union)
}
