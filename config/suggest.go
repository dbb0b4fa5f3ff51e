package config

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Suggest returns the candidate closest to token, if any is near enough to be
// a plausible typo.
func Suggest(token string, candidates []string) (string, bool) {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return "", false
	}

	type scored struct {
		val  string
		dist int
	}
	var results []scored
	for _, cand := range candidates {
		c := strings.ToLower(cand)
		if strings.HasPrefix(c, token) && len(token) >= 2 {
			results = append(results, scored{val: cand, dist: 0})
			continue
		}
		dist := levenshtein.ComputeDistance(token, c)
		if dist > distanceLimit(len(c)) {
			continue
		}
		results = append(results, scored{val: cand, dist: dist})
	}
	if len(results) == 0 {
		return "", false
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].dist == results[j].dist {
			return results[i].val < results[j].val
		}
		return results[i].dist < results[j].dist
	})
	return results[0].val, true
}

func distanceLimit(n int) int {
	switch {
	case n <= 4:
		return 1
	case n <= 8:
		return 2
	default:
		return 3
	}
}
