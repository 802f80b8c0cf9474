package oauth

import "sort"

// mergeScopes unions provider defaults, deployment config and caller extras.
// Set semantics: duplicates collapse. Sorted for stable URLs and tests.
func mergeScopes(provider Provider, configured, extra []string) []string {
	seen := make(map[string]struct{})
	add := func(list []string) {
		for _, s := range list {
			if s == "" {
				continue
			}
			seen[s] = struct{}{}
		}
	}
	add(defaultScopes[provider])
	add(configured)
	add(extra)

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
