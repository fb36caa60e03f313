package energy

import "sort"

// sortedKeys fixes summation order so repeated evaluations are bit-identical.
func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
