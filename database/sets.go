package database

import (
	"slices"
	"strings"

	"github.com/lib/pq"
)

func normalizeIDs(ids []int64) pq.Int64Array {
	out := slices.Clone(ids)
	if out == nil {
		out = []int64{}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func normalizeLinks(links []string) pq.StringArray {
	out := make([]string, 0, len(links))
	for _, l := range links {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func ContainsID(set []int64, id int64) bool {
	return slices.Contains(set, id)
}

// AddIDs returns the union of set and ids in canonical form.
func AddIDs(set []int64, ids ...int64) pq.Int64Array {
	return normalizeIDs(slices.Concat(set, ids))
}

// RemoveIDs returns set without any of ids in canonical form.
func RemoveIDs(set []int64, ids ...int64) pq.Int64Array {
	kept := slices.DeleteFunc(slices.Clone(set), func(v int64) bool {
		return slices.Contains(ids, v)
	})
	return normalizeIDs(kept)
}

func AddLinks(set []string, links ...string) pq.StringArray {
	return normalizeLinks(slices.Concat(set, links))
}

func RemoveLinks(set []string, links ...string) pq.StringArray {
	drop := make(map[string]struct{}, len(links))
	for _, l := range links {
		drop[strings.TrimSpace(l)] = struct{}{}
	}
	kept := slices.DeleteFunc(slices.Clone(set), func(l string) bool {
		_, ok := drop[l]
		return ok
	})
	return normalizeLinks(kept)
}
