package metrics

import (
	"net/http"
	"sort"
	"strconv"
)

// StatusBucket is the aggregated failure count for one HTTP status code.
type StatusBucket struct {
	Code  int    `json:"code"`
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// FlattenStatusCodes converts a status->count map into rows sorted by
// descending count, then by code for stability.
func FlattenStatusCodes(codes map[int]int64) []StatusBucket {
	if len(codes) == 0 {
		return nil
	}
	rows := make([]StatusBucket, 0, len(codes))
	for code, count := range codes {
		label := http.StatusText(code)
		if label == "" {
			label = "Status " + strconv.Itoa(code)
		}
		rows = append(rows, StatusBucket{Code: code, Label: label, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Code < rows[j].Code
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
