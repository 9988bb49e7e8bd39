package utils

import (
	"sort"
)

// PercentileValue returns the value at index floor(len*p/100) of the sorted counts,
// or 0 when that index falls outside the slice. The input is not modified.
func PercentileValue(counts []int, p int) int {
	if len(counts) == 0 {
		return 0
	}
	sorted := make([]int, len(counts))
	copy(sorted, counts)
	sort.Ints(sorted)

	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		return 0
	}
	return sorted[idx]
}

// AgeBucket 评论按发布时间分组：24 小时内 / 7 天内 / 更早
type AgeBucket int

const (
	AgeRecent AgeBucket = iota
	AgeMedium
	AgeOld
)

// BucketForAge 按小时数划分年龄段
func BucketForAge(hours float64) AgeBucket {
	switch {
	case hours <= 24:
		return AgeRecent
	case hours <= 24*7:
		return AgeMedium
	default:
		return AgeOld
	}
}
