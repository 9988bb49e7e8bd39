package utils

import (
	"strconv"
)

// StringToInt converts string to int, returns def if error
func StringToInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

// ParseID parses a positive numeric path id.
func ParseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, Validationf("invalid id %q", s)
	}
	return uint(id), nil
}

func UintPtr(v uint) *uint { return &v }
