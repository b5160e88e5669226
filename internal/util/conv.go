package util

import (
	"strconv"
	"strings"
)

// MustParseUint 将字符串转换为无符号整数，解析失败时返回 0
func MustParseUint(s string) uint {
	id, _ := strconv.ParseUint(s, 10, 32)
	return uint(id)
}

// ParseUintList 解析逗号分隔的ID列表，忽略无效项
func ParseUintList(s string) []uint {
	var out []uint
	for _, part := range strings.Split(s, ",") {
		if id := MustParseUint(strings.TrimSpace(part)); id > 0 {
			out = append(out, id)
		}
	}
	return out
}

// Pagination 规范化分页参数
func Pagination(pageStr, limitStr string) (int, int) {
	page, limit := DefaultPage, DefaultLimit
	if v, err := strconv.Atoi(pageStr); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(limitStr); err == nil && v > 0 {
		limit = v
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}
