package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const maxPageSize = 100

// GetPaginationParams reads page and per_page, falling back to 1 and 10.
func GetPaginationParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = 10
	}

	return page, pageSize
}

// ParseID reads a positive numeric path parameter.
func ParseID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
