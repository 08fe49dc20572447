package utils

import (
	"net/http"
	"strconv"
	"strings"
)

type QueryOptions struct {
	Page   int
	Limit  int
	Status string
	UserID string
}

// ParseQueryOptions reads page/limit/status/userId. An explicit limit of
// zero or below means "no limit" and is kept as 0.
func ParseQueryOptions(r *http.Request) QueryOptions {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}

	limit := 10
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	if limit < 0 {
		limit = 0
	}

	return QueryOptions{
		Page:   page,
		Limit:  limit,
		Status: strings.TrimSpace(q.Get("status")),
		UserID: strings.TrimSpace(q.Get("userId")),
	}
}
