package http

import (
	"net/url"
	"strconv"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

type paginationMeta struct {
	Count int `json:"count"`
}

type paginationLinks struct {
	First string `json:"first,omitempty"`
	Last  string `json:"last,omitempty"`
	Next  string `json:"next,omitempty"`
	Prev  string `json:"prev,omitempty"`
}

type paginatedResponse struct {
	Meta  paginationMeta  `json:"meta"`
	Links paginationLinks `json:"links"`
	Data  interface{}     `json:"data"`
}

// parsePaginationParams reads offset and limit, falling back to defaults on bad input
func parsePaginationParams(u *url.URL) (int, int) {
	offset := 0
	limit := defaultLimit

	if v, err := strconv.Atoi(u.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	if v, err := strconv.Atoi(u.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return offset, limit
}

func calculateOffsetOfLastPage(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return ((total - 1) / limit) * limit
}

func pageLink(u *url.URL, offset, limit int) string {
	link := *u
	q := link.Query()
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	link.RawQuery = q.Encode()
	return link.RequestURI()
}

func buildNavigationLinks(u *url.URL, offset, limit, total int) paginationLinks {
	if total == 0 {
		return paginationLinks{}
	}

	links := paginationLinks{
		First: pageLink(u, 0, limit),
		Last:  pageLink(u, calculateOffsetOfLastPage(total, limit), limit),
	}
	if offset+limit < total {
		links.Next = pageLink(u, offset+limit, limit)
	}
	if offset > 0 {
		prev := offset - limit
		if prev < 0 {
			prev = 0
		}
		links.Prev = pageLink(u, prev, limit)
	}
	return links
}

func buildPaginatedResponse(u *url.URL, offset, limit, total int, data interface{}) paginatedResponse {
	return paginatedResponse{
		Meta:  paginationMeta{Count: total},
		Links: buildNavigationLinks(u, offset, limit, total),
		Data:  data,
	}
}
