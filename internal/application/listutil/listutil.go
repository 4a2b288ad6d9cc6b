// Package listutil parses paging, sorting and filtering query parameters
// for the list endpoints and describes the resulting page.
package listutil

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// PageParams carries pagination parameters parsed from a request.
type PageParams struct {
	Page    int // 1-indexed page number
	PerPage int // rows per page
}

// SortParams carries sorting parameters parsed from a request.
type SortParams struct {
	Sort string // column name, empty for the store's default order
	Dir  string // "asc" or "desc"
}

// FilterParams carries search and filter parameters.
type FilterParams struct {
	Search  string            // free-text search query (q)
	Filters map[string]string // exact-match filters (e.g. category=booking)
}

// PageInfo describes one page of a list response.
type PageInfo struct {
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

// ListParams combines all list parameters.
type ListParams struct {
	PageParams
	SortParams
	FilterParams
}

const (
	// DefaultPerPage is used when per_page is missing or invalid.
	DefaultPerPage = 20
	// MaxPerPage caps per_page.
	MaxPerPage = 200
)

// ParsePageParams extracts page and per_page from URL query values.
// POST: Page >= 1 and 1 <= PerPage <= MaxPerPage
func ParsePageParams(q url.Values) PageParams {
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, err := strconv.Atoi(q.Get("per_page"))
	if err != nil || perPage < 1 {
		perPage = DefaultPerPage
	}
	return PageParams{Page: page, PerPage: min(perPage, MaxPerPage)}
}

// ParseSortParams extracts sort and dir from URL query values.
// A leading "-" on sort selects descending order ("-created_at").
// POST: Sort is empty or one of allowedColumns; Dir is "asc" or "desc"
func ParseSortParams(q url.Values, allowedColumns []string) SortParams {
	sort := q.Get("sort")
	dir := strings.ToLower(q.Get("dir"))
	if rest, ok := strings.CutPrefix(sort, "-"); ok {
		sort, dir = rest, "desc"
	}
	if !slices.Contains(allowedColumns, sort) {
		sort = ""
	}
	if dir != "desc" {
		dir = "asc"
	}
	return SortParams{Sort: sort, Dir: dir}
}

// ParseFilterParams extracts search and named filters from URL query values.
// POST: Filters holds only non-empty values of filterKeys
func ParseFilterParams(q url.Values, filterKeys []string) FilterParams {
	fp := FilterParams{
		Search:  strings.TrimSpace(q.Get("q")),
		Filters: make(map[string]string),
	}
	for _, key := range filterKeys {
		if v := strings.TrimSpace(q.Get(key)); v != "" {
			fp.Filters[key] = v
		}
	}
	return fp
}

// ParseListParams parses all list parameters from URL query values.
func ParseListParams(q url.Values, allowedSortCols []string, filterKeys []string) ListParams {
	return ListParams{
		PageParams:   ParsePageParams(q),
		SortParams:   ParseSortParams(q, allowedSortCols),
		FilterParams: ParseFilterParams(q, filterKeys),
	}
}

// NewPageInfo computes pagination metadata.
// POST: Page is clamped to [1, TotalPages]; TotalPages >= 1
func NewPageInfo(page, perPage, total int) PageInfo {
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	totalPages := max((total+perPage-1)/perPage, 1)
	page = min(max(page, 1), totalPages)
	return PageInfo{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// Offset returns the SQL OFFSET for the current page.
func (p PageInfo) Offset() int {
	return (p.Page - 1) * p.PerPage
}
