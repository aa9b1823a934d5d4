package mrrapi

import (
	"bytes"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
)

// Page is the uniform pagination shape every listing returns.
// CurrentPage is zero-based.
type Page[T any] struct {
	Items         []T `json:"items"`
	CurrentPage   int `json:"currentPage"`
	TotalPages    int `json:"totalPages"`
	TotalElements int `json:"totalElements"`
	Limit         int `json:"limit"`
}

// pageEnvelope mirrors the backend's paginated wire format. Content is a
// pointer so its presence distinguishes an envelope from other objects.
type pageEnvelope[T any] struct {
	Content       *[]T `json:"content"`
	Page          int  `json:"page"`
	TotalPages    int  `json:"totalPages"`
	TotalElements int  `json:"totalElements"`
	Size          int  `json:"size"`
}

// decodePage accepts either the paginated envelope or a bare array. The
// backend migrated resources to pagination one at a time, so both shapes are
// live; a bare array is treated as a complete single page.
func decodePage[T any](raw []byte, fallbackPage, limit int) (Page[T], error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Page[T]{Limit: limit}.Normalize(), nil
	}

	if trimmed[0] == '[' {
		var items []T
		if err := sonic.Unmarshal(trimmed, &items); err != nil {
			return Page[T]{}, crerr.Wrap(err, "decode list response")
		}
		return Page[T]{
			Items:         items,
			CurrentPage:   0,
			TotalPages:    1,
			TotalElements: len(items),
			Limit:         limit,
		}.Normalize(), nil
	}

	var env pageEnvelope[T]
	if err := sonic.Unmarshal(trimmed, &env); err != nil {
		return Page[T]{}, crerr.Wrap(err, "decode paginated response")
	}
	if env.Content == nil {
		return Page[T]{}, crerr.New("response is neither a list nor a paginated envelope")
	}

	page := Page[T]{
		Items:         *env.Content,
		CurrentPage:   env.Page,
		TotalPages:    env.TotalPages,
		TotalElements: env.TotalElements,
		Limit:         env.Size,
	}
	if page.CurrentPage == 0 && fallbackPage > 0 {
		page.CurrentPage = fallbackPage
	}
	if page.Limit == 0 {
		page.Limit = limit
	}

	return page.Normalize(), nil
}

// Normalize enforces the page invariants: non-negative counters, a limit no
// smaller than the item count, and at least one page whenever items exist.
// Normalizing an already-normalized page is a no-op.
func (p Page[T]) Normalize() Page[T] {
	if p.CurrentPage < 0 {
		p.CurrentPage = 0
	}
	if p.TotalPages < 0 {
		p.TotalPages = 0
	}
	if p.TotalElements < 0 {
		p.TotalElements = 0
	}
	if p.Limit < 0 {
		p.Limit = 0
	}
	if p.Limit < len(p.Items) {
		p.Limit = len(p.Items)
	}
	if p.TotalElements < len(p.Items) {
		p.TotalElements = len(p.Items)
	}
	if p.TotalPages == 0 && len(p.Items) > 0 {
		p.TotalPages = 1
	}
	return p
}
