package mrrapi

import (
	"reflect"
	"testing"
)

func TestDecodePage_BareArrayIsSinglePage(t *testing.T) {
	t.Parallel()

	page, err := decodePage[int]([]byte(`[1, 2, 3]`), 0, 2)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if !reflect.DeepEqual(page.Items, []int{1, 2, 3}) {
		t.Fatalf("unexpected items %v", page.Items)
	}
	if page.CurrentPage != 0 || page.TotalPages != 1 || page.TotalElements != 3 {
		t.Fatalf("unexpected counters: %+v", page)
	}
	// A bare array is a complete page; the limit stretches to hold it.
	if page.Limit != 3 {
		t.Fatalf("expected limit raised to 3, got %d", page.Limit)
	}
}

func TestDecodePage_Envelope(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"content":[10,20],"page":2,"totalPages":5,"totalElements":42,"size":10}`)
	page, err := decodePage[int](raw, 0, 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if page.CurrentPage != 2 || page.TotalPages != 5 || page.TotalElements != 42 || page.Limit != 10 {
		t.Fatalf("unexpected counters: %+v", page)
	}
	if !reflect.DeepEqual(page.Items, []int{10, 20}) {
		t.Fatalf("unexpected items %v", page.Items)
	}
}

func TestDecodePage_EnvelopeEmptyContent(t *testing.T) {
	t.Parallel()

	page, err := decodePage[int]([]byte(`{"content":[],"page":0,"totalPages":0,"totalElements":0,"size":10}`), 0, 10)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(page.Items) != 0 || page.TotalPages != 0 {
		t.Fatalf("unexpected empty page: %+v", page)
	}
}

func TestDecodePage_NullAndEmptyBody(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "null", "  "} {
		page, err := decodePage[int]([]byte(raw), 0, 5)
		if err != nil {
			t.Fatalf("decode %q: %v", raw, err)
		}
		if len(page.Items) != 0 {
			t.Fatalf("expected empty page for %q", raw)
		}
	}
}

func TestDecodePage_UnknownObjectIsError(t *testing.T) {
	t.Parallel()

	if _, err := decodePage[int]([]byte(`{"message":"oops"}`), 0, 5); err == nil {
		t.Fatalf("expected error for object without content field")
	}
}

func TestDecodePage_FallbackPageApplied(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"content":[1],"totalPages":3,"totalElements":7,"size":1}`)
	page, err := decodePage[int](raw, 2, 1)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.CurrentPage != 2 {
		t.Fatalf("expected requested page as fallback, got %d", page.CurrentPage)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	dirty := Page[string]{
		Items:         []string{"a", "b"},
		CurrentPage:   -1,
		TotalPages:    0,
		TotalElements: 1,
		Limit:         1,
	}

	once := dirty.Normalize()
	twice := once.Normalize()

	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("normalize not idempotent: %+v vs %+v", once, twice)
	}
	if once.CurrentPage != 0 {
		t.Fatalf("expected negative page clamped")
	}
	if once.Limit != 2 || once.TotalElements != 2 {
		t.Fatalf("expected counters raised to item count: %+v", once)
	}
	if once.TotalPages != 1 {
		t.Fatalf("expected at least one page when items exist")
	}
}
