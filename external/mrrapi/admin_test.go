package mrrapi

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync/atomic"
	"testing"
)

func TestDeletePlayer_NotFoundMapped(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}), ClientConfig{})
	client.SetSession(Session{TelegramID: 1})

	err := client.DeletePlayer(context.Background(), "ghost")
	if !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}
}

func TestDeleteReview_NotFoundMapped(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}), ClientConfig{})
	client.SetSession(Session{TelegramID: 1})

	if err := client.DeleteReview(context.Background(), 42); !errors.Is(err, ErrReviewNotFound) {
		t.Fatalf("expected ErrReviewNotFound, got %v", err)
	}
}

func TestRenamePlayer_ErrorKinds(t *testing.T) {
	t.Parallel()

	var status atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}), ClientConfig{})
	client.SetSession(Session{TelegramID: 1})

	status.Store(http.StatusNotFound)
	if _, err := client.RenamePlayer(context.Background(), "old", "new"); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}

	status.Store(http.StatusConflict)
	if _, err := client.RenamePlayer(context.Background(), "old", "taken"); !errors.Is(err, ErrPlayerAlreadyExists) {
		t.Fatalf("expected ErrPlayerAlreadyExists, got %v", err)
	}
}

func TestRenamePlayer_InvalidatesBothCacheKeys(t *testing.T) {
	t.Parallel()

	var lookups atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPatch:
			w.Write([]byte(`{"id":7,"nickName":"NewNick"}`))
		default:
			lookups.Add(1)
			w.Write([]byte(`{"id":7,"nickName":"OldNick"}`))
		}
	}), ClientConfig{})
	client.SetSession(Session{TelegramID: 1})

	ctx := context.Background()
	if _, err := client.GetPlayerByNick(ctx, "OldNick"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}

	renamed, err := client.RenamePlayer(ctx, "OldNick", "NewNick")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.NickName != "NewNick" {
		t.Fatalf("unexpected renamed player %+v", renamed)
	}

	if _, err := client.GetPlayerByNick(ctx, "OldNick"); err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if lookups.Load() != 2 {
		t.Fatalf("expected stale cache entry dropped by rename, got %d lookups", lookups.Load())
	}
}

func TestAdminReviews_AppliesFilters(t *testing.T) {
	t.Parallel()

	var gotQuery atomic.Value
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query())
		w.Write([]byte(`{"content":[],"page":0,"totalPages":0,"totalElements":0,"size":20}`))
	}), ClientConfig{})
	client.SetSession(Session{TelegramID: 1})

	_, err := client.AdminReviews(context.Background(), AdminReviewsQuery{
		PlayerNick: "Spidey",
		Owner:      "critic42",
		Page:       1,
		Limit:      20,
	})
	if err != nil {
		t.Fatalf("admin reviews: %v", err)
	}

	query := gotQuery.Load().(url.Values)
	if query.Get("nick") != "Spidey" {
		t.Fatalf("expected nick filter, got %v", query)
	}
	if query.Get("owner") != "critic42" {
		t.Fatalf("expected owner filter, got %v", query)
	}
	if query.Get("page") != "1" {
		t.Fatalf("expected page param, got %v", query)
	}
}
