package mrrapi

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mrreviews/mrr/internal/domain/review"
)

func TestReviewDTO_FieldRemapping(t *testing.T) {
	t.Parallel()

	image := "https://cdn.example/shot.png"
	dto := reviewDTO{
		ID:       9,
		Review:   "solid duelist",
		Created:  "2026-08-01T10:00:00Z",
		Grade:    5,
		Rank:     6,
		Image:    &image,
		UserNick: "critic42",
		Player: &struct {
			NickName string `json:"nickName"`
		}{NickName: "Spidey"},
	}

	mapped := dto.toDomain()
	if mapped.Comment != "solid duelist" {
		t.Fatalf("review text not remapped: %+v", mapped)
	}
	if mapped.CreatedAt != "2026-08-01T10:00:00Z" {
		t.Fatalf("created not remapped: %+v", mapped)
	}
	if mapped.ScreenshotURL != image {
		t.Fatalf("image not remapped: %+v", mapped)
	}
	if mapped.Author != "critic42" {
		t.Fatalf("author not remapped: %+v", mapped)
	}
	if mapped.PlayerNick != "Spidey" {
		t.Fatalf("nested player nick not resolved: %+v", mapped)
	}
}

func TestReviewDTO_Fallbacks(t *testing.T) {
	t.Parallel()

	mapped := reviewDTO{ID: 1, Review: "?"}.toDomain()
	if mapped.Author != "Anonymous" {
		t.Fatalf("expected anonymous author fallback, got %q", mapped.Author)
	}
	if mapped.PlayerNick != "Unknown Player" {
		t.Fatalf("expected unknown player fallback, got %q", mapped.PlayerNick)
	}
	if mapped.ScreenshotURL != "" {
		t.Fatalf("expected empty screenshot for null image")
	}

	owner := reviewDTO{
		ID:    2,
		Owner: &struct {
			UserName string `json:"userName"`
		}{UserName: "owner-name"},
	}.toDomain()
	if owner.Author != "owner-name" {
		t.Fatalf("expected owner fallback, got %q", owner.Author)
	}
}

func TestReviewsByPlayer_CachedUntilAddReview(t *testing.T) {
	t.Parallel()

	var gets atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Write([]byte(`{"id":100}`))
			return
		}
		gets.Add(1)
		w.Write([]byte(`[{"id":1,"review":"ok","grade":4,"rank":2,"playerNick":"Spidey","userNick":"a"}]`))
	}), ClientConfig{})
	client.SetSession(Session{TelegramID: 5})

	ctx := context.Background()
	if _, err := client.ReviewsByPlayer(ctx, "Spidey", 0, 10); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if _, err := client.ReviewsByPlayer(ctx, "Spidey", 0, 10); err != nil {
		t.Fatalf("cached fetch: %v", err)
	}
	if gets.Load() != 1 {
		t.Fatalf("expected cached second fetch, got %d GETs", gets.Load())
	}

	id, err := client.AddReview(ctx, review.AddReviewInput{
		PlayerID: 7,
		Grade:    4,
		Rank:     2,
		Comment:  "clutch healer",
	})
	if err != nil {
		t.Fatalf("add review: %v", err)
	}
	if id != 100 {
		t.Fatalf("expected created id 100, got %d", id)
	}

	if _, err := client.ReviewsByPlayer(ctx, "Spidey", 0, 10); err != nil {
		t.Fatalf("post-write fetch: %v", err)
	}
	if gets.Load() != 2 {
		t.Fatalf("expected cache invalidation after write, got %d GETs", gets.Load())
	}
}

func TestAddReview_RequiresSession(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected without session")
	}), ClientConfig{})

	_, err := client.AddReview(context.Background(), review.AddReviewInput{
		PlayerID: 1, Grade: 3, Comment: "x",
	})
	if !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestAddReview_ValidatesBeforeSending(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("invalid input must not reach the backend")
	}), ClientConfig{})
	client.SetSession(Session{TelegramID: 5})

	cases := []review.AddReviewInput{
		{PlayerID: 0, Grade: 3, Comment: "x"},  // missing player
		{PlayerID: 1, Grade: 0, Comment: "x"},  // grade below range
		{PlayerID: 1, Grade: 6, Comment: "x"},  // grade above range
		{PlayerID: 1, Grade: 3},                // missing comment
		{PlayerID: 1, Grade: 3, Comment: "x", Rank: 9}, // rank above range
	}
	for i, input := range cases {
		if _, err := client.AddReview(context.Background(), input); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestReviewsByUser_RequiresSession(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected without session")
	}), ClientConfig{})

	if _, err := client.ReviewsByUser(context.Background(), 0, 10); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestCooldownDate(t *testing.T) {
	t.Parallel()

	isoErr := &APIError{StatusCode: http.StatusForbidden, Message: "next review allowed after 2026-09-15"}
	date, ok := CooldownDate(isoErr)
	if !ok {
		t.Fatalf("expected cooldown date in %q", isoErr.Message)
	}
	if date != time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("unexpected date %s", date)
	}

	euErr := &APIError{StatusCode: http.StatusConflict, Message: "повторный отзыв доступен с 15.09.2026"}
	date, ok = CooldownDate(euErr)
	if !ok || date.Day() != 15 || date.Month() != time.September {
		t.Fatalf("expected dotted date parsed, got %s ok=%v", date, ok)
	}

	if _, ok := CooldownDate(&APIError{StatusCode: http.StatusForbidden, Message: "admin only"}); ok {
		t.Fatalf("expected no date in plain forbidden error")
	}
	if _, ok := CooldownDate(&APIError{StatusCode: http.StatusInternalServerError, Message: "crash at 2026-09-15"}); ok {
		t.Fatalf("expected non-403/409 to be ignored")
	}
	if _, ok := CooldownDate(errors.New("plain error")); ok {
		t.Fatalf("expected non-APIError to be ignored")
	}
}
