package main

import (
	"fmt"
	"strings"

	"github.com/mrreviews/mrr/external/mrrapi"
	"github.com/mrreviews/mrr/internal/domain/player"
	"github.com/mrreviews/mrr/internal/domain/review"
)

func printPlayer(p player.Player) {
	fmt.Printf("%s (id %d)\n", p.NickName, p.ID)
	fmt.Printf("  grade %.2f over %d reviews, avg rank %s\n",
		p.AvgGrade, p.ReviewCount, rankLabel(p.AvgRank))
	if p.AvatarURL != "" {
		fmt.Printf("  avatar %s\n", p.AvatarURL)
	}
}

func printPlayerPage(page mrrapi.Page[player.Player]) {
	if len(page.Items) == 0 {
		fmt.Println("no players found")
		return
	}
	for _, p := range page.Items {
		fmt.Printf("%-24s grade %.2f  reviews %d\n", p.NickName, p.AvgGrade, p.ReviewCount)
	}
	fmt.Printf("page %d/%d (%d players total)\n",
		page.CurrentPage+1, page.TotalPages, page.TotalElements)
}

func printReviewPage(page mrrapi.Page[review.Review]) {
	if len(page.Items) == 0 {
		fmt.Println("no reviews found")
		return
	}
	for _, r := range page.Items {
		fmt.Printf("#%d %s on %s: grade %d, rank %s\n",
			r.ID, r.Author, r.PlayerNick, r.Grade, rankName(r.Rank))
		if r.CreatedAt != "" {
			fmt.Printf("   %s\n", r.CreatedAt)
		}
		for _, line := range strings.Split(strings.TrimSpace(r.Comment), "\n") {
			fmt.Printf("   %s\n", line)
		}
		if r.ScreenshotURL != "" {
			fmt.Printf("   screenshot: %s\n", r.ScreenshotURL)
		}
	}
	fmt.Printf("page %d/%d (%d reviews total)\n",
		page.CurrentPage+1, page.TotalPages, page.TotalElements)
}

func rankName(raw int) string {
	r := player.Rank(raw)
	if !r.Valid() {
		return fmt.Sprintf("rank(%d)", raw)
	}
	return r.String()
}

// rankLabel renders the fractional average rank as the nearest tier.
func rankLabel(avg float64) string {
	nearest := player.Rank(int(avg + 0.5))
	if !nearest.Valid() {
		return fmt.Sprintf("%.1f", avg)
	}
	return fmt.Sprintf("%s (%.1f)", nearest.String(), avg)
}
