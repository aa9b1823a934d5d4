package review

// Review is the UI-facing shape of a posted review. CreatedAt is carried
// verbatim as the backend-provided timestamp string.
type Review struct {
	ID            int64
	PlayerNick    string
	Rank          int
	Grade         int
	Comment       string
	ScreenshotURL string
	CreatedAt     string
	Author        string
}

// AddReviewInput is the payload for posting a review against a player.
// Grade is a 1-5 star rating, Rank an index into the 8-level ladder.
type AddReviewInput struct {
	PlayerID      int64  `json:"playerId" validate:"required,gt=0"`
	Rank          int    `json:"rank" validate:"gte=0,lte=7"`
	Grade         int    `json:"grade" validate:"required,gte=1,lte=5"`
	Comment       string `json:"review" validate:"required,max=2000"`
	ScreenshotURL string `json:"image,omitempty" validate:"omitempty,url"`
}
