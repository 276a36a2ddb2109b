package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ScorecardLength is the fixed number of metrics a scorecard carries.
const ScorecardLength = 16

type MediaType string

const (
	MediaTypeVideo MediaType = "video"
	MediaTypeAudio MediaType = "audio"
)

type ScorecardEntry struct {
	Metric string  `json:"metric" validate:"notblank"`
	Score  float64 `json:"score" validate:"gte=0"`
}

// ReviewSubmission is the payload a reviewer sends to complete an order.
type ReviewSubmission struct {
	ReviewerTitle   string           `json:"reviewer_title" validate:"notblank"`
	Summary         string           `json:"summary" validate:"min=100"`
	Tags            []string         `json:"tags" validate:"min=1,dive,notblank"`
	Scorecard       []ScorecardEntry `json:"scorecard" validate:"len=16,dive"`
	OverallRating   int              `json:"overall_rating" validate:"min=1,max=5"`
	WrittenFeedback string           `json:"written_feedback,omitempty"`
	MediaType       MediaType        `json:"media_type,omitempty" validate:"omitempty,oneof=video audio"`
	MediaURL        string           `json:"media_url,omitempty"`
	MediaTitle      string           `json:"media_title,omitempty"`
}

type Review struct {
	bun.BaseModel `bun:"table:reviews"`

	ID              string           `bun:"id,pk" json:"id"`
	OrderID         string           `bun:"order_id,unique,notnull" json:"order_id"`
	ReviewerID      string           `bun:"reviewer_id,notnull" json:"reviewer_id"`
	ArtistID        string           `bun:"artist_id,nullzero" json:"artist_id,omitempty"`
	ReviewerTitle   string           `bun:"reviewer_title,notnull" json:"reviewer_title"`
	Summary         string           `bun:"summary,notnull" json:"summary"`
	Tags            []string         `bun:"tags" json:"tags"`
	Scorecard       []ScorecardEntry `bun:"scorecard" json:"scorecard"`
	OverallRating   int              `bun:"overall_rating,notnull" json:"overall_rating"`
	WrittenFeedback string           `bun:"written_feedback,nullzero" json:"written_feedback,omitempty"`
	VideoURL        string           `bun:"video_url,nullzero" json:"video_url,omitempty"`
	VideoTitle      string           `bun:"video_title,nullzero" json:"video_title,omitempty"`
	AudioURL        string           `bun:"audio_url,nullzero" json:"audio_url,omitempty"`
	AudioTitle      string           `bun:"audio_title,nullzero" json:"audio_title,omitempty"`
	CreatedAt       time.Time        `bun:"created_at,notnull" json:"created_at"`
}

// NewReview builds the persisted review for an order from a validated submission.
func NewReview(id string, order *Order, s ReviewSubmission, now time.Time) *Review {
	r := &Review{
		ID:              id,
		OrderID:         order.ID,
		ReviewerID:      order.ReviewerID,
		ArtistID:        order.ArtistID,
		ReviewerTitle:   s.ReviewerTitle,
		Summary:         s.Summary,
		Tags:            s.Tags,
		Scorecard:       s.Scorecard,
		OverallRating:   s.OverallRating,
		WrittenFeedback: s.WrittenFeedback,
		CreatedAt:       now,
	}
	switch s.MediaType {
	case MediaTypeVideo:
		r.VideoURL, r.VideoTitle = s.MediaURL, s.MediaTitle
	case MediaTypeAudio:
		r.AudioURL, r.AudioTitle = s.MediaURL, s.MediaTitle
	}
	return r
}

type SubmitResult struct {
	OrderID          string      `json:"order_id"`
	Status           OrderStatus `json:"status"`
	ReviewID         string      `json:"review_id,omitempty"`
	AlreadyCompleted bool        `json:"already_completed"`
}
