package validation

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-reviews/internal/models"
)

func validSubmission() models.ReviewSubmission {
	scorecard := make([]models.ScorecardEntry, models.ScorecardLength)
	for i := range scorecard {
		scorecard[i] = models.ScorecardEntry{Metric: fmt.Sprintf("metric-%d", i), Score: 7}
	}
	return models.ReviewSubmission{
		ReviewerTitle: "Strong debut",
		Summary:       strings.Repeat("s", 120),
		Tags:          []string{"indie"},
		Scorecard:     scorecard,
		OverallRating: 4,
	}
}

func problems(t *testing.T, err error) []string {
	t.Helper()
	var ve *models.ValidationError
	require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
	return ve.Problems
}

func TestReviewCheck_Valid(t *testing.T) {
	v := New()
	err := Check(v, ReviewCheck{Submission: validSubmission(), Required: []models.ReviewType{models.ReviewTypeScorecard}})
	assert.NoError(t, err)
}

func TestReviewCheck_BlankStrings(t *testing.T) {
	v := New()
	s := validSubmission()
	s.ReviewerTitle = "   "
	s.Tags = []string{"indie", " "}
	s.Scorecard[0].Metric = "\t"

	p := problems(t, Check(v, ReviewCheck{Submission: s}))
	assert.Contains(t, p, "reviewer_title is required")
	assert.Contains(t, p, "tags[1] is required")
	assert.Contains(t, p, "scorecard[0].metric is required")
}

func TestReviewCheck_ScorecardMustHaveSixteen(t *testing.T) {
	v := New()
	s := validSubmission()
	s.Scorecard = s.Scorecard[:15]

	p := problems(t, Check(v, ReviewCheck{Submission: s}))
	assert.Contains(t, p, "scorecard must contain exactly 16 entries")
}

func TestReviewCheck_CollectsAllProblems(t *testing.T) {
	v := New()
	s := validSubmission()
	s.ReviewerTitle = "  "
	s.Summary = "too short"
	s.Tags = nil
	s.OverallRating = 6
	s.Scorecard[3].Metric = ""
	s.Scorecard[4].Score = -1

	p := problems(t, Check(v, ReviewCheck{Submission: s}))
	assert.Contains(t, p, "reviewer_title is required")
	assert.Contains(t, p, "summary must be at least 100 characters")
	assert.Contains(t, p, "tags must contain at least 1 entries")
	assert.Contains(t, p, "overall_rating must be at most 5")
	assert.Contains(t, p, "scorecard[3].metric is required")
	assert.Contains(t, p, "scorecard[4].score must be greater than or equal to 0")
}

func TestReviewCheck_WrittenFeedbackShortfall(t *testing.T) {
	v := New()
	s := validSubmission()
	s.WrittenFeedback = strings.Repeat("w", 900)

	p := problems(t, Check(v, ReviewCheck{Submission: s, Required: []models.ReviewType{models.ReviewTypeWritten}}))
	require.Len(t, p, 1)
	assert.Contains(t, p[0], "100 more characters")

	s.WrittenFeedback = strings.Repeat("w", 1000)
	assert.NoError(t, Check(v, ReviewCheck{Submission: s, Required: []models.ReviewType{models.ReviewTypeWritten}}))
}

func TestReviewCheck_WrittenCountsRunes(t *testing.T) {
	v := New()
	s := validSubmission()
	s.WrittenFeedback = strings.Repeat("é", 1000)
	assert.NoError(t, Check(v, ReviewCheck{Submission: s, Required: []models.ReviewType{models.ReviewTypeWritten}}))
}

func TestReviewCheck_Video(t *testing.T) {
	v := New()
	required := []models.ReviewType{models.ReviewTypeVideo}

	s := validSubmission()
	p := problems(t, Check(v, ReviewCheck{Submission: s, Required: required}))
	assert.Contains(t, p, "a video review requires media_type video")

	s.MediaType = models.MediaTypeVideo
	s.MediaURL = "https://cdn.example.com/review.mov"
	s.MediaTitle = "Walkthrough"
	p = problems(t, Check(v, ReviewCheck{Submission: s, Required: required}))
	assert.Equal(t, []string{"media_url must be an MP4 video"}, p)

	for _, url := range []string{
		"https://cdn.example.com/review.MP4",
		"https://cdn.example.com/review.mp4?token=abc",
		"https://cdn.example.com/upload?content-type=video/mp4",
	} {
		s.MediaURL = url
		assert.NoError(t, Check(v, ReviewCheck{Submission: s, Required: required}), url)
	}
}

func TestReviewCheck_AudioRequiresTitle(t *testing.T) {
	v := New()
	s := validSubmission()
	s.MediaType = models.MediaTypeAudio
	s.MediaURL = "https://cdn.example.com/notes.mp3"

	p := problems(t, Check(v, ReviewCheck{Submission: s, Required: []models.ReviewType{models.ReviewTypeAudio}}))
	assert.Equal(t, []string{"media_title is required"}, p)
}

func TestCheckoutRequest(t *testing.T) {
	v := New()

	req := models.CheckoutRequest{ReviewerID: "r1", PackageID: "p1", TrackURL: "https://soundcloud.com/a/b", TrackTitle: "Song", ArtistID: "u1"}
	assert.NoError(t, Check(v, req))

	req.ArtistID = ""
	p := problems(t, Check(v, req))
	assert.Equal(t, []string{"guest_email is required for guest checkout"}, p)

	req.GuestEmail = "not-an-email"
	p = problems(t, Check(v, req))
	assert.Equal(t, []string{"guest_email must be a valid email address"}, p)

	req.GuestEmail = "fan@example.com"
	req.TrackURL = "not a url"
	p = problems(t, Check(v, req))
	assert.Equal(t, []string{"track_url must be a valid URL"}, p)
}
