package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"ms-reviews/internal/models"
)

// MinWrittenFeedback is the minimum length of written feedback, in characters.
const MinWrittenFeedback = 1000

var (
	videoURLPattern = regexp.MustCompile(`(?i)(\.mp4($|\?)|video/mp4)`)
	audioURLPattern = regexp.MustCompile(`(?i)(\.mp3($|\?)|audio/mpeg)`)
)

// ReviewCheck pairs a submission with the review types its order requires.
type ReviewCheck struct {
	Submission models.ReviewSubmission `json:"submission"`
	Required   []models.ReviewType     `json:"-"`
}

// New returns a configured validator with the struct-level rules registered.
func New() *validatorv10.Validate {
	v := validatorv10.New(validatorv10.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("notblank", validators.NotBlank)
	v.RegisterStructValidation(checkoutStructValidation, models.CheckoutRequest{})
	v.RegisterStructValidation(reviewStructValidation, ReviewCheck{})

	return v
}

// checkoutStructValidation requires a buyer: either an authenticated artist or a guest email.
func checkoutStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(models.CheckoutRequest)
	if req.ArtistID == "" && strings.TrimSpace(req.GuestEmail) == "" {
		sl.ReportError(req.GuestEmail, "guest_email", "GuestEmail", "artist_or_guest", "")
	}
}

// reviewStructValidation applies the rules that depend on the order's required review types.
func reviewStructValidation(sl validatorv10.StructLevel) {
	rc := sl.Current().Interface().(ReviewCheck)
	s := rc.Submission

	for _, t := range rc.Required {
		switch t {
		case models.ReviewTypeWritten:
			if n := utf8.RuneCountInString(s.WrittenFeedback); n < MinWrittenFeedback {
				sl.ReportError(s.WrittenFeedback, "written_feedback", "WrittenFeedback", "written_min", strconv.Itoa(MinWrittenFeedback-n))
			}
		case models.ReviewTypeVideo:
			checkMedia(sl, s, models.MediaTypeVideo, videoURLPattern)
		case models.ReviewTypeAudio:
			checkMedia(sl, s, models.MediaTypeAudio, audioURLPattern)
		}
	}
}

func checkMedia(sl validatorv10.StructLevel, s models.ReviewSubmission, want models.MediaType, pattern *regexp.Regexp) {
	if s.MediaType != want {
		sl.ReportError(s.MediaType, "media_type", "MediaType", "media_required", string(want))
		return
	}
	if !pattern.MatchString(s.MediaURL) {
		sl.ReportError(s.MediaURL, "media_url", "MediaURL", "media_format", string(want))
	}
	if strings.TrimSpace(s.MediaTitle) == "" {
		sl.ReportError(s.MediaTitle, "media_title", "MediaTitle", "notblank", "")
	}
}

// Check validates v and converts failures into a *models.ValidationError.
func Check(v *validatorv10.Validate, s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var ve validatorv10.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}

	problems := make([]string, 0, len(ve))
	for _, fe := range ve {
		problems = append(problems, message(fe))
	}
	return &models.ValidationError{Problems: problems}
}

func fieldPath(fe validatorv10.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.TrimPrefix(ns, "submission.")
}

func message(fe validatorv10.FieldError) string {
	field := fieldPath(fe)

	switch fe.Tag() {
	case "required", "notblank":
		return field + " is required"
	case "min":
		switch fe.Kind() {
		case reflect.String:
			return field + " must be at least " + fe.Param() + " characters"
		case reflect.Slice, reflect.Array:
			return field + " must contain at least " + fe.Param() + " entries"
		default:
			return field + " must be at least " + fe.Param()
		}
	case "max":
		switch fe.Kind() {
		case reflect.String:
			return field + " must be at most " + fe.Param() + " characters"
		default:
			return field + " must be at most " + fe.Param()
		}
	case "len":
		return field + " must contain exactly " + fe.Param() + " entries"
	case "gte":
		return field + " must be greater than or equal to " + fe.Param()
	case "url":
		return field + " must be a valid URL"
	case "email":
		return field + " must be a valid email address"
	case "oneof":
		return field + " must be one of: " + fe.Param()
	case "artist_or_guest":
		return "guest_email is required for guest checkout"
	case "written_min":
		return "written_feedback must be at least " + strconv.Itoa(MinWrittenFeedback) +
			" characters (" + fe.Param() + " more characters needed)"
	case "media_required":
		return "a " + fe.Param() + " review requires media_type " + fe.Param()
	case "media_format":
		if fe.Param() == string(models.MediaTypeVideo) {
			return "media_url must be an MP4 video"
		}
		return "media_url must be an MP3 audio file"
	default:
		return fe.Error()
	}
}
