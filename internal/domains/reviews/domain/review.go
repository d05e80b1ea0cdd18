package domain

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Apurer/commerce-engine/internal/shared/errkind"
)

// Status is the moderation state of a review.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

const (
	MinRating         = 1
	MaxRating         = 5
	maxTitleLength    = 100
	maxCommentLength  = 1000
	maxResponseLength = 500
)

var (
	ErrInvalidRating    = errkind.New(errkind.InvalidInput, "rating must be between 1 and 5")
	ErrInvalidProduct   = errkind.New(errkind.InvalidInput, "product id is required")
	ErrInvalidUser      = errkind.New(errkind.InvalidInput, "user id is required")
	ErrTitleTooLong     = errkind.New(errkind.InvalidInput, "title must be at most 100 characters")
	ErrCommentTooLong   = errkind.New(errkind.InvalidInput, "comment must be at most 1000 characters")
	ErrResponseTooLong  = errkind.New(errkind.InvalidInput, "response must be at most 500 characters")
	ErrEmptyResponse    = errkind.New(errkind.InvalidInput, "response comment is required")
	ErrInvalidImageURL  = errkind.New(errkind.InvalidInput, "image must be an http(s) URL to a jpg, jpeg, png, gif or webp file")
	ErrInvalidStatus    = errkind.New(errkind.InvalidInput, "review status is invalid")
	ErrInvalidResponder = errkind.New(errkind.InvalidInput, "responder id is required")
)

var imageURL = regexp.MustCompile(`(?i)^https?://.+\.(jpg|jpeg|png|gif|webp)$`)

// Response is the merchant's public reply to a review.
type Response struct {
	Comment     string
	RespondedBy string
	RespondedAt time.Time
}

// Review is a user's rating of a product. Only approved reviews count toward
// the product rating.
type Review struct {
	ID           string
	ProductID    string
	UserID       string
	OrderID      string
	Rating       int
	Title        string
	Comment      string
	Images       []string
	Verified     bool
	Helpful      int64
	HelpfulUsers []string
	Status       Status
	Response     *Response
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Valid reports whether s is a known moderation state.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// Normalize trims user supplied text.
func (r *Review) Normalize() {
	r.ProductID = strings.TrimSpace(r.ProductID)
	r.UserID = strings.TrimSpace(r.UserID)
	r.Title = strings.TrimSpace(r.Title)
	r.Comment = strings.TrimSpace(r.Comment)
}

// Validate enforces field constraints.
func (r *Review) Validate() error {
	if r.ProductID == "" {
		return ErrInvalidProduct
	}
	if r.UserID == "" {
		return ErrInvalidUser
	}
	if r.Rating < MinRating || r.Rating > MaxRating {
		return ErrInvalidRating
	}
	if utf8.RuneCountInString(r.Title) > maxTitleLength {
		return ErrTitleTooLong
	}
	if utf8.RuneCountInString(r.Comment) > maxCommentLength {
		return ErrCommentTooLong
	}
	for _, img := range r.Images {
		if !imageURL.MatchString(img) {
			return ErrInvalidImageURL
		}
	}
	if !r.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// IsHelpfulTo reports whether userID already marked the review helpful.
func (r *Review) IsHelpfulTo(userID string) bool {
	for _, id := range r.HelpfulUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// MarkHelpful records userID's vote once. It reports whether the vote was new.
func (r *Review) MarkHelpful(userID string) bool {
	if r.IsHelpfulTo(userID) {
		return false
	}
	r.HelpfulUsers = append(r.HelpfulUsers, userID)
	r.Helpful++
	return true
}

// UnmarkHelpful withdraws userID's vote. The count never drops below zero.
func (r *Review) UnmarkHelpful(userID string) bool {
	for i, id := range r.HelpfulUsers {
		if id != userID {
			continue
		}
		r.HelpfulUsers = append(r.HelpfulUsers[:i:i], r.HelpfulUsers[i+1:]...)
		if r.Helpful > 0 {
			r.Helpful--
		}
		return true
	}
	return false
}

// Respond attaches or replaces the merchant response.
func (r *Review) Respond(responderID, comment string, now time.Time) error {
	responderID = strings.TrimSpace(responderID)
	comment = strings.TrimSpace(comment)
	if responderID == "" {
		return ErrInvalidResponder
	}
	if comment == "" {
		return ErrEmptyResponse
	}
	if utf8.RuneCountInString(comment) > maxResponseLength {
		return ErrResponseTooLong
	}
	r.Response = &Response{Comment: comment, RespondedBy: responderID, RespondedAt: now}
	return nil
}

// Clone returns a deep copy safe to hand to callers.
func (r *Review) Clone() *Review {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Images = append([]string(nil), r.Images...)
	clone.HelpfulUsers = append([]string(nil), r.HelpfulUsers...)
	if r.Response != nil {
		resp := *r.Response
		clone.Response = &resp
	}
	return &clone
}
