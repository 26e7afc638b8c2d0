// Package feedback holds the attendee feedback model and its aggregation.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Rating bounds.
const (
	MinRating = 1
	MaxRating = 5
)

// ErrInvalidSubmission is returned when a submission fails validation.
var ErrInvalidSubmission = errors.New("invalid feedback submission")

// Submission is the body of a feedback request. The five answers arrive
// as q1..q5 and are stored under descriptive column names.
type Submission struct {
	Email        string `json:"email" validate:"required"`
	Rating       int    `json:"rating" validate:"min=1,max=5"`
	Relevance    string `json:"q1"`
	Confidence   string `json:"q2"`
	Instructor   string `json:"q3"`
	Duration     string `json:"q4"`
	Satisfaction string `json:"q5"`
}

// Record is a stored feedback row. ID and CreatedAt are assigned by the store.
type Record struct {
	ID           any    `json:"id,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
	Email        string `json:"email"`
	Rating       int    `json:"rating"`
	Relevance    string `json:"q1_relevance"`
	Confidence   string `json:"q2_confidence"`
	Instructor   string `json:"q3_instructor"`
	Duration     string `json:"q4_duration"`
	Satisfaction string `json:"q5_satisfaction"`
}

// Entry is a record as shown to administrators, with the attendee's
// display name resolved from the roster.
type Entry struct {
	Record
	Name string `json:"name"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func v() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the submission. Email is trimmed first.
func (s *Submission) Validate(ctx context.Context) error {
	s.Email = strings.TrimSpace(s.Email)
	if err := v().StructCtx(ctx, s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed on %s", ErrInvalidSubmission, strings.ToLower(fe.Field()), fe.Tag())
		}
		return fmt.Errorf("%w: %w", ErrInvalidSubmission, err)
	}
	return nil
}

// Record shapes the submission as a store row.
func (s Submission) Record() Record {
	return Record{
		Email:        s.Email,
		Rating:       s.Rating,
		Relevance:    s.Relevance,
		Confidence:   s.Confidence,
		Instructor:   s.Instructor,
		Duration:     s.Duration,
		Satisfaction: s.Satisfaction,
	}
}

// Stats summarizes stored feedback.
type Stats struct {
	TotalFeedback int         `json:"total_feedback"`
	AverageRating float64     `json:"average_rating"`
	RatingCounts  map[int]int `json:"rating_counts"`
}

// Aggregate computes Stats. Ratings outside 1..5 count towards the total
// and the average but not towards RatingCounts.
func Aggregate(records []Record) Stats {
	st := Stats{
		TotalFeedback: len(records),
		RatingCounts:  make(map[int]int, MaxRating),
	}
	for r := MinRating; r <= MaxRating; r++ {
		st.RatingCounts[r] = 0
	}
	if len(records) == 0 {
		return st
	}

	sum := 0
	for _, rec := range records {
		sum += rec.Rating
		if rec.Rating >= MinRating && rec.Rating <= MaxRating {
			st.RatingCounts[rec.Rating]++
		}
	}
	st.AverageRating = math.Round(float64(sum)/float64(len(records))*100) / 100
	return st
}
