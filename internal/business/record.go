// Package business defines the canonical business record shared by every
// scrape provider, the analysis step, and the persistence layer.
package business

import (
	"strings"
	"time"
)

// Defaults applied when a provider could not extract a field.
const (
	DefaultName     = "Unknown Business"
	DefaultCategory = "Business"
	DefaultAuthor   = "Anonymous"

	// IDPrefix marks identifiers minted for discovered businesses.
	IDPrefix = "biz_"

	maxRating = 5.0
)

// Sentiment is the three-valued label derived from a review rating.
type Sentiment string

// Supported sentiment labels.
const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Review is a single scraped customer review. Build it with NewReview so the
// sentiment label is always derived from the rating.
type Review struct {
	Author    string    `json:"author"`
	Rating    int       `json:"rating"`
	Date      string    `json:"date"`
	Text      string    `json:"text"`
	Sentiment Sentiment `json:"sentiment"`
}

// Record is the provider-agnostic representation of a business listing.
type Record struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Rating      float64   `json:"rating"`
	ReviewCount int       `json:"review_count"`
	Address     string    `json:"address"`
	Phone       string    `json:"phone,omitempty"`
	Website     string    `json:"website,omitempty"`
	Hours       string    `json:"hours,omitempty"`
	PriceLevel  string    `json:"price_level,omitempty"`
	SourceURL   string    `json:"source_url"`
	ScrapedAt   time.Time `json:"scraped_at"`
	Reviews     []Review  `json:"reviews"`
	// ReviewsAreSynthetic is set when canned reviews replaced an empty sample.
	ReviewsAreSynthetic bool `json:"reviews_are_synthetic"`
}

// NewReview builds a Review, applying the author default and the classifier.
func NewReview(author string, rating int, date, text string) Review {
	author = strings.TrimSpace(author)
	if author == "" {
		author = DefaultAuthor
	}
	if rating < 0 || rating > int(maxRating) {
		rating = 0
	}
	return Review{
		Author:    author,
		Rating:    rating,
		Date:      strings.TrimSpace(date),
		Text:      strings.TrimSpace(text),
		Sentiment: Classify(rating),
	}
}

// Normalize fills defaults and clamps aggregate fields. It never touches the
// review sample beyond making sure the slice is non-nil.
func Normalize(rec Record) Record {
	rec.Name = strings.TrimSpace(rec.Name)
	if rec.Name == "" {
		rec.Name = DefaultName
	}
	rec.Category = strings.TrimSpace(rec.Category)
	if rec.Category == "" {
		rec.Category = DefaultCategory
	}
	switch {
	case rec.Rating < 0:
		rec.Rating = 0
	case rec.Rating > maxRating:
		rec.Rating = maxRating
	}
	if rec.ReviewCount < 0 {
		rec.ReviewCount = 0
	}
	if rec.ReviewCount == 0 {
		rec.ReviewCount = len(rec.Reviews)
	}
	if rec.Reviews == nil {
		rec.Reviews = []Review{}
	}
	return rec
}

// CountSentiment returns the number of positive and negative reviews.
func (r Record) CountSentiment() (positive, negative int) {
	for _, review := range r.Reviews {
		switch review.Sentiment {
		case SentimentPositive:
			positive++
		case SentimentNegative:
			negative++
		}
	}
	return positive, negative
}

// NeedsSupplement reports whether the aggregate listing claims reviews that
// the scraped sample does not contain.
func (r Record) NeedsSupplement() bool {
	return len(r.Reviews) == 0 && r.ReviewCount > 0
}
