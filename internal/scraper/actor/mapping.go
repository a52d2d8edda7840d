package actor

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/JakeFAU/business-discovery/internal/business"
)

// unknownReviewRating is used when a dataset review has no stars; it
// classifies as neutral.
const unknownReviewRating = 3

// mapPlace converts one dataset item into a record. The dataset schema has
// used several names for the same field, so every field reads the first
// non-empty candidate.
func mapPlace(place map[string]any) business.Record {
	rec := business.Record{
		Name:        firstString(place, "title", "name"),
		Category:    firstString(place, "categoryName", "category"),
		Rating:      firstFloat(place, "totalScore", "rating"),
		ReviewCount: int(firstFloat(place, "reviewsCount", "totalReviews")),
		Address:     firstString(place, "address", "street"),
		Phone:       firstString(place, "phone", "phoneUnformatted"),
		Website:     firstString(place, "website", "url"),
		Hours:       openingHours(place["openingHours"]),
		PriceLevel:  firstString(place, "price", "priceLevel"),
	}
	if rec.Name == "" {
		rec.Name = "Unknown"
	}
	raw, _ := place["reviews"].([]any)
	rec.Reviews = make([]business.Review, 0, len(raw))
	for _, item := range raw {
		r, ok := item.(map[string]any)
		if !ok {
			continue
		}
		rating := int(math.Round(firstFloat(r, "stars", "rating")))
		if rating == 0 {
			rating = unknownReviewRating
		}
		rec.Reviews = append(rec.Reviews, business.NewReview(
			firstString(r, "name", "reviewerName"),
			rating,
			firstString(r, "publishedAtDate", "date"),
			firstString(r, "text", "reviewText"),
		))
	}
	return rec
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			if v != 0 {
				return strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
	}
	return ""
}

func firstFloat(m map[string]any, keys ...string) float64 {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			if v != 0 {
				return v
			}
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f != 0 {
				return f
			}
		}
	}
	return 0
}

// openingHours renders either a list of strings or {day, hours} objects.
func openingHours(v any) string {
	switch hours := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(hours)
	case []any:
		parts := make([]string, 0, len(hours))
		for _, h := range hours {
			switch entry := h.(type) {
			case string:
				parts = append(parts, entry)
			case map[string]any:
				parts = append(parts, fmt.Sprintf("%v: %v", entry["day"], entry["hours"]))
			}
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(hours)
	}
}
