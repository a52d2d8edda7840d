package browser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/JakeFAU/business-discovery/internal/business"
)

// Strategy kinds understood by the in-page extractor.
const (
	kindText  = "text"
	kindAttr  = "attr"
	kindMatch = "match"
)

// strategy is one way of reading a field. Match strategies scan every element
// matching Selector and return the first text that matches Pattern.
type strategy struct {
	Selector string `json:"selector"`
	Kind     string `json:"kind"`
	Attr     string `json:"attr,omitempty"`
	Pattern  string `json:"pattern,omitempty"`
}

// fieldCascade lists strategies in priority order; the first non-empty value
// wins.
type fieldCascade struct {
	Field      string     `json:"field"`
	Strategies []strategy `json:"strategies"`
}

const categoryPattern = `^(Coffee shop|Restaurant|Cafe|Bar|Bakery|Hotel|Store|Shop|Gym|Salon|Spa|Clinic|Dentist|Agency|Studio)`

var scalarCascades = []fieldCascade{
	{Field: "name", Strategies: []strategy{
		{Selector: "h1.DUwDvf", Kind: kindText},
		{Selector: "h1", Kind: kindText},
		{Selector: `meta[property="og:title"]`, Kind: kindAttr, Attr: "content"},
	}},
	{Field: "rating", Strategies: []strategy{
		{Selector: `[role="img"][aria-label*="star"]`, Kind: kindAttr, Attr: "aria-label"},
		{Selector: `div.F7nice span[aria-hidden="true"]`, Kind: kindText},
	}},
	{Field: "reviewCount", Strategies: []strategy{
		{Selector: `button[jsaction*="reviewChart"]`, Kind: kindText},
		{Selector: `div.F7nice span[aria-label*="review"]`, Kind: kindAttr, Attr: "aria-label"},
		{Selector: "button,span,a", Kind: kindMatch, Pattern: `[\d,]+\s*reviews?`},
	}},
	{Field: "category", Strategies: []strategy{
		{Selector: `button[jsaction*="category"]`, Kind: kindText},
		{Selector: "span,button", Kind: kindMatch, Pattern: categoryPattern},
	}},
	{Field: "address", Strategies: []strategy{
		{Selector: `[data-item-id="address"] .Io6YTe`, Kind: kindText},
		{Selector: `button[data-item-id="address"]`, Kind: kindAttr, Attr: "aria-label"},
		{Selector: `button[data-item-id="address"]`, Kind: kindText},
	}},
	{Field: "phone", Strategies: []strategy{
		{Selector: `[data-item-id*="phone"] .Io6YTe`, Kind: kindText},
		{Selector: `button[data-item-id*="phone"]`, Kind: kindAttr, Attr: "aria-label"},
		{Selector: `button[data-item-id*="phone"]`, Kind: kindText},
	}},
	{Field: "website", Strategies: []strategy{
		{Selector: `a[data-item-id="authority"]`, Kind: kindAttr, Attr: "href"},
		{Selector: `a[aria-label^="Website"]`, Kind: kindAttr, Attr: "href"},
	}},
	{Field: "hours", Strategies: []strategy{
		{Selector: `[aria-label*="Monday"]`, Kind: kindAttr, Attr: "aria-label"},
		{Selector: `.t39EBf`, Kind: kindAttr, Attr: "aria-label"},
	}},
	{Field: "priceLevel", Strategies: []strategy{
		{Selector: `[aria-label*="Price"]`, Kind: kindText},
		{Selector: "span.mgr77e", Kind: kindText},
	}},
}

const maxHoursLen = 200

var (
	decimalRe     = regexp.MustCompile(`(\d+(?:\.\d+)?)`)
	reviewCountRe = regexp.MustCompile(`(?i)([\d,]+)\s*reviews?`)
	digitRe       = regexp.MustCompile(`(\d)`)
	bareCountRe   = regexp.MustCompile(`^\(?([\d,]+)\)?$`)
)

// scalarsToRecord converts raw cascade output into record fields. Missing
// values stay empty; Normalize applies the defaults later.
func scalarsToRecord(raw map[string]string, sourceURL string) business.Record {
	return business.Record{
		Name:        strings.TrimSpace(raw["name"]),
		Category:    strings.TrimSpace(raw["category"]),
		Rating:      parseRating(raw["rating"]),
		ReviewCount: parseReviewCount(raw["reviewCount"]),
		Address:     stripPrefix(raw["address"], "Address:"),
		Phone:       stripPrefix(raw["phone"], "Phone:"),
		Website:     strings.TrimSpace(raw["website"]),
		Hours:       truncateHours(raw["hours"]),
		PriceLevel:  strings.TrimSpace(raw["priceLevel"]),
		SourceURL:   sourceURL,
	}
}

// parseRating reads the first decimal number in a label such as
// "4.6 stars".
func parseRating(label string) float64 {
	m := decimalRe.FindStringSubmatch(label)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return v
}

// parseReviewCount accepts "1,234 reviews" as well as a bare "(1,234)".
func parseReviewCount(text string) int {
	m := reviewCountRe.FindStringSubmatch(text)
	if m == nil {
		m = bareCountRe.FindStringSubmatch(strings.TrimSpace(text))
	}
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0
	}
	return n
}

// parseReviewRating reads the first digit of a per-review star label.
func parseReviewRating(label string) int {
	m := digitRe.FindStringSubmatch(label)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func truncateHours(hours string) string {
	hours = strings.TrimSpace(hours)
	if len(hours) <= maxHoursLen {
		return hours
	}
	return hours[:maxHoursLen] + "..."
}

func stripPrefix(value, prefix string) string {
	value = strings.TrimSpace(value)
	if len(value) >= len(prefix) && strings.EqualFold(value[:len(prefix)], prefix) {
		value = strings.TrimSpace(value[len(prefix):])
	}
	return value
}

// rawReview is one review as read from the DOM.
type rawReview struct {
	Author      string `json:"author"`
	RatingLabel string `json:"ratingLabel"`
	Date        string `json:"date"`
	Text        string `json:"text"`
}

// reviewKey identifies a review across extraction passes.
func reviewKey(author, text string) string {
	runes := []rune(text)
	if len(runes) > 50 {
		runes = runes[:50]
	}
	return author + "|" + string(runes)
}

// reviewSet accumulates reviews in first-seen order without duplicates.
type reviewSet struct {
	seen    map[string]struct{}
	reviews []business.Review
}

func newReviewSet() *reviewSet {
	return &reviewSet{seen: make(map[string]struct{})}
}

// add merges raw reviews and returns how many were new. Items without an
// author or text are skipped.
func (s *reviewSet) add(raw []rawReview) int {
	added := 0
	for _, r := range raw {
		author := strings.TrimSpace(r.Author)
		text := strings.TrimSpace(r.Text)
		if author == "" || text == "" {
			continue
		}
		key := reviewKey(author, text)
		if _, dup := s.seen[key]; dup {
			continue
		}
		s.seen[key] = struct{}{}
		s.reviews = append(s.reviews, business.NewReview(author, parseReviewRating(r.RatingLabel), r.Date, text))
		added++
	}
	return added
}

func (s *reviewSet) list() []business.Review {
	return append([]business.Review(nil), s.reviews...)
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("marshal cascade table: %v", err))
	}
	return string(b)
}
