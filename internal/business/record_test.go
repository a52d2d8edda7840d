package business

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestClassifyRanges(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rating int
		want   Sentiment
	}{
		{rating: 0, want: SentimentNeutral},
		{rating: 1, want: SentimentNegative},
		{rating: 2, want: SentimentNegative},
		{rating: 3, want: SentimentNeutral},
		{rating: 4, want: SentimentPositive},
		{rating: 5, want: SentimentPositive},
		{rating: -1, want: SentimentNeutral},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.want), func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, Classify(tt.rating), "rating %d", tt.rating)
		})
	}
}

func TestClassifyAllMixedSample(t *testing.T) {
	t.Parallel()

	reviews := []Review{
		{Author: "a", Rating: 5, Text: "great"},
		{Author: "b", Rating: 1, Text: "awful"},
		{Author: "c", Rating: 3, Text: "fine"},
	}
	got := ClassifyAll(reviews)

	sentiments := []Sentiment{got[0].Sentiment, got[1].Sentiment, got[2].Sentiment}
	require.Equal(t, []Sentiment{SentimentPositive, SentimentNegative, SentimentNeutral}, sentiments)
	require.Empty(t, reviews[0].Sentiment, "input must not be mutated")
}

func TestClassifyAllIdempotent(t *testing.T) {
	t.Parallel()

	first := ClassifyAll(MockRecord().Reviews)
	second := ClassifyAll(first)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("classification not idempotent (-first +second):\n%s", diff)
	}
}

func TestNewReviewDefaults(t *testing.T) {
	t.Parallel()

	review := NewReview("  ", 9, " yesterday ", "  text  ")
	require.Equal(t, DefaultAuthor, review.Author)
	require.Equal(t, 0, review.Rating)
	require.Equal(t, "yesterday", review.Date)
	require.Equal(t, "text", review.Text)
	require.Equal(t, SentimentNeutral, review.Sentiment)
}

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	rec := Normalize(Record{
		Rating:  7.2,
		Reviews: []Review{NewReview("x", 4, "", "ok")},
	})
	require.Equal(t, DefaultName, rec.Name)
	require.Equal(t, DefaultCategory, rec.Category)
	require.InDelta(t, 5.0, rec.Rating, 0.0001)
	require.Equal(t, 1, rec.ReviewCount)

	empty := Normalize(Record{Name: "Shop", ReviewCount: 12})
	require.NotNil(t, empty.Reviews)
	require.Equal(t, 12, empty.ReviewCount)
	require.True(t, empty.NeedsSupplement())
}

func TestMockRecordIsDeterministic(t *testing.T) {
	t.Parallel()

	a, b := MockRecord(), MockRecord()
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("mock fixture differs between calls:\n%s", diff)
	}
	require.Equal(t, MockReviewCount(), len(a.Reviews))
	require.False(t, a.NeedsSupplement())

	pos, neg := a.CountSentiment()
	require.Positive(t, pos)
	require.Positive(t, neg)
}

func TestSupplementalReviewsClassified(t *testing.T) {
	t.Parallel()

	for _, review := range SupplementalReviews() {
		require.Equal(t, Classify(review.Rating), review.Sentiment)
		require.NotEmpty(t, review.Text)
	}
}
