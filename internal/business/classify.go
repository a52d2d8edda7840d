package business

// Classify maps a numeric rating to a sentiment label. A rating of 0 means
// the rating is unknown and is treated as neutral.
func Classify(rating int) Sentiment {
	switch {
	case rating >= 4:
		return SentimentPositive
	case rating >= 1 && rating <= 2:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// ClassifyAll returns a copy of reviews with every sentiment recomputed from
// the rating. The input slice is not modified.
func ClassifyAll(reviews []Review) []Review {
	out := make([]Review, len(reviews))
	for i, review := range reviews {
		review.Sentiment = Classify(review.Rating)
		out[i] = review
	}
	return out
}
