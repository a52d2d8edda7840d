package business

// MockName is the name of the built-in fallback business.
const MockName = "Blue Bottle Corner Cafe"

// MockRecord returns the deterministic fallback business used when no scrape
// provider is configured or every provider failed. Callers assign the id,
// source URL, and scrape time.
func MockRecord() Record {
	return Record{
		Name:        MockName,
		Category:    "Coffee shop",
		Rating:      4.1,
		ReviewCount: 214,
		Address:     "482 Market Street, San Francisco, CA 94105",
		Phone:       "(415) 555-0142",
		Website:     "https://example.com/corner-cafe",
		Hours:       "Monday: 7 AM to 6 PM; Tuesday: 7 AM to 6 PM; Saturday: 8 AM to 4 PM",
		PriceLevel:  "$$",
		Reviews:     mockReviews(),
	}
}

// MockReviewCount is the number of reviews in the fallback fixture.
func MockReviewCount() int {
	return len(mockReviews())
}

func mockReviews() []Review {
	return []Review{
		NewReview("Maya R.", 5, "2 weeks ago",
			"Best cortado in the neighborhood and the baristas remember my order. Pastries sell out early though."),
		NewReview("Derek L.", 2, "a month ago",
			"Waited almost 20 minutes for a latte on a weekday morning. Only one register open and no mobile ordering."),
		NewReview("Priya S.", 4, "3 weeks ago",
			"Lovely space to work from, good wifi. Outlets are scarce so come early."),
		NewReview("Tom H.", 1, "2 months ago",
			"Asked twice about oat milk pricing and got different answers. Receipt showed a charge I never agreed to."),
		NewReview("Jules K.", 3, "a week ago",
			"Coffee is solid but the line management is chaotic at lunch. Website hours were wrong on Sunday."),
		NewReview("Ana P.", 5, "4 days ago",
			"Friendly staff and the seasonal menu is always creative. Would love online pre-ordering."),
	}
}

// SupplementalReviews returns a small canned sample substituted when a
// listing reports reviews but none could be scraped. Records that receive it
// must be flagged with ReviewsAreSynthetic.
func SupplementalReviews() []Review {
	return []Review{
		NewReview(DefaultAuthor, 5, "recently",
			"Great experience overall, friendly staff and quick service."),
		NewReview(DefaultAuthor, 2, "recently",
			"Had to wait a long time and nobody answered the phone when I called ahead."),
		NewReview(DefaultAuthor, 3, "recently",
			"Decent, but the online information about hours and prices was out of date."),
		NewReview(DefaultAuthor, 4, "recently",
			"Good value, would come back. Parking was hard to find."),
	}
}
