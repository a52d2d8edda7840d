package analysis

import (
	"time"

	"github.com/JakeFAU/business-discovery/internal/business"
)

func ptr(v float64) *float64 { return &v }

// judgeTypeFor maps the canned metric harness types onto the judge variant.
var judgeTypeFor = map[string]string{
	"boolean":    "exact_match",
	"number":     "llm_judge",
	"percentage": "llm_judge",
}

// MockProfile returns the canned task profile used when the model is
// unavailable. The business, including its id, is carried through. Harness
// types follow variant.
func MockProfile(rec business.Record, now time.Time, variant HarnessVariant) Profile {
	tasks := []Task{
		{
			ID:          "task-review-response",
			Title:       "Respond to every negative review from the last 30 days",
			Description: "Unanswered complaints stay at the top of the listing. A short, specific reply shows prospective customers the issue was heard.",
			Priority:    PriorityHigh,
			Category:    CategoryReviews,
			Reasoning:   "Negative reviews without an owner response weigh on the aggregate rating and on conversion.",
			Evidence:    quotes(rec, business.SentimentNegative, 2),
			Actions: []string{
				"List all 1 and 2 star reviews from the last month",
				"Draft a reply that names the specific problem",
				"Offer a direct contact for follow-up",
			},
			EvalHarness: []EvalHarness{
				{Metric: "response_rate", Description: "Share of negative reviews with an owner reply", Type: "percentage", Target: ptr(90)},
			},
			EstimatedImpact: "Visible responsiveness typically lifts conversion from listing views.",
		},
		{
			ID:          "task-wait-times",
			Title:       "Reduce peak-hour wait times",
			Description: "Several reviews mention long waits at busy times. Staffing the register at peak and adding pre-ordering shortens the line.",
			Priority:    PriorityMedium,
			Category:    CategoryOperations,
			Reasoning:   "Wait time complaints recur across reviews and are fixable with scheduling.",
			Evidence:    []string{},
			Actions: []string{
				"Measure average wait during the two busiest hours",
				"Add a second register or runner at peak",
				"Enable online pre-ordering",
			},
			EvalHarness: []EvalHarness{
				{Metric: "peak_wait_minutes", Description: "Average wait at peak", Type: "number", Target: ptr(8)},
			},
			EstimatedImpact: "Fewer wait-related complaints within a month.",
		},
		{
			ID:          "task-listing-accuracy",
			Title:       "Audit hours and prices on the listing and website",
			Description: "Customers report outdated hours and prices. Keeping the listing accurate avoids wasted trips and bad first impressions.",
			Priority:    PriorityLow,
			Category:    CategoryMarketing,
			Reasoning:   "Listing accuracy is cheap to fix and removes a recurring source of frustration.",
			Evidence:    []string{},
			Actions: []string{
				"Compare listed hours with the actual schedule",
				"Update the website menu and prices",
			},
			EvalHarness: []EvalHarness{
				{Metric: "listing_matches_schedule", Description: "Listed hours match posted hours", Type: "boolean"},
			},
			EstimatedImpact: "Removes complaints about wrong hours.",
		},
	}
	for i := range tasks {
		tasks[i].Status = StatusPending
		tasks[i].Feedback = Feedback{Edits: []Edit{}}
		if variant == VariantJudge {
			for j := range tasks[i].EvalHarness {
				h := &tasks[i].EvalHarness[j]
				h.Type = judgeTypeFor[h.Type]
				if h.Type == "exact_match" {
					h.Expected = "true"
				}
			}
		}
	}
	return Profile{
		Business:       rec,
		Tasks:          tasks,
		Summary:        "Customers like the core offering but report friction around waits and outdated listing information.",
		TopIssue:       "Long waits at peak hours.",
		SentimentScore: sentimentScore(rec),
		AnalyzedAt:     now.UTC(),
		MockAnalysis:   true,
	}
}

// MockWorkflowAnalysis returns the canned workflow analysis for rec.
func MockWorkflowAnalysis(rec business.Record, now time.Time) WorkflowAnalysis {
	workflows := []Workflow{
		{
			ID:          "wf-review-responder",
			Name:        "Review Responder",
			Description: "Watches the listing for new reviews and drafts a reply for the owner to approve.",
			Trigger:     "Every 4 hours",
			ToolsUsed:   []string{"browser", "llm", "email"},
			Actions:     []string{"Check the listing for new reviews", "Draft a reply", "Email the draft for approval"},
			EvalMetrics: []EvalMetric{{Name: "response_rate", Description: "Reviews answered within 48h", Type: "percentage", Target: ptr(90)}},
			PainPointID: "unanswered_reviews",
			Confidence:  0.9,
		},
		{
			ID:          "wf-phone-assistant",
			Name:        "Phone Assistant",
			Description: "Answers inbound calls about hours, prices and availability.",
			Trigger:     "Inbound phone call",
			ToolsUsed:   []string{"voice", "tts", "llm"},
			UserFacing:  true,
			Actions:     []string{"Answer the call", "Look up hours and menu", "Send a follow-up SMS if asked"},
			EvalMetrics: []EvalMetric{{Name: "missed_calls", Description: "Calls that went unanswered", Type: "number", Target: ptr(0)}},
			PainPointID: "unreachable_by_phone",
			Confidence:  0.8,
		},
	}
	for i := range workflows {
		workflows[i].Status = StatusPending
		workflows[i].Feedback = Feedback{Edits: []Edit{}}
	}
	return WorkflowAnalysis{
		BusinessID:   rec.ID,
		BusinessType: rec.Category,
		PainPoints: []PainPoint{
			{Issue: "unanswered_reviews", Label: "Unanswered Reviews", Frequency: 1, Severity: "medium", ExampleQuotes: quotes(rec, business.SentimentNegative, 2)},
			{Issue: "unreachable_by_phone", Label: "Hard To Reach By Phone", Frequency: 1, Severity: "low", ExampleQuotes: []string{}},
		},
		Strengths:           []Strength{{Label: "Friendly Staff", Mentions: 1}},
		UnansweredQuestions: []string{"Do you take online orders?"},
		Workflows:           workflows,
		AnalyzedAt:          now.UTC(),
		MockAnalysis:        true,
	}
}

// quotes returns up to n review texts with the given sentiment.
func quotes(rec business.Record, s business.Sentiment, n int) []string {
	out := []string{}
	for _, r := range rec.Reviews {
		if len(out) == n {
			break
		}
		if r.Sentiment == s && r.Text != "" {
			out = append(out, r.Text)
		}
	}
	return out
}

// sentimentScore maps the aggregate star rating onto 0-100.
func sentimentScore(rec business.Record) int {
	if rec.Rating <= 0 {
		return defaultSentimentScore
	}
	return int(rec.Rating / 5 * 100)
}
