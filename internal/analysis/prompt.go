package analysis

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/business-discovery/internal/business"
)

const taskPromptHead = `You are a business improvement agent. You analyze real map-listing reviews to identify specific, actionable tasks that will improve this business.

For each task you generate, you MUST include an evaluation harness: specific checks that can be measured to determine if the task was successful. Every recommendation must be measurable.

Given the business info and reviews, generate 4-6 prioritized tasks.

Each task must have:
- id: unique short id (e.g., "task-review-response")
- title: clear action title (e.g., "Respond to 8 unanswered negative reviews")
- description: 2-3 sentences explaining what to do and why
- priority: "critical" | "high" | "medium" | "low"
- category: "reviews" | "operations" | "marketing" | "competitive" | "customer_experience"
- reasoning: why this matters, backed by data from reviews
- evidence: 2-4 direct quotes from reviews that support this task
- actions: 3-5 specific steps to complete this task
`

const metricHarnessPrompt = `- eval_harness: array of measurable metrics, each with:
  - metric: short name (e.g., "response_rate")
  - description: what it measures
  - type: "boolean" | "number" | "percentage"
  - target: numeric target (e.g., 90 for 90%)
`

const judgeHarnessPrompt = `- eval_harness: array of automated checks, each with:
  - metric: short name (e.g., "greets_by_name")
  - description: what it checks
  - type: "exact_match" | "contains_keyword" | "sentiment_positive" | "response_under_seconds" | "llm_judge"
  - expected: the exact answer or keyword, for exact_match and contains_keyword
  - target: numeric threshold, for response_under_seconds
`

const taskPromptTail = `- estimated_impact: one sentence on expected outcome

Also provide:
- summary: 2-3 sentence overview of the business's current state
- top_issue: the single biggest issue (one sentence)
- sentiment_score: 0-100 overall sentiment from reviews

Be specific. Reference actual reviews. Every task should be something the owner can act on today.

Return ONLY valid JSON.`

const workflowPrompt = `You are a business operations analyst specializing in automated workflows for small and medium businesses.

Given a business's map-listing reviews, analyze them and return a structured JSON response with:

1. pain_points: recurring issues from negative or neutral reviews. Each has:
   - issue: short snake_case identifier (e.g. "long_wait_times")
   - label: human-readable label
   - frequency: how many reviews mention this (integer)
   - severity: "low" | "medium" | "high" | "critical"
   - example_quotes: 2-3 direct quotes from reviews

2. strengths: what the business does well. Each has:
   - label: strength name
   - mentions: how many reviews mention this (integer)

3. unanswered_questions: questions customers have that are not answered. Array of strings.

4. suggested_workflows: 4-6 automated workflows that address the pain points. Each has:
   - id: unique id (e.g. "wf-review-responder")
   - name: workflow name
   - description: 1-2 sentence explanation
   - trigger: when it runs (e.g. "Every 4 hours", "Inbound phone call")
   - tools_used: array from ["browser", "voice", "tts", "image_model", "video", "sms", "email", "calendar", "llm", "camera"]
   - user_facing: boolean
   - actions: array of 3-5 step descriptions
   - eval_metrics: array of measurable outcomes with name, description, type ("boolean" | "number" | "percentage") and optional numeric target
   - pain_point_id: the issue this addresses
   - confidence: 0-1

Return ONLY valid JSON matching this schema. No markdown, no explanation.`

const noReviewsInstruction = "No individual reviews are available. Based on the business category, rating, and industry norms, infer the typical pain points for this kind of business."

// systemPrompt returns the task prompt for variant.
func systemPrompt(variant HarnessVariant) string {
	harness := metricHarnessPrompt
	if variant == VariantJudge {
		harness = judgeHarnessPrompt
	}
	return taskPromptHead + harness + taskPromptTail
}

// userPrompt renders the business scalars and review sample.
func userPrompt(rec business.Record, closing string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Business: %s\n", rec.Name)
	fmt.Fprintf(&b, "Type: %s\n", rec.Category)
	fmt.Fprintf(&b, "Rating: %.1f/5 (%d total reviews)\n", rec.Rating, rec.ReviewCount)
	fmt.Fprintf(&b, "Address: %s\n", rec.Address)
	optional := []struct{ label, value string }{
		{"Phone", rec.Phone},
		{"Website", rec.Website},
		{"Price", rec.PriceLevel},
		{"Hours", rec.Hours},
	}
	for _, f := range optional {
		if f.value != "" {
			fmt.Fprintf(&b, "%s: %s\n", f.label, f.value)
		}
	}
	b.WriteString("\n")

	if len(rec.Reviews) == 0 {
		b.WriteString(noReviewsInstruction)
		b.WriteString("\n")
	} else {
		positive, negative := rec.CountSentiment()
		fmt.Fprintf(&b, "Reviews scraped: %d (%d positive, %d negative)\n\n", len(rec.Reviews), positive, negative)
		for _, r := range rec.Reviews {
			b.WriteString(formatReview(r))
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(closing)
	return b.String()
}

func formatReview(r business.Review) string {
	return fmt.Sprintf("[%d★ %s, %s]: %q", r.Rating, r.Author, r.Date, r.Text)
}
