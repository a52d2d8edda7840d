// Package analysis turns a business record into measurable recommendations
// using a language model, and sanitizes whatever the model returns.
package analysis

import (
	"time"

	"github.com/JakeFAU/business-discovery/internal/business"
)

// Priority ranks a task.
type Priority string

// Supported priorities.
const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Category groups tasks by the area of the business they touch.
type Category string

// Supported categories.
const (
	CategoryReviews            Category = "reviews"
	CategoryOperations         Category = "operations"
	CategoryMarketing          Category = "marketing"
	CategoryCompetitive        Category = "competitive"
	CategoryCustomerExperience Category = "customer_experience"
)

// Status tracks a recommendation through its lifecycle.
type Status string

// Supported statuses. Everything generated starts pending.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusDismissed  Status = "dismissed"
)

// HarnessVariant selects which eval-harness type vocabulary the model is
// asked for and which default replaces invalid values.
type HarnessVariant string

// Supported harness variants.
const (
	VariantMetric HarnessVariant = "metric"
	VariantJudge  HarnessVariant = "judge"
)

// EvalHarness is one measurable check attached to a task.
type EvalHarness struct {
	Metric      string   `json:"metric"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	Target      *float64 `json:"target,omitempty"`
	Current     *float64 `json:"current,omitempty"`
	// Expected holds the keyword or exact answer for judge-style checks.
	Expected string `json:"expected,omitempty"`
}

// Edit is one free-text correction a user attached to a recommendation.
type Edit struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Feedback aggregates user judgments on a recommendation.
type Feedback struct {
	ThumbsUp   int    `json:"thumbs_up"`
	ThumbsDown int    `json:"thumbs_down"`
	Edits      []Edit `json:"edits"`
}

// Task is a prioritized, measurable improvement recommendation.
type Task struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	Priority        Priority      `json:"priority"`
	Category        Category      `json:"category"`
	Reasoning       string        `json:"reasoning"`
	Evidence        []string      `json:"evidence"`
	Actions         []string      `json:"actions"`
	EvalHarness     []EvalHarness `json:"eval_harness"`
	EstimatedImpact string        `json:"estimated_impact"`
	Status          Status        `json:"status"`
	Feedback        Feedback      `json:"feedback"`
	UpdatedAt       *time.Time    `json:"updated_at,omitempty"`
}

// Profile is the task analysis of one business. It owns its task list.
type Profile struct {
	Business         business.Record `json:"business"`
	Tasks            []Task          `json:"tasks"`
	Summary          string          `json:"summary"`
	TopIssue         string          `json:"top_issue"`
	SentimentScore   int             `json:"sentiment_score"`
	AnalyzedAt       time.Time       `json:"analyzed_at"`
	RemoteSessionID  string          `json:"remote_session_id,omitempty"`
	RemoteSessionURL string          `json:"remote_session_url,omitempty"`
	// MockAnalysis is set when canned content replaced a failed model call.
	MockAnalysis bool `json:"mock_analysis"`
}

// EvalMetric is a measurable outcome attached to a workflow.
type EvalMetric struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	Target      *float64 `json:"target,omitempty"`
}

// Workflow is an automation that addresses a pain point.
type Workflow struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Trigger     string       `json:"trigger"`
	ToolsUsed   []string     `json:"tools_used"`
	UserFacing  bool         `json:"user_facing"`
	Actions     []string     `json:"actions"`
	EvalMetrics []EvalMetric `json:"eval_metrics"`
	PainPointID string       `json:"pain_point_id"`
	Confidence  float64      `json:"confidence"`
	Status      Status       `json:"status"`
	Feedback    Feedback     `json:"feedback"`
	UpdatedAt   *time.Time   `json:"updated_at,omitempty"`
}

// PainPoint is a recurring complaint found in reviews.
type PainPoint struct {
	Issue         string   `json:"issue"`
	Label         string   `json:"label"`
	Frequency     int      `json:"frequency"`
	Severity      string   `json:"severity"`
	ExampleQuotes []string `json:"example_quotes"`
}

// Strength is something customers praise.
type Strength struct {
	Label    string `json:"label"`
	Mentions int    `json:"mentions"`
}

// WorkflowAnalysis is the workflow-oriented analysis of one business.
type WorkflowAnalysis struct {
	BusinessID          string      `json:"business_id"`
	BusinessType        string      `json:"business_type"`
	PainPoints          []PainPoint `json:"pain_points"`
	Strengths           []Strength  `json:"strengths"`
	UnansweredQuestions []string    `json:"unanswered_questions"`
	Workflows           []Workflow  `json:"suggested_workflows"`
	AnalyzedAt          time.Time   `json:"analyzed_at"`
	MockAnalysis        bool        `json:"mock_analysis"`
}
