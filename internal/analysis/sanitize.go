package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

// ErrMalformedResponse is returned when the model output is not a JSON object.
var ErrMalformedResponse = errors.New("model response is not a JSON object")

const (
	defaultSentimentScore = 50
	defaultConfidence     = 0.8
	defaultTitle          = "Untitled Task"
	defaultWorkflowName   = "Unnamed Workflow"
	defaultTrigger        = "Manual"
	maxExampleQuotes      = 3
)

var (
	priorities = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}
	categories = []Category{
		CategoryReviews, CategoryOperations, CategoryMarketing,
		CategoryCompetitive, CategoryCustomerExperience,
	}
	metricTypes = []string{"boolean", "number", "percentage"}
	judgeTypes  = []string{
		"exact_match", "contains_keyword", "sentiment_positive",
		"response_under_seconds", "llm_judge",
	}
	severities = []string{"low", "medium", "high", "critical"}
	tools      = []string{
		"browser", "voice", "tts", "image_model", "video",
		"sms", "email", "calendar", "llm", "camera",
	}
)

// harnessTypes returns the allowed eval-harness types and the replacement
// for anything else.
func harnessTypes(variant HarnessVariant) ([]string, string) {
	if variant == VariantJudge {
		return judgeTypes, "llm_judge"
	}
	return metricTypes, "boolean"
}

// decodeObject parses raw model output into a generic object. Markdown code
// fences are tolerated.
func decodeObject(raw string) (map[string]any, error) {
	body := strings.TrimSpace(raw)
	if strings.HasPrefix(body, "```") {
		body = strings.TrimPrefix(body, "```json")
		body = strings.TrimPrefix(body, "```")
		body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(body), &obj); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if obj == nil {
		return nil, ErrMalformedResponse
	}
	return obj, nil
}

// taskResult is the sanitized content of a task response.
type taskResult struct {
	Tasks          []Task
	Summary        string
	TopIssue       string
	SentimentScore int
}

func sanitizeTasks(obj map[string]any, variant HarnessVariant, newID func() string) taskResult {
	out := taskResult{
		Summary:        str(obj["summary"], ""),
		TopIssue:       str(obj["top_issue"], ""),
		SentimentScore: defaultSentimentScore,
	}
	if score, ok := number(obj["sentiment_score"]); ok {
		out.SentimentScore = int(math.Round(clamp(score, 0, 100)))
	}
	ids := newIDSet()
	for _, item := range objects(obj["tasks"]) {
		task := sanitizeTask(item, variant, newID)
		task.ID = ids.claim(task.ID, newID)
		out.Tasks = append(out.Tasks, task)
	}
	if out.Tasks == nil {
		out.Tasks = []Task{}
	}
	return out
}

func sanitizeTask(t map[string]any, variant HarnessVariant, newID func() string) Task {
	task := Task{
		ID:              str(t["id"], ""),
		Title:           str(t["title"], defaultTitle),
		Description:     str(t["description"], ""),
		Priority:        oneOf(t["priority"], priorities, PriorityMedium),
		Category:        oneOf(t["category"], categories, CategoryOperations),
		Reasoning:       str(t["reasoning"], ""),
		Evidence:        stringList(t["evidence"]),
		Actions:         stringList(t["actions"]),
		EvalHarness:     []EvalHarness{},
		EstimatedImpact: str(t["estimated_impact"], ""),
		Status:          StatusPending,
		Feedback:        Feedback{Edits: []Edit{}},
	}
	if task.ID == "" {
		task.ID = newID()
	}
	allowed, fallback := harnessTypes(variant)
	for _, e := range objects(t["eval_harness"]) {
		h := EvalHarness{
			Metric:      str(e["metric"], "metric"),
			Description: str(e["description"], ""),
			Type:        oneOf(e["type"], allowed, fallback),
			Expected:    str(e["expected"], ""),
		}
		if v, ok := number(e["target"]); ok {
			h.Target = &v
		}
		if v, ok := number(e["current"]); ok {
			h.Current = &v
		}
		task.EvalHarness = append(task.EvalHarness, h)
	}
	return task
}

func sanitizeWorkflowAnalysis(obj map[string]any) WorkflowAnalysis {
	out := WorkflowAnalysis{
		BusinessType:        str(obj["business_type"], ""),
		PainPoints:          []PainPoint{},
		Strengths:           []Strength{},
		UnansweredQuestions: stringList(obj["unanswered_questions"]),
		Workflows:           []Workflow{},
	}
	for _, p := range objects(obj["pain_points"]) {
		issue := str(p["issue"], "unknown")
		quotes := stringList(p["example_quotes"])
		if len(quotes) > maxExampleQuotes {
			quotes = quotes[:maxExampleQuotes]
		}
		out.PainPoints = append(out.PainPoints, PainPoint{
			Issue:         issue,
			Label:         str(p["label"], issue),
			Frequency:     atLeastOne(p["frequency"]),
			Severity:      oneOf(p["severity"], severities, "medium"),
			ExampleQuotes: quotes,
		})
	}
	for _, s := range objects(obj["strengths"]) {
		out.Strengths = append(out.Strengths, Strength{
			Label:    str(s["label"], "Unknown"),
			Mentions: atLeastOne(s["mentions"]),
		})
	}
	ids := newIDSet()
	next := 0
	mint := func() string {
		next++
		return fmt.Sprintf("wf-%d", next)
	}
	for _, w := range objects(obj["suggested_workflows"]) {
		wf := sanitizeWorkflow(w)
		wf.ID = ids.claim(wf.ID, mint)
		out.Workflows = append(out.Workflows, wf)
	}
	return out
}

func sanitizeWorkflow(w map[string]any) Workflow {
	wf := Workflow{
		ID:          str(w["id"], ""),
		Name:        str(w["name"], defaultWorkflowName),
		Description: str(w["description"], ""),
		Trigger:     str(w["trigger"], defaultTrigger),
		UserFacing:  truthy(w["user_facing"]),
		Actions:     stringList(w["actions"]),
		EvalMetrics: []EvalMetric{},
		PainPointID: str(w["pain_point_id"], ""),
		Confidence:  defaultConfidence,
		Status:      StatusPending,
		Feedback:    Feedback{Edits: []Edit{}},
	}
	if raw, ok := w["tools_used"].([]any); ok {
		wf.ToolsUsed = []string{}
		for _, v := range raw {
			if s, ok := v.(string); ok && slices.Contains(tools, s) {
				wf.ToolsUsed = append(wf.ToolsUsed, s)
			}
		}
	} else {
		wf.ToolsUsed = []string{"llm"}
	}
	if c, ok := number(w["confidence"]); ok {
		wf.Confidence = clamp(c, 0, 1)
	}
	for _, m := range objects(w["eval_metrics"]) {
		metric := EvalMetric{
			Name:        str(m["name"], "metric"),
			Description: str(m["description"], ""),
			Type:        oneOf(m["type"], metricTypes, "boolean"),
		}
		if v, ok := number(m["target"]); ok {
			metric.Target = &v
		}
		wf.EvalMetrics = append(wf.EvalMetrics, metric)
	}
	return wf
}

// idSet hands out ids that are unique within one response. Feedback finds
// items by id, so a repeated id would make the later item unreachable.
type idSet map[string]struct{}

func newIDSet() idSet { return idSet{} }

// claim returns id when it is non-empty and unused, otherwise a fresh value
// from mint. A numeric suffix settles collisions mint cannot resolve.
func (s idSet) claim(id string, mint func() string) string {
	for i := 0; i < 8 && (id == "" || s.has(id)); i++ {
		id = mint()
	}
	if id == "" {
		id = "item"
	}
	base := id
	for n := 2; s.has(id); n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	s[id] = struct{}{}
	return id
}

func (s idSet) has(id string) bool {
	_, ok := s[id]
	return ok
}

func str(v any, fallback string) string {
	if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	return fallback
}

// stringList coerces v to a string slice; anything but an array becomes empty.
func stringList(v any) []string {
	out := []string{}
	raw, ok := v.([]any)
	if !ok {
		return out
	}
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func objects(v any) []map[string]any {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

func number(v any) (float64, bool) {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// maxCount caps model-reported counts before the int conversion.
const maxCount = 1_000_000

func atLeastOne(v any) int {
	if f, ok := number(v); ok && f >= 1 {
		return int(math.Min(f, maxCount))
	}
	return 1
}

func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b != ""
	case float64:
		return b != 0
	}
	return false
}

func oneOf[T ~string](v any, allowed []T, fallback T) T {
	s, ok := v.(string)
	if !ok {
		return fallback
	}
	if slices.Contains(allowed, T(s)) {
		return T(s)
	}
	return fallback
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
