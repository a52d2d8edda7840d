// Package feedback applies user judgments to stored recommendations.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/business-discovery/internal/analysis"
	"github.com/JakeFAU/business-discovery/internal/business"
	"github.com/JakeFAU/business-discovery/internal/metrics"
	"github.com/JakeFAU/business-discovery/internal/store"
)

// ErrInvalidAction is returned for unknown actions and empty edits.
var ErrInvalidAction = errors.New("invalid feedback action")

// Action is a user judgment.
type Action string

// Supported actions.
const (
	ActionThumbsUp   Action = "thumbs_up"
	ActionThumbsDown Action = "thumbs_down"
	ActionEdit       Action = "edit"
)

// Targets used in metrics.
const (
	targetTask     = "task"
	targetWorkflow = "workflow"
)

// Recorder applies feedback with whole-document read-modify-write.
type Recorder struct {
	repo  *store.Repository
	clock business.Clock
	log   *zap.Logger

	// mu serializes read-modify-write cycles so concurrent feedback on the
	// same profile is not lost.
	mu sync.Mutex
}

// NewRecorder returns a Recorder.
func NewRecorder(repo *store.Repository, clock business.Clock, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{repo: repo, clock: clock, log: logger.Named("feedback")}
}

// ApplyToTask records action on one task of the stored profile and returns
// the updated task. A missing profile or task yields store.ErrNotFound and
// nothing is written.
func (r *Recorder) ApplyToTask(ctx context.Context, businessID, taskID string, action Action, text string) (analysis.Task, error) {
	if err := validate(action, text); err != nil {
		return analysis.Task{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	profile, err := r.repo.Profile(ctx, businessID)
	if err != nil {
		return analysis.Task{}, fmt.Errorf("load profile: %w", err)
	}
	now := r.clock.Now().UTC()
	idx := indexOf(profile.Tasks, taskID, func(t analysis.Task) string { return t.ID })
	if idx < 0 {
		return analysis.Task{}, fmt.Errorf("task %s: %w", taskID, store.ErrNotFound)
	}
	task := &profile.Tasks[idx]
	apply(&task.Feedback, action, text, now)
	task.UpdatedAt = &now

	if err := r.repo.SaveProfile(ctx, profile); err != nil {
		return analysis.Task{}, fmt.Errorf("save profile: %w", err)
	}
	metrics.ObserveFeedback(targetTask, string(action))
	r.log.Info("recorded task feedback",
		zap.String("business_id", businessID), zap.String("task_id", taskID), zap.String("action", string(action)))
	return *task, nil
}

// ApplyToWorkflow records action on one workflow of the stored analysis.
func (r *Recorder) ApplyToWorkflow(ctx context.Context, businessID, workflowID string, action Action, text string) (analysis.Workflow, error) {
	if err := validate(action, text); err != nil {
		return analysis.Workflow{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	wa, err := r.repo.Workflows(ctx, businessID)
	if err != nil {
		return analysis.Workflow{}, fmt.Errorf("load workflows: %w", err)
	}
	now := r.clock.Now().UTC()
	idx := indexOf(wa.Workflows, workflowID, func(w analysis.Workflow) string { return w.ID })
	if idx < 0 {
		return analysis.Workflow{}, fmt.Errorf("workflow %s: %w", workflowID, store.ErrNotFound)
	}
	wf := &wa.Workflows[idx]
	apply(&wf.Feedback, action, text, now)
	wf.UpdatedAt = &now

	if err := r.repo.SaveWorkflows(ctx, wa); err != nil {
		return analysis.Workflow{}, fmt.Errorf("save workflows: %w", err)
	}
	metrics.ObserveFeedback(targetWorkflow, string(action))
	r.log.Info("recorded workflow feedback",
		zap.String("business_id", businessID), zap.String("workflow_id", workflowID), zap.String("action", string(action)))
	return *wf, nil
}

func validate(action Action, text string) error {
	switch action {
	case ActionThumbsUp, ActionThumbsDown:
		return nil
	case ActionEdit:
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("%w: edit text is required", ErrInvalidAction)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
}

func indexOf[T any](items []T, id string, idOf func(T) string) int {
	for i, item := range items {
		if idOf(item) == id {
			return i
		}
	}
	return -1
}

func apply(fb *analysis.Feedback, action Action, text string, now time.Time) {
	switch action {
	case ActionThumbsUp:
		fb.ThumbsUp++
	case ActionThumbsDown:
		fb.ThumbsDown++
	case ActionEdit:
		fb.Edits = append(fb.Edits, analysis.Edit{Text: text, At: now})
	}
}
