package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/JakeFAU/business-discovery/internal/analysis"
	"github.com/JakeFAU/business-discovery/internal/business"
)

// Key prefixes for the document store.
const (
	businessPrefix  = "business:"
	analysisPrefix  = "analysis:"
	workflowsPrefix = "workflows:"
)

// BusinessKey returns the document key of a business record.
func BusinessKey(id string) string { return businessPrefix + id }

// AnalysisKey returns the document key of a task profile.
func AnalysisKey(id string) string { return analysisPrefix + id }

// WorkflowsKey returns the document key of a workflow analysis.
func WorkflowsKey(id string) string { return workflowsPrefix + id }

// Repository maps domain types onto a DocumentStore.
type Repository struct {
	docs DocumentStore
}

// NewRepository wraps docs.
func NewRepository(docs DocumentStore) *Repository {
	return &Repository{docs: docs}
}

// SaveBusiness stores rec under business:<id>.
func (r *Repository) SaveBusiness(ctx context.Context, rec business.Record) error {
	return r.put(ctx, BusinessKey(rec.ID), rec)
}

// Business loads a business record.
func (r *Repository) Business(ctx context.Context, id string) (business.Record, error) {
	var rec business.Record
	err := r.get(ctx, BusinessKey(id), &rec)
	return rec, err
}

// SaveProfile stores p under analysis:<business id>.
func (r *Repository) SaveProfile(ctx context.Context, p analysis.Profile) error {
	return r.put(ctx, AnalysisKey(p.Business.ID), p)
}

// Profile loads the task profile of a business.
func (r *Repository) Profile(ctx context.Context, businessID string) (analysis.Profile, error) {
	var p analysis.Profile
	err := r.get(ctx, AnalysisKey(businessID), &p)
	return p, err
}

// SaveWorkflows stores w under workflows:<business id>.
func (r *Repository) SaveWorkflows(ctx context.Context, w analysis.WorkflowAnalysis) error {
	return r.put(ctx, WorkflowsKey(w.BusinessID), w)
}

// Workflows loads the workflow analysis of a business.
func (r *Repository) Workflows(ctx context.Context, businessID string) (analysis.WorkflowAnalysis, error) {
	var w analysis.WorkflowAnalysis
	err := r.get(ctx, WorkflowsKey(businessID), &w)
	return w, err
}

func (r *Repository) put(ctx context.Context, key string, v any) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.docs.Put(ctx, key, doc); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (r *Repository) get(ctx context.Context, key string, v any) error {
	doc, err := r.docs.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(doc, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
