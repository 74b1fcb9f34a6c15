package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dsa_tracker/internal/app/tree"
	"dsa_tracker/internal/common"
	"dsa_tracker/internal/domain/model"
	"dsa_tracker/internal/domain/repository"
	"dsa_tracker/internal/platform/logger"
	"dsa_tracker/internal/platform/metrics"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

const (
	opAddProblem    = "addProblem"
	opUpdateProblem = "updateProblem"
	opToggleProblem = "toggleProblemCompletion"
	opDeleteProblem = "deleteProblem"
	opDeleteCat     = "deleteCategory"
)

// categoryNamespace seeds the name-derived category ids.
var categoryNamespace = uuid.MustParse("6f1c7a52-3d0e-4b8a-9c43-2a7e5d9b1f60")

// CategoryID is the id a new category named name gets for tenantID. Two
// writers creating the same name (in any letter case) land on one document.
func CategoryID(tenantID, name string) string {
	key := tenantID + "/" + strings.ToLower(strings.TrimSpace(name))
	return uuid.NewSHA1(categoryNamespace, []byte(key)).String()
}

// TrackerService is the only write path for categories and problems. It never
// touches a published tree; subscribers see the effect on their next rebuild.
type TrackerService struct {
	store   repository.DocumentStore
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewTrackerService(store repository.DocumentStore, log *logger.Logger, m *metrics.Metrics) *TrackerService {
	if log == nil {
		log = logger.Nop()
	}
	return &TrackerService{
		store:   store,
		log:     log.With("component", "tracker"),
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// AddProblem files a new problem under the category named form.Category,
// creating the category when no existing one matches case-insensitively.
// The category and the problem are written in one batch.
func (s *TrackerService) AddProblem(ctx context.Context, tenantID string, form model.NewProblemForm) (problemID string, err error) {
	defer func() { s.metrics.Mutation(opAddProblem, err) }()

	title := strings.TrimSpace(form.Title)
	categoryName := strings.TrimSpace(form.Category)
	if err := requireTenant(tenantID); err != nil {
		return "", err
	}
	if title == "" {
		return "", fmt.Errorf("title is required: %w", common.ErrValidation)
	}
	if categoryName == "" {
		return "", fmt.Errorf("category is required: %w", common.ErrValidation)
	}
	if !form.Difficulty.Valid() {
		return "", fmt.Errorf("difficulty must be Easy, Medium or Hard: %w", common.ErrValidation)
	}

	catPath, probPath := repository.CategoriesPath(tenantID), repository.ProblemsPath(tenantID)
	docs, err := s.store.Read(ctx, catPath)
	if err != nil {
		return "", common.MutationFailed(opAddProblem, err)
	}
	existing, _ := tree.DecodeCategories(catPath, docs)

	now := s.now()
	batch := s.store.Batch()

	category, found := tree.FindCategory(existing, categoryName)
	if !found {
		category = tree.CategoryDoc{ID: CategoryID(tenantID, categoryName), Name: categoryName}
		batch.Set(catPath, category.ID, repository.Fields{
			"name":        categoryName,
			"slug":        slug.Make(categoryName),
			"description": "Problems for " + categoryName,
			"createdAt":   now,
		})
	}

	description := strings.TrimSpace(form.Description)
	if description == "" {
		description = "Practice problem: " + title
	}
	fields := repository.Fields{
		"title":       title,
		"difficulty":  string(form.Difficulty),
		"category":    category.ID,
		"tags":        cleanTags(form.Tags),
		"description": description,
		"code":        form.Code,
		"language":    form.Language,
		"url":         strings.TrimSpace(form.URL),
		"completed":   false,
		"completedAt": nil,
		"createdAt":   now,
		"updatedAt":   now,
	}
	if form.Notes != nil {
		fields["notes"] = form.Notes
	}

	problemID = s.store.NewID()
	batch.Set(probPath, problemID, fields)
	if err := batch.Commit(ctx); err != nil {
		return "", common.MutationFailed(opAddProblem, err)
	}

	s.log.Info("problem added", "tenant", tenantID, "problem_id", problemID, "category_id", category.ID, "new_category", !found)
	return problemID, nil
}

// UpdateProblem merges the set fields of upd into the problem and stamps
// updatedAt. Setting Completed follows the same completedAt rule as
// ToggleProblemCompletion.
func (s *TrackerService) UpdateProblem(ctx context.Context, tenantID, problemID string, upd model.ProblemUpdate) (err error) {
	defer func() { s.metrics.Mutation(opUpdateProblem, err) }()

	if err := requireTenant(tenantID); err != nil {
		return err
	}
	partial := repository.Fields{}

	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title == "" {
			return fmt.Errorf("title cannot be empty: %w", common.ErrValidation)
		}
		partial["title"] = title
	}
	if upd.Difficulty != nil {
		if !upd.Difficulty.Valid() {
			return fmt.Errorf("difficulty must be Easy, Medium or Hard: %w", common.ErrValidation)
		}
		partial["difficulty"] = string(*upd.Difficulty)
	}
	if upd.Category != nil {
		categoryID := strings.TrimSpace(*upd.Category)
		if categoryID == "" {
			return fmt.Errorf("category cannot be empty: %w", common.ErrValidation)
		}
		if _, err := s.store.ReadOne(ctx, repository.CategoriesPath(tenantID), categoryID); err != nil {
			return common.MutationFailed(opUpdateProblem, err)
		}
		partial["category"] = categoryID
	}
	if upd.Tags != nil {
		partial["tags"] = cleanTags(*upd.Tags)
	}
	if upd.Description != nil {
		partial["description"] = *upd.Description
	}
	if upd.Code != nil {
		partial["code"] = *upd.Code
	}
	if upd.Language != nil {
		partial["language"] = *upd.Language
	}
	if upd.Notes != nil {
		partial["notes"] = upd.Notes
	}
	if upd.URL != nil {
		partial["url"] = strings.TrimSpace(*upd.URL)
	}

	now := s.now()
	if upd.Completed != nil {
		current, err := s.store.ReadOne(ctx, repository.ProblemsPath(tenantID), problemID)
		if err != nil {
			return common.MutationFailed(opUpdateProblem, err)
		}
		was, _ := current.Fields["completed"].(bool)
		partial["completed"] = *upd.Completed
		switch {
		case *upd.Completed && !was:
			partial["completedAt"] = now
		case !*upd.Completed && was:
			partial["completedAt"] = nil
		}
	}
	partial["updatedAt"] = now

	if err := s.store.Update(ctx, repository.ProblemsPath(tenantID), problemID, partial); err != nil {
		return common.MutationFailed(opUpdateProblem, err)
	}
	s.log.Debug("problem updated", "tenant", tenantID, "problem_id", problemID, "fields", len(partial))
	return nil
}

// ToggleProblemCompletion flips the stored completed flag and returns the new
// value. completedAt is set on false->true and cleared on true->false.
func (s *TrackerService) ToggleProblemCompletion(ctx context.Context, tenantID, problemID string) (completed bool, err error) {
	defer func() { s.metrics.Mutation(opToggleProblem, err) }()

	if err := requireTenant(tenantID); err != nil {
		return false, err
	}
	path := repository.ProblemsPath(tenantID)
	current, err := s.store.ReadOne(ctx, path, problemID)
	if err != nil {
		return false, common.MutationFailed(opToggleProblem, err)
	}
	was, _ := current.Fields["completed"].(bool)
	completed = !was

	now := s.now()
	partial := repository.Fields{"completed": completed, "completedAt": nil, "updatedAt": now}
	if completed {
		partial["completedAt"] = now
	}
	if err := s.store.Update(ctx, path, problemID, partial); err != nil {
		return false, common.MutationFailed(opToggleProblem, err)
	}
	return completed, nil
}

func (s *TrackerService) DeleteProblem(ctx context.Context, tenantID, problemID string) (err error) {
	defer func() { s.metrics.Mutation(opDeleteProblem, err) }()

	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, repository.ProblemsPath(tenantID), problemID); err != nil {
		return common.MutationFailed(opDeleteProblem, err)
	}
	s.log.Info("problem deleted", "tenant", tenantID, "problem_id", problemID)
	return nil
}

// DeleteCategory removes the category and every problem that references it
// in a single batch. If the batch fails nothing is removed.
func (s *TrackerService) DeleteCategory(ctx context.Context, tenantID, categoryID string) (err error) {
	defer func() { s.metrics.Mutation(opDeleteCat, err) }()

	if err := requireTenant(tenantID); err != nil {
		return err
	}
	catPath, probPath := repository.CategoriesPath(tenantID), repository.ProblemsPath(tenantID)
	if _, err := s.store.ReadOne(ctx, catPath, categoryID); err != nil {
		return common.MutationFailed(opDeleteCat, err)
	}
	problems, err := s.store.Read(ctx, probPath)
	if err != nil {
		return common.MutationFailed(opDeleteCat, err)
	}

	batch := s.store.Batch()
	removed := 0
	for _, p := range problems {
		// raw field on purpose: documents that fail decoding still reference the category
		if ref, _ := p.Fields["category"].(string); ref == categoryID {
			batch.Delete(probPath, p.ID)
			removed++
		}
	}
	batch.Delete(catPath, categoryID)
	if err := batch.Commit(ctx); err != nil {
		return common.MutationFailed(opDeleteCat, err)
	}
	s.log.Info("category deleted", "tenant", tenantID, "category_id", categoryID, "problems_removed", removed)
	return nil
}

func requireTenant(tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("tenant id is required: %w", common.ErrValidation)
	}
	return nil
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[strings.ToLower(t)] {
			continue
		}
		seen[strings.ToLower(t)] = true
		out = append(out, t)
	}
	return out
}
