package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tobiadeyemi/Resolva/internal/core"
	"github.com/tobiadeyemi/Resolva/internal/models"
)

// CatalogImport is the JSON graph an operator uploads to (re)seed the
// troubleshooting catalog. Slugs are the stable keys.
type CatalogImport struct {
	Categories []CategoryImport `json:"categories"`
}

type CategoryImport struct {
	Slug        string        `json:"slug"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Causes      []CauseImport `json:"causes"`
}

type CauseImport struct {
	Slug        string           `json:"slug"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Priority    int              `json:"priority"`
	Solutions   []SolutionImport `json:"solutions"`
}

type SolutionImport struct {
	Slug               string `json:"slug"`
	Title              string `json:"title"`
	Summary            string `json:"summary"`
	Instructions       string `json:"instructions"`
	StepOrder          int    `json:"step_order"`
	RequiresEscalation bool   `json:"requires_escalation"`
}

// ImportResult summarizes one import run.
type ImportResult struct {
	CategoriesCreated int `json:"categories_created"`
	CategoriesUpdated int `json:"categories_updated"`
	CausesCreated     int `json:"causes_created"`
	CausesUpdated     int `json:"causes_updated"`
	SolutionsCreated  int `json:"solutions_created"`
	SolutionsUpdated  int `json:"solutions_updated"`
	SolutionsRemoved  int `json:"solutions_removed"`
}

// CatalogService maintains the troubleshooting catalog: admin imports
// upsert by slug, and solutions dropped from an imported cause are removed.
type CatalogService struct {
	db     core.DbClient
	logger *zap.Logger
}

func NewCatalogService(db core.DbClient, logger *zap.Logger) *CatalogService {
	return &CatalogService{db: db, logger: logger}
}

// Import applies the uploaded graph. Categories and causes absent from the
// upload are left alone; solutions missing from an uploaded cause are
// deleted so stale steps stop being suggested.
func (s *CatalogService) Import(ctx context.Context, in *CatalogImport) (*ImportResult, error) {
	if err := validateImport(in); err != nil {
		return nil, err
	}

	res := &ImportResult{}
	for _, ci := range in.Categories {
		cat := &models.ProblemCategory{
			ID:          uuid.NewString(),
			Slug:        ci.Slug,
			Name:        ci.Name,
			Description: ci.Description,
		}
		created, err := s.db.UpsertCategory(ctx, cat)
		if err != nil {
			return nil, fmt.Errorf("upsert category %s: %w", ci.Slug, err)
		}
		if created {
			res.CategoriesCreated++
		} else {
			res.CategoriesUpdated++
		}

		for _, cu := range ci.Causes {
			cause := &models.ProblemCause{
				ID:          uuid.NewString(),
				CategoryID:  cat.ID,
				Slug:        cu.Slug,
				Name:        cu.Name,
				Description: cu.Description,
				Priority:    cu.Priority,
			}
			created, err := s.db.UpsertCause(ctx, cause)
			if err != nil {
				return nil, fmt.Errorf("upsert cause %s/%s: %w", ci.Slug, cu.Slug, err)
			}
			if created {
				res.CausesCreated++
			} else {
				res.CausesUpdated++
			}

			keep := make([]string, 0, len(cu.Solutions))
			for _, su := range cu.Solutions {
				sol := &models.ProblemSolution{
					ID:                 uuid.NewString(),
					CauseID:            cause.ID,
					Slug:               su.Slug,
					Title:              su.Title,
					Summary:            su.Summary,
					Instructions:       su.Instructions,
					StepOrder:          su.StepOrder,
					RequiresEscalation: su.RequiresEscalation,
				}
				created, err := s.db.UpsertSolution(ctx, sol)
				if err != nil {
					return nil, fmt.Errorf("upsert solution %s: %w", su.Slug, err)
				}
				if created {
					res.SolutionsCreated++
				} else {
					res.SolutionsUpdated++
				}
				keep = append(keep, su.Slug)
			}

			removed, err := s.db.DeleteSolutionsNotIn(ctx, cause.ID, keep)
			if err != nil {
				return nil, fmt.Errorf("prune solutions for cause %s: %w", cu.Slug, err)
			}
			res.SolutionsRemoved += removed
		}
	}

	s.logger.Info("catalog imported",
		zap.Int("categories", len(in.Categories)),
		zap.Int("solutions_created", res.SolutionsCreated),
		zap.Int("solutions_removed", res.SolutionsRemoved))
	return res, nil
}

// Tree returns the whole catalog as nested JSON for the read endpoint.
func (s *CatalogService) Tree(ctx context.Context) ([]CategoryImport, error) {
	categories, err := s.db.ListCategories(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]CategoryImport, 0, len(categories))
	for _, cat := range categories {
		node := CategoryImport{Slug: cat.Slug, Name: cat.Name, Description: cat.Description}
		causes, err := s.db.ListCausesByCategory(ctx, cat.ID)
		if err != nil {
			return nil, err
		}
		for _, cause := range causes {
			causeNode := CauseImport{
				Slug:        cause.Slug,
				Name:        cause.Name,
				Description: cause.Description,
				Priority:    cause.Priority,
			}
			solutions, err := s.db.ListSolutionsByCause(ctx, cause.ID)
			if err != nil {
				return nil, err
			}
			for _, sol := range solutions {
				causeNode.Solutions = append(causeNode.Solutions, SolutionImport{
					Slug:               sol.Slug,
					Title:              sol.Title,
					Summary:            sol.Summary,
					Instructions:       sol.Instructions,
					StepOrder:          sol.StepOrder,
					RequiresEscalation: sol.RequiresEscalation,
				})
			}
			node.Causes = append(node.Causes, causeNode)
		}
		out = append(out, node)
	}
	return out, nil
}

func validateImport(in *CatalogImport) error {
	if in == nil || len(in.Categories) == 0 {
		return fmt.Errorf("%w: import contains no categories", core.ErrValidation)
	}

	solutionSlugs := map[string]bool{}
	for _, cat := range in.Categories {
		if strings.TrimSpace(cat.Slug) == "" || strings.TrimSpace(cat.Name) == "" {
			return fmt.Errorf("%w: category needs slug and name", core.ErrValidation)
		}
		for _, cause := range cat.Causes {
			if strings.TrimSpace(cause.Slug) == "" || strings.TrimSpace(cause.Name) == "" {
				return fmt.Errorf("%w: cause under %s needs slug and name", core.ErrValidation, cat.Slug)
			}
			for _, sol := range cause.Solutions {
				if strings.TrimSpace(sol.Slug) == "" || strings.TrimSpace(sol.Title) == "" {
					return fmt.Errorf("%w: solution under %s needs slug and title", core.ErrValidation, cause.Slug)
				}
				if solutionSlugs[sol.Slug] {
					return fmt.Errorf("%w: duplicate solution slug %q", core.ErrValidation, sol.Slug)
				}
				solutionSlugs[sol.Slug] = true
			}
		}
	}
	return nil
}
