// Package tree turns the flat category and problem collections into the
// nested read model and derives everything computed from it.
package tree

import (
	"sort"
	"strings"

	"dsa_tracker/internal/domain/model"
)

// Reshape nests problems under their categories, split by difficulty.
// Category order and the relative order of problems within each bucket follow
// the inputs. Problems whose category is not in cats are dropped.
func Reshape(cats []CategoryDoc, probs []model.Problem) []model.Category {
	byCategory := make(map[string][]model.Problem, len(cats))
	for _, p := range probs {
		byCategory[p.Category] = append(byCategory[p.Category], p)
	}

	out := make([]model.Category, 0, len(cats))
	for _, c := range cats {
		group := model.NewDifficultyGroup()
		for _, p := range byCategory[c.ID] {
			switch p.Difficulty {
			case model.DifficultyEasy:
				group.Easy = append(group.Easy, p)
			case model.DifficultyMedium:
				group.Medium = append(group.Medium, p)
			case model.DifficultyHard:
				group.Hard = append(group.Hard, p)
			}
		}
		out = append(out, model.Category{
			ID:          c.ID,
			Name:        c.Name,
			Slug:        c.Slug,
			Description: c.Description,
			Problems:    group,
		})
	}
	return out
}

// SortCategories orders categories by name, ignoring case. Ties keep their
// input order.
func SortCategories(cats []CategoryDoc) {
	sort.SliceStable(cats, func(i, j int) bool {
		return strings.ToLower(cats[i].Name) < strings.ToLower(cats[j].Name)
	})
}

// FindCategory returns the category whose name matches name case-insensitively.
func FindCategory(cats []CategoryDoc, name string) (CategoryDoc, bool) {
	want := strings.TrimSpace(name)
	for _, c := range cats {
		if strings.EqualFold(strings.TrimSpace(c.Name), want) {
			return c, true
		}
	}
	return CategoryDoc{}, false
}
