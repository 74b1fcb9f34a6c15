package tree

import (
	"strings"

	"dsa_tracker/internal/domain/model"
)

// ComputeStats folds the tree into aggregate counts.
func ComputeStats(categories []model.Category) model.Stats {
	var s model.Stats
	for _, c := range categories {
		for _, d := range model.Difficulties {
			bucket := c.Problems.Bucket(d)
			s.TotalProblems += len(bucket)
			for _, p := range bucket {
				if !p.Completed {
					continue
				}
				s.CompletedProblems++
				switch d {
				case model.DifficultyEasy:
					s.EasyCompleted++
				case model.DifficultyMedium:
					s.MediumCompleted++
				case model.DifficultyHard:
					s.HardCompleted++
				}
			}
		}
	}
	if s.TotalProblems > 0 {
		s.CompletionRate = float64(s.CompletedProblems) / float64(s.TotalProblems)
	}
	// TODO: derive StreakDays and LastSolvedDate from completedAt once the
	// consecutive-day rules (time zone, same-day repeats) are agreed on.
	return s
}

// SearchProblems returns every problem whose title, description or one of its
// tags contains q, ignoring case. q is matched as typed, surrounding spaces
// included. An empty query matches everything.
func SearchProblems(categories []model.Category, q string) []model.Problem {
	needle := strings.ToLower(q)
	out := []model.Problem{}
	for _, c := range categories {
		for _, d := range model.Difficulties {
			for _, p := range c.Problems.Bucket(d) {
				if matches(p, needle) {
					out = append(out, p)
				}
			}
		}
	}
	return out
}

func matches(p model.Problem, needle string) bool {
	if strings.Contains(strings.ToLower(p.Title), needle) ||
		strings.Contains(strings.ToLower(p.Description), needle) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}
