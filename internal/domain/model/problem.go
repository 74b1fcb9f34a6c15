package model

import (
	"time"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Difficulties lists the buckets in display order.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

type Problem struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Difficulty  Difficulty    `json:"difficulty"`
	Category    string        `json:"category"` // owning Category id
	Tags        []string      `json:"tags"`
	Description string        `json:"description"`
	Code        string        `json:"code,omitempty"`
	Language    string        `json:"language,omitempty"`
	Notes       *ProblemNotes `json:"notes,omitempty"`
	URL         string        `json:"url,omitempty"`
	Completed   bool          `json:"completed"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   *time.Time    `json:"updatedAt,omitempty"`
}

// ProblemNotes is the per-problem notebook: free text plus solution approaches,
// each holding source code keyed by language.
type ProblemNotes struct {
	General    string     `json:"general"`
	Approaches []Approach `json:"approaches,omitempty"`
}

type Approach struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Codes           map[string]string `json:"codes,omitempty"`
	CurrentLanguage string            `json:"currentLanguage,omitempty"`
	TimeComplexity  string            `json:"timeComplexity,omitempty"`
	SpaceComplexity string            `json:"spaceComplexity,omitempty"`
}

// DifficultyGroup partitions a category's problems. All three buckets are
// always present, possibly empty.
type DifficultyGroup struct {
	Easy   []Problem `json:"Easy"`
	Medium []Problem `json:"Medium"`
	Hard   []Problem `json:"Hard"`
}

func NewDifficultyGroup() DifficultyGroup {
	return DifficultyGroup{Easy: []Problem{}, Medium: []Problem{}, Hard: []Problem{}}
}

// Bucket returns the slice for d, or nil for an unknown difficulty.
func (g DifficultyGroup) Bucket(d Difficulty) []Problem {
	switch d {
	case DifficultyEasy:
		return g.Easy
	case DifficultyMedium:
		return g.Medium
	case DifficultyHard:
		return g.Hard
	}
	return nil
}

type Category struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug,omitempty"`
	Description string          `json:"description"`
	Problems    DifficultyGroup `json:"problems"`
}

// NewProblemForm is the input to AddProblem. Category is a category name, not an id.
type NewProblemForm struct {
	Title       string        `json:"title"`
	Difficulty  Difficulty    `json:"difficulty"`
	Category    string        `json:"category"`
	URL         string        `json:"url"`
	Description string        `json:"description"`
	Code        string        `json:"code"`
	Language    string        `json:"language"`
	Notes       *ProblemNotes `json:"notes,omitempty"`
	Tags        []string      `json:"tags"`
}

// ProblemUpdate is a partial update; nil fields are left untouched.
// Identity and creation time are not part of it.
type ProblemUpdate struct {
	Title       *string       `json:"title,omitempty"`
	Difficulty  *Difficulty   `json:"difficulty,omitempty"`
	Category    *string       `json:"category,omitempty"` // target Category id
	Tags        *[]string     `json:"tags,omitempty"`
	Description *string       `json:"description,omitempty"`
	Code        *string       `json:"code,omitempty"`
	Language    *string       `json:"language,omitempty"`
	Notes       *ProblemNotes `json:"notes,omitempty"`
	URL         *string       `json:"url,omitempty"`
	Completed   *bool         `json:"completed,omitempty"`
}
