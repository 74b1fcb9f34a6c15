package tree

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"dsa_tracker/internal/common"
	"dsa_tracker/internal/domain/model"
	"dsa_tracker/internal/domain/repository"
)

// CategoryDoc is a category as stored, before its problems are attached.
type CategoryDoc struct {
	ID          string
	Name        string
	Slug        string
	Description string
	CreatedAt   time.Time
}

func malformed(collection, id, field, reason string) error {
	return &common.MalformedDocumentError{Collection: collection, ID: id, Field: field, Reason: reason}
}

// DecodeCategory validates a category document. name must be a non-empty string.
func DecodeCategory(collection string, doc repository.Document) (CategoryDoc, error) {
	name, ok := doc.Fields["name"].(string)
	if !ok {
		return CategoryDoc{}, malformed(collection, doc.ID, "name", "is missing or not a string")
	}
	if strings.TrimSpace(name) == "" {
		return CategoryDoc{}, malformed(collection, doc.ID, "name", "is empty")
	}
	return CategoryDoc{
		ID:          doc.ID,
		Name:        name,
		Slug:        stringField(doc.Fields, "slug"),
		Description: stringField(doc.Fields, "description"),
		CreatedAt:   timeField(doc.Fields, "createdAt"),
	}, nil
}

// DecodeProblem validates a problem document. title, category and difficulty
// are required; every other field falls back to its zero value when absent or
// of the wrong type.
func DecodeProblem(collection string, doc repository.Document) (model.Problem, error) {
	title, ok := doc.Fields["title"].(string)
	if !ok || strings.TrimSpace(title) == "" {
		return model.Problem{}, malformed(collection, doc.ID, "title", "is missing or empty")
	}
	category, ok := doc.Fields["category"].(string)
	if !ok || category == "" {
		return model.Problem{}, malformed(collection, doc.ID, "category", "is missing or not a string")
	}
	rawDifficulty, ok := doc.Fields["difficulty"].(string)
	if !ok {
		return model.Problem{}, malformed(collection, doc.ID, "difficulty", "is missing or not a string")
	}
	difficulty := model.Difficulty(rawDifficulty)
	if !difficulty.Valid() {
		return model.Problem{}, malformed(collection, doc.ID, "difficulty", "must be Easy, Medium or Hard")
	}

	completed, _ := doc.Fields["completed"].(bool)
	p := model.Problem{
		ID:          doc.ID,
		Title:       title,
		Difficulty:  difficulty,
		Category:    category,
		Tags:        stringSliceField(doc.Fields, "tags"),
		Description: stringField(doc.Fields, "description"),
		Code:        stringField(doc.Fields, "code"),
		Language:    stringField(doc.Fields, "language"),
		Notes:       DecodeNotes(doc.Fields["notes"]),
		URL:         stringField(doc.Fields, "url"),
		Completed:   completed,
		CompletedAt: optionalTimeField(doc.Fields, "completedAt"),
		CreatedAt:   timeField(doc.Fields, "createdAt"),
		UpdatedAt:   optionalTimeField(doc.Fields, "updatedAt"),
	}
	return p, nil
}

// DecodeCategories decodes every document it can and returns the rest as errors.
func DecodeCategories(collection string, docs []repository.Document) ([]CategoryDoc, []error) {
	out := make([]CategoryDoc, 0, len(docs))
	var skipped []error
	for _, d := range docs {
		c, err := DecodeCategory(collection, d)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		out = append(out, c)
	}
	return out, skipped
}

func DecodeProblems(collection string, docs []repository.Document) ([]model.Problem, []error) {
	out := make([]model.Problem, 0, len(docs))
	var skipped []error
	for _, d := range docs {
		p, err := DecodeProblem(collection, d)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		out = append(out, p)
	}
	return out, skipped
}

type wireApproach struct {
	ID              json.RawMessage   `json:"id"`
	Name            string            `json:"name"`
	Codes           map[string]string `json:"codes"`
	CurrentLanguage string            `json:"currentLanguage"`
	TimeComplexity  string            `json:"timeComplexity"`
	SpaceComplexity string            `json:"spaceComplexity"`
	// older clients kept a single snippet per approach
	Code     *string `json:"code"`
	Language *string `json:"language"`
}

type wireNotes struct {
	General      string         `json:"general"`
	GeneralNotes string         `json:"generalNotes"`
	Approaches   []wireApproach `json:"approaches"`
}

const defaultNotesLanguage = "javascript"

// DecodeNotes accepts the typed notes object as well as the older encodings:
// a JSON string with generalNotes/approaches, or plain free text.
func DecodeNotes(v any) *model.ProblemNotes {
	var raw []byte
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(t) == "" {
			return nil
		}
		if !json.Valid([]byte(t)) || !strings.HasPrefix(strings.TrimSpace(t), "{") {
			return &model.ProblemNotes{General: t}
		}
		raw = []byte(t)
	case map[string]any:
		b, err := json.Marshal(t)
		if err != nil {
			return nil
		}
		raw = b
	default:
		return nil
	}

	var w wireNotes
	if err := json.Unmarshal(raw, &w); err != nil {
		if s, ok := v.(string); ok {
			return &model.ProblemNotes{General: s}
		}
		return nil
	}

	notes := &model.ProblemNotes{General: w.General}
	if notes.General == "" {
		notes.General = w.GeneralNotes
	}
	for i, a := range w.Approaches {
		approach := model.Approach{
			ID:              approachID(a.ID, i),
			Name:            a.Name,
			Codes:           a.Codes,
			CurrentLanguage: a.CurrentLanguage,
			TimeComplexity:  a.TimeComplexity,
			SpaceComplexity: a.SpaceComplexity,
		}
		if a.Code != nil && a.Language != nil {
			if approach.Codes == nil {
				approach.Codes = map[string]string{}
			}
			approach.Codes[*a.Language] = *a.Code
			if approach.CurrentLanguage == "" {
				approach.CurrentLanguage = *a.Language
			}
		}
		if approach.Codes == nil {
			approach.Codes = map[string]string{}
		}
		if approach.CurrentLanguage == "" {
			approach.CurrentLanguage = defaultNotesLanguage
		}
		notes.Approaches = append(notes.Approaches, approach)
	}
	return notes
}

func approachID(raw json.RawMessage, index int) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil && n != "" {
		return n.String()
	}
	return strconv.Itoa(index + 1)
}

func stringField(f repository.Fields, key string) string {
	s, _ := f[key].(string)
	return s
}

func stringSliceField(f repository.Fields, key string) []string {
	out := []string{}
	switch t := f[key].(type) {
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
	case []string:
		out = append(out, t...)
	}
	return out
}

// timeField parses RFC 3339 strings, time values and epoch milliseconds.
func timeField(f repository.Fields, key string) time.Time {
	if t := optionalTimeField(f, key); t != nil {
		return *t
	}
	return time.Time{}
}

func optionalTimeField(f repository.Fields, key string) *time.Time {
	switch t := f[key].(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return nil
		}
		return &parsed
	case time.Time:
		if t.IsZero() {
			return nil
		}
		return &t
	case *time.Time:
		return t
	case float64:
		parsed := time.UnixMilli(int64(t)).UTC()
		return &parsed
	}
	return nil
}
