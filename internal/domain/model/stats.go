package model

import "time"

type Stats struct {
	TotalProblems     int        `json:"totalProblems"`
	CompletedProblems int        `json:"completedProblems"`
	EasyCompleted     int        `json:"easyCompleted"`
	MediumCompleted   int        `json:"mediumCompleted"`
	HardCompleted     int        `json:"hardCompleted"`
	CompletionRate    float64    `json:"completionRate"` // 0..1
	StreakDays        int        `json:"streakDays"`
	LastSolvedDate    *time.Time `json:"lastSolvedDate,omitempty"`
}
