package model

// RunCodeRequest is what the editor sends to run a snippet.
type RunCodeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	Stdin    string `json:"stdin"`
}

type RunCodeResult struct {
	Stdout        string `json:"stdout"`
	Stderr        string `json:"stderr"`
	CompileOutput string `json:"compile_output,omitempty"`
	ExitCode      int    `json:"exit_code"`
}

// AssistantRequest carries the editor context for an AI question.
type AssistantRequest struct {
	Message      string `json:"message"`
	Code         string `json:"code,omitempty"`
	Language     string `json:"language,omitempty"`
	ProblemTitle string `json:"problem_title,omitempty"`
}

type AssistantReply struct {
	Message string `json:"message"`
}
