package service

import (
	"context"
	"fmt"
	"strings"

	"dsa_tracker/internal/common"
	"dsa_tracker/internal/domain/model"
	"dsa_tracker/internal/platform/ai"
	"dsa_tracker/internal/platform/logger"
)

const (
	assistantPersona = "You are a friendly programming tutor helping with data structures and algorithms practice. Be concise."
	converterPersona = "You turn code snippets into complete programs. Reply with a single fenced code block and nothing else."
)

var runnableCodePhrases = []string{"generate complete runnable code", "complete code", "runnable code"}

type AssistantService struct {
	gen ai.TextGenerator
	log *logger.Logger
}

// NewAssistantService accepts a nil generator; Ask then reports the
// assistant as unavailable.
func NewAssistantService(gen ai.TextGenerator, log *logger.Logger) *AssistantService {
	if log == nil {
		log = logger.Nop()
	}
	return &AssistantService{gen: gen, log: log.With("component", "assistant")}
}

func (s *AssistantService) Ask(ctx context.Context, req model.AssistantRequest) (*model.AssistantReply, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("message is required: %w", common.ErrValidation)
	}
	if s.gen == nil {
		return nil, fmt.Errorf("assistant is not configured: %w", common.ErrServiceUnavailable)
	}

	system, prompt := buildAssistantPrompt(req)
	out, err := s.gen.Generate(ctx, system, prompt)
	if err != nil {
		s.log.Warn("assistant request failed", "error", err)
		return nil, err
	}
	return &model.AssistantReply{Message: strings.TrimSpace(out)}, nil
}

func wantsRunnableCode(message string) bool {
	m := strings.ToLower(message)
	for _, phrase := range runnableCodePhrases {
		if strings.Contains(m, phrase) {
			return true
		}
	}
	return false
}

func buildAssistantPrompt(req model.AssistantRequest) (system, prompt string) {
	language := req.Language
	if language == "" {
		language = "javascript"
	}
	code := strings.TrimSpace(req.Code)

	if code != "" && wantsRunnableCode(req.Message) {
		var b strings.Builder
		fmt.Fprintf(&b, "Convert this %s code into one self-contained program that reads its input from stdin, keeps the same algorithm and prints the result.\n\n", language)
		fmt.Fprintf(&b, "```%s\n%s\n```\n", language, code)
		return converterPersona, b.String()
	}

	var b strings.Builder
	title := req.ProblemTitle
	if title == "" {
		title = "Code Editor"
	}
	fmt.Fprintf(&b, "Problem: %s\n", title)
	if code != "" {
		fmt.Fprintf(&b, "Language: %s\n```%s\n%s\n```\n", language, language, code)
	}
	fmt.Fprintf(&b, "\nQuestion: %s\n", strings.TrimSpace(req.Message))
	return assistantPersona, b.String()
}
