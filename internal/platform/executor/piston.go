// Package executor runs code snippets on a Piston-compatible sandbox.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dsa_tracker/internal/common"
)

// Versions pins the runtime version sent for each supported language.
var Versions = map[string]string{
	"javascript": "18.15.0",
	"python":     "3.10.0",
	"java":       "15.0.2",
	"cpp":        "10.2.0",
	"c":          "10.2.0",
}

type Result struct {
	Stdout        string
	Stderr        string
	CompileOutput string
	ExitCode      int
}

type PistonClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewPistonClient(baseURL string, timeout time.Duration) *PistonClient {
	return &PistonClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type pistonFile struct {
	Content string `json:"content"`
}

type pistonRequest struct {
	Language string       `json:"language"`
	Version  string       `json:"version"`
	Files    []pistonFile `json:"files"`
	Stdin    string       `json:"stdin"`
}

type pistonStage struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Output string `json:"output"`
	Code   *int   `json:"code"`
	Signal string `json:"signal"`
}

type pistonResponse struct {
	Run     *pistonStage `json:"run"`
	Compile *pistonStage `json:"compile"`
	Message string       `json:"message"`
}

func (c *PistonClient) Execute(ctx context.Context, code, language, stdin string) (*Result, error) {
	version, ok := Versions[language]
	if !ok {
		return nil, fmt.Errorf("unsupported language %q: %w", language, common.ErrValidation)
	}
	body, err := json.Marshal(pistonRequest{
		Language: language,
		Version:  version,
		Files:    []pistonFile{{Content: code}},
		Stdin:    stdin,
	})
	if err != nil {
		return nil, fmt.Errorf("encode execute request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build execute request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executor unreachable: %v: %w", err, common.ErrServiceUnavailable)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read executor response: %w", err)
	}
	var out pistonResponse
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("executor returned %d: %w", resp.StatusCode, common.ErrServiceUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		msg := out.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("executor rejected request: %s: %w", msg, common.ErrBadRequest)
	}

	result := &Result{}
	if out.Run != nil {
		result.Stdout = out.Run.Stdout
		result.Stderr = out.Run.Stderr
		if out.Run.Code != nil {
			result.ExitCode = *out.Run.Code
		}
	}
	if out.Compile != nil {
		result.CompileOutput = out.Compile.Output
		if out.Compile.Code != nil && *out.Compile.Code != 0 && result.ExitCode == 0 {
			result.ExitCode = *out.Compile.Code
		}
	}
	return result, nil
}
