package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"dsa_tracker/internal/common"
	"dsa_tracker/internal/domain/model"
	"dsa_tracker/internal/platform/executor"
	"dsa_tracker/internal/platform/logger"
)

const maxSourceBytes = 64 << 10

type CodeRunner interface {
	Execute(ctx context.Context, code, language, stdin string) (*executor.Result, error)
}

// RunLocker guards against one user starting overlapping runs.
type RunLocker interface {
	TryAcquire(ctx context.Context, key string) (release func(), ok bool, err error)
}

type localRunLock struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLocalRunLock is the single-process RunLocker.
func NewLocalRunLock() RunLocker {
	return &localRunLock{held: make(map[string]bool)}
}

func (l *localRunLock) TryAcquire(_ context.Context, key string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, true, nil
}

type ExecutionService struct {
	runner CodeRunner
	lock   RunLocker
	log    *logger.Logger
}

func NewExecutionService(runner CodeRunner, lock RunLocker, log *logger.Logger) *ExecutionService {
	if log == nil {
		log = logger.Nop()
	}
	return &ExecutionService{runner: runner, lock: lock, log: log.With("component", "execution")}
}

func (s *ExecutionService) Run(ctx context.Context, tenantID string, req model.RunCodeRequest) (*model.RunCodeResult, error) {
	language := strings.ToLower(strings.TrimSpace(req.Language))
	if strings.TrimSpace(req.Code) == "" {
		return nil, fmt.Errorf("code is required: %w", common.ErrValidation)
	}
	if len(req.Code) > maxSourceBytes {
		return nil, fmt.Errorf("code exceeds %d bytes: %w", maxSourceBytes, common.ErrValidation)
	}
	if _, ok := executor.Versions[language]; !ok {
		return nil, fmt.Errorf("unsupported language %q: %w", req.Language, common.ErrValidation)
	}

	release, ok, err := s.lock.TryAcquire(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("run lock: %w", err)
	}
	if !ok {
		return nil, common.ErrRunInProgress
	}
	defer release()

	res, err := s.runner.Execute(ctx, req.Code, language, req.Stdin)
	if err != nil {
		s.log.Warn("code execution failed", "tenant", tenantID, "language", language, "error", err)
		return nil, err
	}
	s.log.Debug("code executed", "tenant", tenantID, "language", language, "exit_code", res.ExitCode)
	return &model.RunCodeResult{
		Stdout:        res.Stdout,
		Stderr:        res.Stderr,
		CompileOutput: res.CompileOutput,
		ExitCode:      res.ExitCode,
	}, nil
}
