package stock

import (
	"context"
	"fmt"

	"sitecheckout/internal/backend"
	"sitecheckout/internal/logger"
)

// Runner executes a stock action on the inventory backend.
type Runner interface {
	RunStockAction(ctx context.Context, a backend.Action) error
}

// Checker verifies the entered password.
type Checker interface {
	Check(password string) error
}

// Service runs the load/download actions behind the password gate.
type Service struct {
	gate   Checker
	runner Runner
}

func NewService(gate Checker, runner Runner) *Service {
	return &Service{gate: gate, runner: runner}
}

// Run checks the password first; a refused password never reaches the backend.
func (s *Service) Run(ctx context.Context, a backend.Action, password string) error {
	if _, err := a.Method(); err != nil {
		return err
	}
	if err := s.gate.Check(password); err != nil {
		return err
	}

	logger.LogInfo("Running stock action %s", a)
	if err := s.runner.RunStockAction(ctx, a); err != nil {
		logger.LogError("Stock action %s failed: %v", a, err)
		return fmt.Errorf("stock action %s: %w", a, err)
	}
	logger.LogInfo("Stock action %s completed", a)
	return nil
}
