// Package service implements the chat, history and session operations.
package service

import (
	"context"

	"github.com/xiaot623/gogo/researchbot/internal/agent"
	store "github.com/xiaot623/gogo/researchbot/internal/repository"
)

// Runner answers one user turn. *agent.Loop satisfies it.
type Runner interface {
	Run(ctx context.Context, req agent.Request) (*agent.Result, error)
}

type Service struct {
	store    store.Store
	runner   Runner
	observer agent.Observer
}

// New creates a Service. observer may be nil.
func New(store store.Store, runner Runner, observer agent.Observer) *Service {
	return &Service{
		store:    store,
		runner:   runner,
		observer: observer,
	}
}
