package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/absmach/fedprox/pkg/orchestration"
)

type roundKey struct {
	runID string
	round int
}

type MemoryRoundStore struct {
	mu     sync.RWMutex
	rounds map[roundKey]orchestration.RoundResult
}

func NewMemoryRoundStore() orchestration.RoundStore {
	return &MemoryRoundStore{
		rounds: make(map[roundKey]orchestration.RoundResult),
	}
}

func (s *MemoryRoundStore) CreateRound(ctx context.Context, r orchestration.RoundResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := roundKey{runID: r.RunID, round: r.Round}
	if _, ok := s.rounds[key]; ok {
		return fmt.Errorf("%w: run %s round %d", orchestration.ErrRoundExists, r.RunID, r.Round)
	}
	s.rounds[key] = clone(r)

	return nil
}

func (s *MemoryRoundStore) GetRound(ctx context.Context, runID string, round int) (orchestration.RoundResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rounds[roundKey{runID: runID, round: round}]
	if !ok {
		return orchestration.RoundResult{}, fmt.Errorf("%w: run %s round %d", orchestration.ErrRoundNotFound, runID, round)
	}

	return clone(r), nil
}

func (s *MemoryRoundStore) UpdateRound(ctx context.Context, r orchestration.RoundResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := roundKey{runID: r.RunID, round: r.Round}
	if _, ok := s.rounds[key]; !ok {
		return fmt.Errorf("%w: run %s round %d", orchestration.ErrRoundNotFound, r.RunID, r.Round)
	}
	s.rounds[key] = clone(r)

	return nil
}

func (s *MemoryRoundStore) ListRounds(ctx context.Context, runID string) ([]orchestration.RoundResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rounds := make([]orchestration.RoundResult, 0)
	for k, r := range s.rounds {
		if k.runID == runID {
			rounds = append(rounds, clone(r))
		}
	}
	slices.SortFunc(rounds, func(a, b orchestration.RoundResult) int {
		return a.Round - b.Round
	})

	return rounds, nil
}

func clone(r orchestration.RoundResult) orchestration.RoundResult {
	r.Clients = slices.Clone(r.Clients)

	return r
}
