// Package velocity provides transaction velocity calculation.
package velocity

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/rules"
)

// countTTL bounds how stale a cached velocity count may be.
const countTTL = 15 * time.Second

// Service calculates transaction velocity for accounts.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
}

// NewService creates a new velocity service.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
	}
}

// GetTransactionCount returns the number of transactions for an account
// within a time window. This is the VelocityGetter function signature
// expected by the rule engine.
func (s *Service) GetTransactionCount(ctx context.Context, account string, windowSecs int) (int64, error) {
	if account == "" {
		return 0, fmt.Errorf("account is required")
	}

	cacheKey := fmt.Sprintf("velocity:%s:%d", account, windowSecs)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil && cached != nil {
			if count, err := strconv.ParseInt(string(cached), 10, 64); err == nil {
				return count, nil
			}
		}
	}

	if s.repo == nil {
		return 0, fmt.Errorf("no data source available")
	}

	since := time.Now().Add(-time.Duration(windowSecs) * time.Second)
	count, err := s.countFromRepo(ctx, account, since)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey, []byte(strconv.FormatInt(count, 10)), countTTL)
	}

	return count, nil
}

// countFromRepo uses the repository to get transactions and count them.
func (s *Service) countFromRepo(ctx context.Context, account string, since time.Time) (int64, error) {
	txs, err := s.repo.GetTransactionsByAccount(ctx, account, since)
	if err != nil {
		return 0, fmt.Errorf("failed to get transactions: %w", err)
	}
	return int64(len(txs)), nil
}

// GetVelocityGetter returns a VelocityGetter function for the rule engine.
func (s *Service) GetVelocityGetter() rules.VelocityGetter {
	return s.GetTransactionCount
}
