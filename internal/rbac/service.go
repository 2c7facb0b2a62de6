package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Service orchestrates rule table storage and policy loading.
type Service struct {
	repo   Repository
	cache  *SnapshotCache
	logger *slog.Logger
}

// NewService constructs a Service. cache and logger may be nil.
func NewService(repo Repository, cache *SnapshotCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// ListRules returns the stored rules, preferring the cached snapshot.
func (s *Service) ListRules(ctx context.Context) ([]Rule, error) {
	rules, ok, err := s.cache.Get(ctx)
	if err != nil {
		s.logger.Warn("rbac snapshot read", slog.Any("error", err))
	}
	if ok {
		return rules, nil
	}
	rules, err = s.repo.ListRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("rbac: list rules: %w", err)
	}
	if err := s.cache.Put(ctx, rules); err != nil {
		s.logger.Warn("rbac snapshot write", slog.Any("error", err))
	}
	return rules, nil
}

// Policy builds a rule table from storage.
func (s *Service) Policy(ctx context.Context) (*RuleTable, error) {
	rules, err := s.ListRules(ctx)
	if err != nil {
		return nil, err
	}
	return NewRuleTable(rules)
}

// ReplaceRules replaces every grant held by role. Rules naming another role
// are rejected.
func (s *Service) ReplaceRules(ctx context.Context, role Role, rules []Rule) error {
	if !role.Valid() {
		return ErrUnknownRole
	}
	rules = append([]Rule(nil), rules...)
	for i := range rules {
		if rules[i].Role == "" {
			rules[i].Role = role
		}
		if rules[i].Role != role {
			return fmt.Errorf("%w: rule for %q submitted under %q", ErrInvalidRule, rules[i].Role, role)
		}
	}
	if _, err := NewRuleTable(rules); err != nil {
		return err
	}
	if err := s.repo.ReplaceRoleRules(ctx, role, rules); err != nil {
		return fmt.Errorf("rbac: replace rules: %w", err)
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("rbac snapshot invalidate", slog.Any("error", err))
	}
	return nil
}

// ImportTable stores every role present in table, leaving other roles untouched.
func (s *Service) ImportTable(ctx context.Context, table *RuleTable) error {
	byRole := make(map[Role][]Rule)
	for _, rule := range table.Rules() {
		byRole[rule.Role] = append(byRole[rule.Role], rule)
	}
	for _, role := range Roles() {
		rules, ok := byRole[role]
		if !ok {
			continue
		}
		if err := s.ReplaceRules(ctx, role, rules); err != nil {
			return err
		}
	}
	return nil
}

// Refresh reloads the policy into target every interval until ctx is done.
func (s *Service) Refresh(ctx context.Context, target *ReloadingPolicy, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			table, err := s.Policy(ctx)
			if err != nil {
				s.logger.Warn("rbac policy refresh", slog.Any("error", err))
				continue
			}
			target.Swap(table)
		}
	}
}
