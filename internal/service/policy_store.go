package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/library-seat-reservation/internal/config"
	"github.com/iliyamo/library-seat-reservation/internal/engine"
)

// PolicyCacheKey holds the merged policy document as JSON.
const PolicyCacheKey = "policy:current"

// SettingsStore is the persistence side of policy overrides.
type SettingsStore interface {
	Overrides(ctx context.Context) (map[string]json.RawMessage, error)
	UpsertMany(ctx context.Context, values map[string]json.RawMessage) error
}

// PolicySource yields the policy in force.
type PolicySource interface {
	Current(ctx context.Context) (engine.Policy, error)
}

// PolicyStore merges the file defaults with the settings table and caches
// the result in redis.  Without redis every call reads the table.
type PolicyStore struct {
	base     config.PolicyDocument
	settings SettingsStore
	rdb      *redis.Client
	ttl      time.Duration
	log      *zap.Logger
}

func NewPolicyStore(base config.PolicyDocument, settings SettingsStore, rdb *redis.Client, ttl time.Duration, log *zap.Logger) *PolicyStore {
	return &PolicyStore{base: base, settings: settings, rdb: rdb, ttl: ttl, log: log.Named("policy")}
}

// Document returns the merged policy document.
func (s *PolicyStore) Document(ctx context.Context) (config.PolicyDocument, error) {
	if doc, ok := s.cached(ctx); ok {
		return doc, nil
	}
	overrides, err := s.settings.Overrides(ctx)
	if err != nil {
		return config.PolicyDocument{}, fmt.Errorf("load settings: %w", err)
	}
	doc, err := s.base.ApplyOverrides(overrides)
	if err != nil {
		return config.PolicyDocument{}, err
	}
	s.store(ctx, doc)
	return doc, nil
}

// Current returns the compiled policy.
func (s *PolicyStore) Current(ctx context.Context) (engine.Policy, error) {
	doc, err := s.Document(ctx)
	if err != nil {
		return engine.Policy{}, err
	}
	p, err := doc.Compile()
	if err != nil {
		return engine.Policy{}, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	return p, nil
}

// Update validates the overrides against the current document, persists
// them and drops the cached copy.  A document that would not compile is
// refused with ErrInvalidPolicy and nothing is written.
func (s *PolicyStore) Update(ctx context.Context, values map[string]json.RawMessage) (config.PolicyDocument, error) {
	current, err := s.Document(ctx)
	if err != nil {
		return config.PolicyDocument{}, err
	}
	next, err := current.ApplyOverrides(values)
	if err != nil {
		return config.PolicyDocument{}, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	if _, err := next.Compile(); err != nil {
		return config.PolicyDocument{}, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	if err := s.settings.UpsertMany(ctx, values); err != nil {
		return config.PolicyDocument{}, fmt.Errorf("save settings: %w", err)
	}
	s.invalidate(ctx)
	return next, nil
}

func (s *PolicyStore) cached(ctx context.Context) (config.PolicyDocument, bool) {
	if s.rdb == nil {
		return config.PolicyDocument{}, false
	}
	raw, err := s.rdb.Get(ctx, PolicyCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn("policy cache read failed", zap.Error(err))
		}
		return config.PolicyDocument{}, false
	}
	var doc config.PolicyDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		s.log.Warn("policy cache entry unreadable", zap.Error(err))
		return config.PolicyDocument{}, false
	}
	return doc, true
}

func (s *PolicyStore) store(ctx context.Context, doc config.PolicyDocument) {
	if s.rdb == nil {
		return
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, PolicyCacheKey, raw, s.ttl).Err(); err != nil {
		s.log.Warn("policy cache write failed", zap.Error(err))
	}
}

func (s *PolicyStore) invalidate(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, PolicyCacheKey).Err(); err != nil {
		s.log.Warn("policy cache invalidation failed", zap.Error(err))
	}
}
