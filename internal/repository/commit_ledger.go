package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloud-wave-best-zizon/pharmacy-pos/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	ledgerKeyPrefix  = "dispensation:"
	defaultLedgerTTL = 24 * time.Hour
)

const (
	entryPending   = "pending"
	entryCommitted = "committed"
)

// ledgerEntry is the JSON value stored under each key.
type ledgerEntry struct {
	State        string                     `json:"state"`
	PendingSince time.Time                  `json:"pending_since,omitempty"`
	Record       *domain.DispensationRecord `json:"record,omitempty"`
}

// CommitLedger tracks each idempotency key from the moment its request is
// issued until the dispensation record it produced is known. Entries expire
// after ttl.
type CommitLedger struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCommitLedger(client *redis.Client, ttl time.Duration) *CommitLedger {
	if ttl <= 0 {
		ttl = defaultLedgerTTL
	}
	return &CommitLedger{client: client, ttl: ttl}
}

// Reserve writes a pending marker for key unless one exists. For a new key
// it returns a fresh mark; otherwise it returns what the earlier attempt left.
func (l *CommitLedger) Reserve(ctx context.Context, idempotencyKey string, at time.Time) (domain.CommitMark, error) {
	raw, err := json.Marshal(ledgerEntry{State: entryPending, PendingSince: at.UTC()})
	if err != nil {
		return domain.CommitMark{}, fmt.Errorf("failed to encode ledger entry: %w", err)
	}

	ok, err := l.client.SetNX(ctx, ledgerKeyPrefix+idempotencyKey, raw, l.ttl).Result()
	if err != nil {
		return domain.CommitMark{}, fmt.Errorf("failed to reserve ledger entry: %w", err)
	}
	if ok {
		return domain.CommitMark{}, nil
	}

	entry, err := l.get(ctx, idempotencyKey)
	if err != nil {
		return domain.CommitMark{}, err
	}
	if entry == nil {
		// expired between the two calls
		return domain.CommitMark{}, nil
	}
	if entry.State == entryCommitted && entry.Record != nil {
		return domain.CommitMark{Record: entry.Record}, nil
	}
	return domain.CommitMark{PendingSince: entry.PendingSince}, nil
}

// Remember replaces the pending marker with the committed record.
func (l *CommitLedger) Remember(ctx context.Context, idempotencyKey string, record *domain.DispensationRecord) error {
	raw, err := json.Marshal(ledgerEntry{State: entryCommitted, Record: record})
	if err != nil {
		return fmt.Errorf("failed to encode ledger entry: %w", err)
	}

	if err := l.client.Set(ctx, ledgerKeyPrefix+idempotencyKey, raw, l.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	return nil
}

// Release drops the marker of a request the collaborator definitively refused.
func (l *CommitLedger) Release(ctx context.Context, idempotencyKey string) error {
	if err := l.client.Del(ctx, ledgerKeyPrefix+idempotencyKey).Err(); err != nil {
		return fmt.Errorf("failed to release ledger entry: %w", err)
	}
	return nil
}

func (l *CommitLedger) get(ctx context.Context, idempotencyKey string) (*ledgerEntry, error) {
	raw, err := l.client.Get(ctx, ledgerKeyPrefix+idempotencyKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	var entry ledgerEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode ledger entry: %w", err)
	}
	return &entry, nil
}
