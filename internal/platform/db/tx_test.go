package db

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

func TestRetrySerializableRerunsOnConflict(t *testing.T) {
	conflict := fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"})
	calls := 0
	err := retrySerializable(context.Background(), func() error {
		calls++
		if calls < 2 {
			return conflict
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestRetrySerializableGivesUp(t *testing.T) {
	calls := 0
	err := retrySerializable(context.Background(), func() error {
		calls++
		return &pgconn.PgError{Code: "40P01"}
	})
	if !IsSerializationFailure(err) {
		t.Fatalf("expected serialization failure, got %v", err)
	}
	if calls != maxTxAttempts {
		t.Fatalf("expected %d attempts, got %d", maxTxAttempts, calls)
	}
}

func TestRetrySerializableKeepsOtherErrors(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505"}
	plain := errors.New("boom")
	for _, want := range []error{unique, plain} {
		calls := 0
		err := retrySerializable(context.Background(), func() error {
			calls++
			return want
		})
		if !errors.Is(err, want) || calls != 1 {
			t.Fatalf("expected single attempt returning %v, got %v after %d", want, err, calls)
		}
	}
}

func TestApplyPoolOptions(t *testing.T) {
	config, err := pgxpool.ParseConfig("postgres://u:p@localhost:5432/db?pool_max_conns=4")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	applyPoolOptions(config, PoolOptions{})
	if config.MaxConns != 4 {
		t.Fatalf("zero options must keep DSN value, got %d", config.MaxConns)
	}
	applyPoolOptions(config, PoolOptions{MaxConns: 20, MinConns: 50, MaxConnLifetime: time.Minute})
	if config.MaxConns != 20 || config.MinConns != 20 || config.MaxConnLifetime != time.Minute {
		t.Fatalf("unexpected pool config: max=%d min=%d life=%v", config.MaxConns, config.MinConns, config.MaxConnLifetime)
	}
}
