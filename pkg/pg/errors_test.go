package pg_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/invoicely/pkg/pg"
)

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	dup := &pgconn.PgError{Code: "23505", ConstraintName: "invoices_slug_key"}
	fk := &pgconn.PgError{Code: "23503"}

	t.Run("duplicate key", func(t *testing.T) {
		t.Parallel()
		assert.True(t, pg.IsDuplicateKeyError(dup))
		assert.True(t, pg.IsDuplicateKeyError(fmt.Errorf("insert: %w", dup)))
		assert.False(t, pg.IsDuplicateKeyError(fk))
		assert.False(t, pg.IsDuplicateKeyError(nil))
	})

	t.Run("constraint name", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "invoices_slug_key", pg.ConstraintName(errors.Join(errors.New("ctx"), dup)))
		assert.Empty(t, pg.ConstraintName(errors.New("plain")))
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		assert.True(t, pg.IsNotFoundError(fmt.Errorf("get: %w", pgx.ErrNoRows)))
		assert.False(t, pg.IsNotFoundError(nil))
	})

	t.Run("foreign key", func(t *testing.T) {
		t.Parallel()
		assert.True(t, pg.IsForeignKeyViolationError(fk))
		assert.False(t, pg.IsForeignKeyViolationError(dup))
	})
}

func TestConnect(t *testing.T) {
	t.Parallel()

	t.Run("empty connection string", func(t *testing.T) {
		t.Parallel()
		_, err := pg.Connect(context.Background(), pg.Config{})
		assert.ErrorIs(t, err, pg.ErrEmptyConnectionString)
	})

	t.Run("invalid connection string", func(t *testing.T) {
		t.Parallel()
		_, err := pg.Connect(context.Background(), pg.Config{ConnectionString: "postgres://%zz"})
		assert.ErrorIs(t, err, pg.ErrFailedToParseDBConfig)
	})
}

func TestMigrateRequiresFS(t *testing.T) {
	t.Parallel()
	err := pg.Migrate(context.Background(), nil, nil, pg.Config{}, nil)
	assert.ErrorIs(t, err, pg.ErrMigrationsNotProvided)
}
