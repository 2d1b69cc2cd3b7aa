// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cozytiny/internal/models"
	"cozytiny/internal/observability"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// instrument bundles the tracing, latency and logging hooks shared by repositories.
type instrument struct {
	table  string
	system string
	log    *observability.RepoLogger
}

func newInstrument(db *gorm.DB, table string) instrument {
	system := "unknown"
	if db != nil && db.Dialector != nil {
		system = db.Dialector.Name()
	}
	return instrument{table: table, system: system, log: observability.NewRepoLogger(table)}
}

// begin starts a span and latency timer; the returned func must be called with the final error.
func (i instrument) begin(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := observability.TraceRepositoryMethod(ctx, i.system, op, i.table)
	done := observability.TrackQuery(op, i.table)
	return ctx, func(err error) {
		done()
		if err != nil && models.ErrorCode(err) == models.CodeStorage {
			i.log.LogError(ctx, err, op)
		}
		observability.EndSpan(span, err)
	}
}

// translateError maps driver and ORM errors onto the domain taxonomy.
// AppErrors pass through unchanged.
func translateError(err error, resource string, id interface{}) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.NewNotFoundError(resource, id)
	case errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err):
		return models.NewConflictError(fmt.Sprintf("%s already exists", resource), err)
	case errors.Is(err, gorm.ErrForeignKeyViolated) || isForeignKeyViolation(err):
		return models.NewNotFoundError("Post", id)
	default:
		return models.NewStorageError(err)
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "Duplicate entry")
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
