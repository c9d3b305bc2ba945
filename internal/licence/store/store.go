// Package store persists licence aggregates. Two implementations share one
// interface: an in-memory store for unit tests and local runs, and a
// PostgreSQL store for production.
package store

import (
	"context"

	"cvl/internal/licence/models"
	"cvl/pkg/domain"
)

// Store is the persistence port for licence rows.
//
// Errors: implementations return sentinel.ErrNotFound for missing rows and
// sentinel.ErrStaleStatus when a guarded update finds the row's status
// changed since it was read.
type Store interface {
	// Create persists a new licence and assigns its ID.
	Create(ctx context.Context, licence *models.Licence) error

	GetByID(ctx context.Context, id domain.LicenceID) (*models.Licence, error)

	// Update overwrites the row unconditionally. Workflow transitions should
	// go through UpdateIfStatus instead so concurrent jobs cannot clobber
	// each other.
	Update(ctx context.Context, licence *models.Licence) error

	// UpdateIfStatus overwrites the row only while its persisted status still
	// equals expected. Returns sentinel.ErrStaleStatus otherwise.
	UpdateIfStatus(ctx context.Context, licence *models.Licence, expected models.LicenceStatus) error

	// FindByStatusIn returns every licence currently in one of the given
	// statuses, ordered by id.
	FindByStatusIn(ctx context.Context, statuses ...models.LicenceStatus) ([]*models.Licence, error)

	// FindByNomisIDs returns all licences for the given people, any status.
	FindByNomisIDs(ctx context.Context, nomisIDs []domain.NomisID) ([]*models.Licence, error)

	FindByCRN(ctx context.Context, crn domain.CRN) ([]*models.Licence, error)

	// ListIDsBefore pages licence ids in descending order, returning up to
	// limit ids strictly below cursor. Cursor zero means "start from the top".
	// New rows created mid-scan get higher ids and are never visited, which
	// keeps a resumable sweep from chasing its own tail.
	ListIDsBefore(ctx context.Context, cursor domain.LicenceID, limit int) ([]domain.LicenceID, error)
}
