package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	appErrors "github.com/noah-isme/classpal-api/pkg/errors"
)

// maxCommandAttempts bounds how often a command re-reads and re-validates an
// entity after losing a version race.
const maxCommandAttempts = 3

var errVersionConflict = errors.New("version conflict")

// retryOnConflict runs attempt until it returns anything other than
// errVersionConflict. Each attempt must re-read the entity so a lost race is
// re-validated against the winner's state (a concurrent borrow then fails with
// ASSET_UNAVAILABLE rather than a bare conflict).
func retryOnConflict(ctx context.Context, entityID string, attempt func() error) error {
	for i := 0; i < maxCommandAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := attempt()
		if !errors.Is(err, errVersionConflict) {
			return err
		}
	}
	return appErrors.ForEntity(appErrors.ErrConflict, entityID)
}

// commitError maps a store write error: sql.ErrNoRows means the version check
// failed.
func commitError(err error, message string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errVersionConflict
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// lookupError maps a store read error to NOT_FOUND or INTERNAL_ERROR.
func lookupError(err error, entityID, notFoundMessage, internalMessage string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.ForEntity(appErrors.Clone(appErrors.ErrNotFound, notFoundMessage), entityID)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internalMessage)
}

func internalError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func validationError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

// clock supplies the current time to services; tests replace it.
type clock struct {
	now func() time.Time
}

// Now returns the current UTC time.
func (c *clock) Now() time.Time {
	if c.now == nil {
		return time.Now().UTC()
	}
	return c.now().UTC()
}

// SetClock overrides the time source.
func (c *clock) SetClock(now func() time.Time) {
	c.now = now
}

func ptr[T any](v T) *T {
	return &v
}
