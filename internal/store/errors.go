package store

import (
	"errors"

	"geo-bknd/internal/apperr"
)

// SQLSTATE codes the store maps onto apperr kinds.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

const constraintDateRange = "projects_date_range_check"

type phase int

const (
	phaseProject phase = iota
	phaseFeatures
)

// pgError is satisfied by pgdriver.Error.
type pgError interface {
	error
	Field(k byte) string
}

func isForeignKeyViolation(err error) bool {
	var pgErr pgError
	return errors.As(err, &pgErr) && pgErr.Field('C') == codeForeignKeyViolation
}

// translate maps a Postgres error onto an apperr kind. Any driver error raised
// while writing feature rows is taken as the engine rejecting the geometry.
// Other errors pass through unchanged.
func translate(err error, p phase) error {
	if err == nil {
		return nil
	}

	var pgErr pgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Field('C') {
	case codeUniqueViolation, codeForeignKeyViolation:
		return apperr.Conflict(err, "project already exists")
	case codeCheckViolation:
		if pgErr.Field('n') == constraintDateRange {
			return apperr.DateRangeInvalid(err)
		}
		return apperr.Malformed(err, "document rejected by storage")
	}

	if p == phaseFeatures {
		return apperr.Malformed(err, "geometry rejected by storage")
	}
	return err
}
