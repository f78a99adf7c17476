package database

import (
	"errors"

	"github.com/lib/pq"
	"github.com/safar/order-engine/internal/apperr"
)

type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
)

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeNotNullViolation     = "23502"
	codeCheckViolation       = "23514"
)

func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeSerializationFailure:
			return ErrorClassSerialization
		case codeDeadlockDetected:
			return ErrorClassDeadlock
		case codeLockNotAvailable:
			return ErrorClassTransient
		}
	}

	return ErrorClassPermanent
}

func IsRetryable(err error) bool {
	class := ClassifyError(err)
	return class == ErrorClassTransient ||
		class == ErrorClassDeadlock ||
		class == ErrorClassSerialization
}

// TranslateError surfaces integrity violations as apperr conflicts. Domain
// errors and everything else pass through unchanged.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch pqErr.Code {
	case codeUniqueViolation:
		return apperr.Conflict("resource already exists", err)
	case codeForeignKeyViolation:
		return apperr.Conflict("resource is referenced by other records", err)
	case codeCheckViolation:
		return apperr.Conflict("constraint violated", err)
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return apperr.Conflict("concurrent update, try again", err)
	}

	return err
}
