package common

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// DBError is returned when a write of a business record fails. Message,
// Details, Hint and Code are copied from the Postgres error when the driver
// provides one.
type DBError struct {
	Op      string
	Message string
	Details string
	Hint    string
	Code    string
	Err     error
}

func (e *DBError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code %s)", e.Op, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *DBError) Unwrap() error { return e.Err }

// NewDBError wraps err for operation op. A nil err yields nil.
func NewDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *DBError
	if errors.As(err, &existing) {
		return err
	}
	if errors.Is(err, ErrorNotFound) {
		return err
	}

	e := &DBError{Op: op, Message: err.Error(), Err: err}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		e.Message = pgErr.Message
		e.Details = pgErr.Detail
		e.Hint = pgErr.Hint
		e.Code = pgErr.Code
	}
	return e
}

// UploadError reports a failed object-store upload.
type UploadError struct {
	Bucket string
	Name   string
	Err    error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s/%s: %v", e.Bucket, e.Name, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }
