package services

import (
	"errors"
	"fmt"

	"paper-shelf/storage"
)

// ValidationError wird an den Absender zurückgegeben; es wurde nichts gespeichert.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NotFoundError: Bearbeiten/Umschalten für eine unbekannte ID.
type NotFoundError struct {
	ID uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("paper %d not found", e.ID)
}

func (e *NotFoundError) Unwrap() error { return storage.ErrNotFound }

// IsValidation meldet, ob err ein ValidationError ist.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound meldet, ob err auf eine fehlende ID zurückgeht.
func IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}

func translateStoreErr(err error, id uint) error {
	if errors.Is(err, storage.ErrNotFound) {
		return &NotFoundError{ID: id}
	}
	return err
}
