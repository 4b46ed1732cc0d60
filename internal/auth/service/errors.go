package service

import (
	"errors"

	"github.com/aussiebroadwan/parish/internal/auth/domain"
	"github.com/aussiebroadwan/parish/internal/auth/store"
)

// notFound turns store.ErrNotFound into a domain error naming the entity.
// Any other error passes through.
func notFound(err error, entity string, id any) error {
	if errors.Is(err, store.ErrNotFound) {
		return domain.Wrap(domain.NotFound(entity, id), err)
	}
	return err
}

// conflict turns store.ErrAlreadyExists into a domain error naming the field.
func conflict(err error, field string, value any) error {
	if errors.Is(err, store.ErrAlreadyExists) {
		return domain.Wrap(domain.AlreadyExists(field, value), err)
	}
	return err
}
