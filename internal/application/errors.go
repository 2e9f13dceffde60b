package application

import (
	stderrors "errors"

	"github.com/wms-platform/roadmap-service/internal/domain"
	"github.com/wms-platform/roadmap-service/pkg/errors"
)

// domainAppError maps domain errors to AppErrors. It returns nil for errors
// the domain does not define, which callers treat as infrastructure
// failures.
func domainAppError(err error, validationMessage string) *errors.AppError {
	if fields, ok := domain.ValidationFields(err); ok {
		return errors.ErrValidationWithFields(validationMessage, fields).Wrap(err)
	}

	switch {
	case stderrors.Is(err, domain.ErrInvalidTransition):
		return errors.ErrInvalidTransition(err.Error()).Wrap(err)
	case stderrors.Is(err, domain.ErrStageNotFound):
		return errors.ErrNotFound("stage").Wrap(err)
	case stderrors.Is(err, domain.ErrVersionConflict):
		return errors.ErrConflict("roadmap was modified concurrently, retry the request").Wrap(err)
	case stderrors.Is(err, domain.ErrTaskExists):
		return errors.ErrConflict("tasks were generated concurrently, retry the request").Wrap(err)
	case stderrors.Is(err, domain.ErrTemplateReferenced):
		return errors.ErrConflict(err.Error()).Wrap(err)
	case stderrors.Is(err, domain.ErrNotPermitted):
		return errors.ErrForbidden(err.Error()).Wrap(err)
	}
	return nil
}
