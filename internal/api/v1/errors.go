package v1

import (
	ierr "github.com/numbrly/portal/internal/errors"
)

// invalidRequest marks a binding failure so the error handler renders a 400
func invalidRequest(err error, hint string) error {
	return ierr.WithError(err).
		WithHint(hint).
		Mark(ierr.ErrValidation)
}
