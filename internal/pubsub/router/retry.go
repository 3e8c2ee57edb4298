package router

import (
	"net"
	"net/http"

	"github.com/numbrly/portal/internal/errors"
	"github.com/numbrly/portal/internal/httpclient"
	"github.com/numbrly/portal/internal/logger"
)

func shouldRetry(logger *logger.Logger, err error) bool {
	if httpErr, ok := httpclient.IsHTTPError(err); ok {
		switch httpErr.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			logger.Debugw("retrying due to HTTP error",
				"status_code", httpErr.StatusCode,
				"error", httpErr,
			)
			return true
		}
		logger.Debugw("non-retryable HTTP error",
			"status_code", httpErr.StatusCode,
			"error", httpErr,
		)
		return false
	}

	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		logger.Debugw("retrying due to network timeout", "error", netErr)
		return true
	}

	// a malformed message or a refund that can never apply stays broken
	if errors.IsValidation(err) ||
		errors.IsNotFound(err) ||
		errors.IsInsufficientFunds(err) {
		return false
	}

	return true
}
