package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hongminglow/account-service/internal/account"
	"github.com/hongminglow/account-service/internal/http/respond"
)

// writeError maps account errors onto HTTP statuses. Anything else is logged and reported as a 500.
func writeError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	var accountErr *account.Error
	if errors.As(err, &accountErr) {
		respond.Fail(w, statusFor(accountErr.Kind), accountErr.Code, accountErr.Message)
		return
	}
	logger.Error(op+" failed", zap.Error(err))
	respond.Error(w, http.StatusInternalServerError, "internal server error")
}

// writeBindError reports a body that could not be decoded.
func writeBindError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		respond.Error(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	respond.Error(w, http.StatusBadRequest, err.Error())
}

func statusFor(kind account.Kind) int {
	switch kind {
	case account.KindValidation, account.KindToken:
		return http.StatusBadRequest
	case account.KindNotFound:
		return http.StatusNotFound
	case account.KindConflict:
		return http.StatusConflict
	case account.KindAuth:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
