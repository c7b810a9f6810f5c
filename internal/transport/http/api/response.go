package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"intranet/internal/domain/apperr"
)

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type Envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     *Error `json:"error,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("write json failed", "err", err)
	}
}

func Success(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusOK, Envelope{Success: true, Data: data, RequestID: requestID})
}

func Created(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusCreated, Envelope{Success: true, Data: data, RequestID: requestID})
}

func Fail(w http.ResponseWriter, status int, code, message, requestID string) {
	WriteJSON(w, status, Envelope{Success: false, Error: &Error{Code: code, Message: message}, RequestID: requestID})
}

func FailWithDetails(w http.ResponseWriter, status int, code, message string, details any, requestID string) {
	WriteJSON(w, status, Envelope{Success: false, Error: &Error{Code: code, Message: message, Details: details}, RequestID: requestID})
}

// FailErr answers with the status and code of an engine error. Internal
// errors are logged and their message is not exposed.
func FailErr(w http.ResponseWriter, err error, requestID string) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "err", err, "requestId", requestID)
		Fail(w, status, apperr.Code(err), "internal error", requestID)
		return
	}

	var balanceErr *apperr.InsufficientBalanceError
	if errors.As(err, &balanceErr) {
		FailWithDetails(w, status, apperr.Code(err), err.Error(), map[string]any{
			"available": balanceErr.Available,
			"requested": balanceErr.Requested,
			"shortfall": balanceErr.Shortfall(),
		}, requestID)
		return
	}
	var validationErr *apperr.ValidationError
	if errors.As(err, &validationErr) && validationErr.Field != "" {
		FailWithDetails(w, status, apperr.Code(err), err.Error(), map[string]any{"field": validationErr.Field}, requestID)
		return
	}
	Fail(w, status, apperr.Code(err), err.Error(), requestID)
}
