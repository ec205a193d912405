package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shaiso/randomcoffee/internal/domain"
	"github.com/shaiso/randomcoffee/internal/repo"
)

// ErrorCode — машиночитаемый код ошибки в теле ответа.
type ErrorCode string

const (
	ErrCodeBadRequest               ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound                 ErrorCode = "NOT_FOUND"
	ErrCodeInsufficientParticipants ErrorCode = "INSUFFICIENT_PARTICIPANTS"
	ErrCodeInvariantViolation       ErrorCode = "INVARIANT_VIOLATION"
	ErrCodeInternalError            ErrorCode = "INTERNAL_ERROR"
)

// ErrorResponse — тело ответа с ошибкой: {"error": {"code", "message"}}.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail — код и текст ошибки.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// DataResponse — одиночный объект: lease, цикл, preview.
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse — список (scope, циклы, история) и его размер.
type ListResponse struct {
	Data  any `json:"data"`
	Total int `json:"total,omitempty"`
}

// JSON пишет status и data как JSON.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Success — 200 с {"data": ...}.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, DataResponse{Data: data})
}

// List — 200 с {"data": [...], "total": n}.
func List(w http.ResponseWriter, data any, total int) {
	JSON(w, http.StatusOK, ListResponse{Data: data, Total: total})
}

// Error пишет ErrorResponse.
func Error(w http.ResponseWriter, status int, code ErrorCode, message string) {
	JSON(w, status, ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message},
	})
}

// BadRequest — 400: неверные параметры запроса.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// NotFound — 404: неизвестный scope, цикл или нет lease.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// InsufficientParticipants — 422: в roster меньше двух участников.
// Для планировщика это штатный исход, для preview — нечего показать.
func InsufficientParticipants(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnprocessableEntity, ErrCodeInsufficientParticipants, message)
}

// InternalError — 500. Детали уходят только в лог.
func InternalError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	logger.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}

// HandleError отвечает на ошибку хранилища или pairing.Engine.
// Возвращает true, если ошибка была и ответ уже обработан.
//
//   - repo.ErrNotFound                  → 404 с notFoundMsg
//   - domain.ErrInsufficientParticipants → 422
//   - domain.ErrInvariantViolation       → 500 INVARIANT_VIOLATION (ошибка engine)
//   - клиент отключился                 → ответ не пишется
//   - прочее (БД недоступна)            → 500
func HandleError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, notFoundMsg string) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, repo.ErrNotFound):
		if notFoundMsg == "" {
			notFoundMsg = "not found"
		}
		NotFound(w, notFoundMsg)

	case errors.Is(err, domain.ErrInsufficientParticipants):
		InsufficientParticipants(w, domain.ErrInsufficientParticipants.Error())

	case errors.Is(err, domain.ErrInvariantViolation):
		logger.Error("pairing invariant violated", "path", r.URL.Path, "error", err)
		Error(w, http.StatusInternalServerError, ErrCodeInvariantViolation, "pairing produced an invalid partition")

	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		logger.Debug("client went away", "path", r.URL.Path)

	default:
		InternalError(w, r, logger, err)
	}
	return true
}
