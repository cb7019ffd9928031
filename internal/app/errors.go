package app

import (
	"fmt"
	"net/http"

	"safetycheck/api/internal/checklist"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// validationError carries one entry per offending field, keyed by path
// ("section1.q11_foto_pdst").
func validationError(fields []checklist.FieldError) *DomainError {
	return domainError(http.StatusBadRequest, "VALIDATION_ERROR", "Dados inválidos", map[string]any{"fields": fields})
}

func badRequest(code, message string) *DomainError {
	return domainError(http.StatusBadRequest, code, message, nil)
}

func ownershipError(message string) *DomainError {
	return domainError(http.StatusForbidden, "FORBIDDEN", message, nil)
}

func stateError(message string, details any) *DomainError {
	return domainError(http.StatusConflict, "INVALID_STATE", message, details)
}

func notFound(message string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", message, nil)
}

func transactionFailure() *DomainError {
	return domainError(http.StatusInternalServerError, "TRANSACTION_FAILED", "Não foi possível salvar a inspeção. Tente novamente.", nil)
}
