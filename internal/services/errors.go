package services

import (
	"errors"
	"fmt"
)

// Common service errors
var (
	ErrNotFound        = errors.New("registro no encontrado")
	ErrInvalidPassword = errors.New("contraseña inválida")
	ErrUnauthorized    = errors.New("no autorizado")
	ErrInvalidState    = errors.New("transición de estado inválida")
	ErrDuplicate       = errors.New("registro duplicado")
)

// ValidationError reports a business rule violation on user input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// InsufficientBalanceError reports that the source line lacks capacity
// on one co-funding component for the requested transfer.
type InsufficientBalanceError struct {
	Component string
	Available float64
	Requested float64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("saldo insuficiente en componente %s: disponible %.2f, solicitado %.2f",
		e.Component, e.Available, e.Requested)
}

// NegativeResultError reports that applying a movement would leave a
// line with a negative balance. It is the last defense after the
// capacity check, both run inside the same transaction.
type NegativeResultError struct {
	Component string
	LineID    uint
	Result    float64
}

func (e *NegativeResultError) Error() string {
	return fmt.Sprintf("la operación dejaría la línea %d con saldo negativo en %s: %.2f",
		e.LineID, e.Component, e.Result)
}
