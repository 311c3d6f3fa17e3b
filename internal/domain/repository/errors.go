package repository

import "errors"

var (
	// ErrNotFound indica que el recurso solicitado no existe.
	ErrNotFound = errors.New("not found")

	// ErrConflict indica un duplicado o violación de constraint, incluyendo
	// el fallo de un update condicional (compare-and-swap).
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indica datos de entrada inválidos para el driver.
	ErrInvalidInput = errors.New("invalid input")
)

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict verifica si el error es ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
