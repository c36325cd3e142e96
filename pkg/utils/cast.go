package utils

import (
	"errors"
	"fmt"
)

var ErrNilValue = errors.New("cast: nil value")

// type assertion failed on a value from an untyped source, e.g. sync.Map or a validator field
type CastError struct {
	Got  string
	Want string
}

func (e *CastError) Error() string {
	return fmt.Sprintf("cast: got %s, want %s", e.Got, e.Want)
}

func SafeCast[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, ErrNilValue
	}

	cast, ok := v.(T)
	if !ok {
		return zero, &CastError{Got: fmt.Sprintf("%T", v), Want: fmt.Sprintf("%T", zero)}
	}
	return cast, nil
}
