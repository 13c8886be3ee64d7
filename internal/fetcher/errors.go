package fetcher

import (
	"errors"
	"fmt"
)

// ErrStatus marks a response that arrived with a non-2xx status.
var ErrStatus = errors.New("unexpected status")

type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %d %s", e.Code, e.Status)
}

func (e *StatusError) Unwrap() error {
	return ErrStatus
}
