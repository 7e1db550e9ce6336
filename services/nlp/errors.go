package nlp

import (
	"errors"
	"fmt"
)

// ErrProcessingFailed matches every error returned by Client.Process
var ErrProcessingFailed = errors.New("NLP processing failed")

// ServiceError is a structured error returned by the NLP service
type ServiceError struct {
	StatusCode int
	Detail     string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", ErrProcessingFailed, e.Detail)
}

func (e *ServiceError) Unwrap() error { return ErrProcessingFailed }

// UnavailableError means no response was received (refused, reset, timeout)
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: NLP service unavailable or not responding (%v)", ErrProcessingFailed, e.Err)
}

func (e *UnavailableError) Unwrap() []error { return []error{ErrProcessingFailed, e.Err} }

// ConfigError means the request could not be built or the reply could not be read
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %v", ErrProcessingFailed, e.Err)
}

func (e *ConfigError) Unwrap() []error { return []error{ErrProcessingFailed, e.Err} }
