package services

import "errors"

var (
	// ErrInvalidInput is returned when a request carries no usable message text
	ErrInvalidInput = errors.New("invalid input")

	// ErrClassifierUnavailable wraps every failure of the hosted classification model
	ErrClassifierUnavailable = errors.New("classifier unavailable")

	// ErrUpstreamUnavailable wraps transport-level failures reaching the text generation endpoint
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
