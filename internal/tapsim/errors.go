package tapsim

import "errors"

// Sentinel errors for scenario runs.
var (
	ErrInvalidConfig  = errors.New("invalid tapsim config")
	ErrServiceDown    = errors.New("service health check failed")
	ErrScenarioFailed = errors.New("scenario failed")
)
