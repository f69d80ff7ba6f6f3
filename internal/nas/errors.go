package nas

import "errors"

// Sentinel errors returned by constructors and genotype extraction.
var (
	// ErrInvalidConfig is returned when a network or cell configuration is inconsistent.
	ErrInvalidConfig = errors.New("nas: invalid configuration")

	// ErrUnknownPrimitive is returned when an operation name is not registered.
	ErrUnknownPrimitive = errors.New("nas: unknown primitive")

	// ErrWeightsShape is returned when architecture weights do not match [k, numOps].
	ErrWeightsShape = errors.New("nas: architecture weights have wrong shape")
)
