package leads

import "errors"

// Validation failures. Handlers map these to 400 responses.
var (
	ErrInvalidName     = errors.New("name is required")
	ErrMissingContact  = errors.New("either email or phone is required")
	ErrMissingFacility = errors.New("facility type is required")
)

// ErrLeadNotFound is returned by repositories for unknown IDs.
var ErrLeadNotFound = errors.New("lead not found")
