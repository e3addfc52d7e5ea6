package sheets

import "errors"

// ErrNotConfigured is returned when no webhook URL is set.
var ErrNotConfigured = errors.New("sheets: webhook not configured")
