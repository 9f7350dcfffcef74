package interfaces

import "errors"

// Common interface errors used across components
var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrStoreClosed      = errors.New("store is closed")
)
