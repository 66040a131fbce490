// package apperrors defines the sentinel errors shared across layers.
// Callers match them with errors.Is after the usual %w wrapping.
package apperrors

import "errors"

var (
	ErrNotFound = errors.New("resource not found")

	ErrUnparsable    = errors.New("response is not valid JSON")
	ErrEmptyResponse = errors.New("empty model response")
	ErrQuotaExceeded = errors.New("model quota exceeded")

	ErrEnrichmentFailed = errors.New("enrichment failed")
	ErrAbandoned        = errors.New("enrichment abandoned after retry cap")
)
