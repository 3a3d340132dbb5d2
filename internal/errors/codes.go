// Package errors provides structured error handling for the PKMS search engine.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Index store errors
//   - 3XX: Synchronizer errors
//   - 4XX: Query errors
//   - 5XX: Cache errors
//   - 9XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIndex indicates inverted-index and document-store errors.
	CategoryIndex Category = "INDEX"
	// CategorySync indicates index synchronization errors.
	CategorySync Category = "SYNC"
	// CategoryQuery indicates query validation and execution errors.
	CategoryQuery Category = "QUERY"
	// CategoryCache indicates result-cache errors.
	CategoryCache Category = "CACHE"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Index errors (200-299)
	ErrCodeIndexUnavailable = "ERR_201_INDEX_UNAVAILABLE"
	ErrCodeIndexCorrupt     = "ERR_202_INDEX_CORRUPT"
	ErrCodeIndexClosed      = "ERR_203_INDEX_CLOSED"
	ErrCodeIndexTimeout     = "ERR_204_INDEX_TIMEOUT"
	ErrCodeDocumentNotFound = "ERR_205_DOCUMENT_NOT_FOUND"
	ErrCodeIndexLocked      = "ERR_206_INDEX_LOCKED"

	// Sync errors (300-399)
	ErrCodeSyncFailure     = "ERR_301_SYNC_FAILURE"
	ErrCodeSyncUnknownType = "ERR_302_SYNC_UNKNOWN_TYPE"
	ErrCodeTagFetchFailure = "ERR_303_TAG_FETCH_FAILURE"

	// Query errors (400-499)
	ErrCodeMalformedQuery = "ERR_401_MALFORMED_QUERY"
	ErrCodeQueryTooShort  = "ERR_402_QUERY_TOO_SHORT"
	ErrCodeInvalidFilter  = "ERR_403_INVALID_FILTER"

	// Cache errors (500-599)
	ErrCodeCacheUnavailable = "ERR_501_CACHE_UNAVAILABLE"
	ErrCodeCacheEncoding    = "ERR_502_CACHE_ENCODING"

	// Internal errors (900-999)
	ErrCodeInternal = "ERR_901_INTERNAL"
)

// categoryFromCode derives the category from a code's number range.
func categoryFromCode(code string) Category {
	if len(code) < 5 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIndex
	case '3':
		return CategorySync
	case '4':
		return CategoryQuery
	case '5':
		return CategoryCache
	default:
		return CategoryInternal
	}
}

// severityFromCode derives the severity from the code.
// Cache errors degrade to the local tier, so they are warnings.
func severityFromCode(code string) Severity {
	switch categoryFromCode(code) {
	case CategoryCache:
		return SeverityWarning
	case CategoryConfig:
		return SeverityFatal
	default:
		return SeverityError
	}
}

// retryableCodes are codes for transient conditions worth retrying.
var retryableCodes = map[string]bool{
	ErrCodeIndexTimeout:     true,
	ErrCodeCacheUnavailable: true,
	ErrCodeIndexLocked:      true,
}

// isRetryableCode reports whether a code is transient.
func isRetryableCode(code string) bool {
	return retryableCodes[code]
}
