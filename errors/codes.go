package errors

// ErrorCategory classifies errors by their nature and retry semantics.
type ErrorCategory string

// Error categories define how errors should be handled.
const (
	// CategoryTransient indicates temporary failures where retry may succeed.
	// Examples: generator timeouts, provider unavailability.
	CategoryTransient ErrorCategory = "transient"

	// CategoryPermanent indicates failures where retry will not help.
	// Examples: invalid config, unknown knowledge item, stale version write.
	CategoryPermanent ErrorCategory = "permanent"

	// CategoryResource indicates resource exhaustion or quota issues.
	// Examples: provider rate limiting, quota exceeded.
	CategoryResource ErrorCategory = "resource"

	// CategoryInternal indicates unexpected errors, bugs, or corrupted state.
	// Examples: persisted state failing validation, invariant violations.
	CategoryInternal ErrorCategory = "internal"
)

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// IsRetryable returns true if errors in this category may succeed on retry.
func (c ErrorCategory) IsRetryable() bool {
	switch c {
	case CategoryTransient, CategoryResource:
		return true
	default:
		return false
	}
}

// ErrorCode identifies specific error types within categories.
type ErrorCode string

// Error codes for pipeline failure scenarios.
const (
	// Transient errors
	ErrCodeTimeout          ErrorCode = "TIMEOUT"           // Operation timed out
	ErrCodeUnavailable      ErrorCode = "UNAVAILABLE"       // Collaborator temporarily unavailable
	ErrCodeGeneratorFailure ErrorCode = "GENERATOR_FAILURE" // Text generator call failed
	ErrCodeSynthesisFailure ErrorCode = "SYNTHESIS_FAILURE" // Speech synthesis failed for a segment

	// Permanent errors
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"      // Resource does not exist
	ErrCodeInvalidInput  ErrorCode = "INVALID_INPUT"  // Malformed or invalid input
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG" // Memory config failed validation
	ErrCodeParseError    ErrorCode = "PARSE_ERROR"    // Dialogue marker parsing failed
	ErrCodeScoringError  ErrorCode = "SCORING_ERROR"  // A knowledge item could not be scored
	ErrCodeCanceled      ErrorCode = "CANCELED"       // Operation was canceled
	ErrCodeConflict      ErrorCode = "CONFLICT"       // Stale write rejected by version check
	ErrCodeUnsupported   ErrorCode = "UNSUPPORTED"    // Operation not supported

	// Resource errors
	ErrCodeRateLimit ErrorCode = "RATE_LIMITED" // Provider rate limit exceeded

	// Internal errors
	ErrCodeInternal        ErrorCode = "INTERNAL"         // Unexpected internal error
	ErrCodeStateCorruption ErrorCode = "STATE_CORRUPTION" // Persisted memory state failed validation
)

// codeCategories maps each code to its default category.
var codeCategories = map[ErrorCode]ErrorCategory{
	ErrCodeTimeout:          CategoryTransient,
	ErrCodeUnavailable:      CategoryTransient,
	ErrCodeGeneratorFailure: CategoryTransient,
	ErrCodeSynthesisFailure: CategoryTransient,

	ErrCodeNotFound:      CategoryPermanent,
	ErrCodeInvalidInput:  CategoryPermanent,
	ErrCodeInvalidConfig: CategoryPermanent,
	ErrCodeParseError:    CategoryPermanent,
	ErrCodeScoringError:  CategoryPermanent,
	ErrCodeCanceled:      CategoryPermanent,
	ErrCodeConflict:      CategoryPermanent,
	ErrCodeUnsupported:   CategoryPermanent,

	ErrCodeRateLimit: CategoryResource,

	ErrCodeInternal:        CategoryInternal,
	ErrCodeStateCorruption: CategoryInternal,
}

// codeDescriptions provides human-readable default messages per code.
var codeDescriptions = map[ErrorCode]string{
	ErrCodeTimeout:          "operation timed out",
	ErrCodeUnavailable:      "collaborator temporarily unavailable",
	ErrCodeGeneratorFailure: "text generator call failed",
	ErrCodeSynthesisFailure: "speech synthesis failed",
	ErrCodeNotFound:         "resource not found",
	ErrCodeInvalidInput:     "invalid input",
	ErrCodeInvalidConfig:    "invalid memory configuration",
	ErrCodeParseError:       "dialogue parsing failed",
	ErrCodeScoringError:     "knowledge item scoring failed",
	ErrCodeCanceled:         "operation canceled",
	ErrCodeConflict:         "version conflict on save",
	ErrCodeUnsupported:      "operation not supported",
	ErrCodeRateLimit:        "rate limit exceeded",
	ErrCodeInternal:         "internal error",
	ErrCodeStateCorruption:  "persisted state failed validation",
}

// DefaultCategory returns the default category for a code.
// Unknown codes map to CategoryInternal.
func (c ErrorCode) DefaultCategory() ErrorCategory {
	if cat, ok := codeCategories[c]; ok {
		return cat
	}
	return CategoryInternal
}

// Description returns the default human-readable message for a code.
func (c ErrorCode) Description() string {
	if d, ok := codeDescriptions[c]; ok {
		return d
	}
	return string(c)
}
