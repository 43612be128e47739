// Package errors provides structured error handling for the dialogue pipeline.
//
// Every failure mode of the pipeline maps to an ErrorCode within an
// ErrorCategory, and the category decides retry semantics: a generator
// failure is retryable, a stale-version save conflict is not, corrupted
// persisted state is internal and triggers a reset to config defaults
// rather than a retry.
//
// Errors carry optional (user, character) identifiers so the orchestrator
// and logs can attribute a failure to one conversation without parsing
// message strings.
//
// Typical usage:
//
//	if err := repo.Save(ctx, userID, charID, state); err != nil {
//		return errors.WrapWithCode(err, errors.ErrCodeConflict,
//			"saving memory state", errors.WithUserID(userID))
//	}
//
// Use CodeOf and IsRetryable at decision points instead of string matching.
package errors
