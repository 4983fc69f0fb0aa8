// Package errors provides structured error handling for the credit engine.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Action validation errors
	CodeActionInvalidKind      Code = "ACTION_INVALID_KIND"
	CodeActionSelfTarget       Code = "ACTION_SELF_TARGET"
	CodeActionTargetIneligible Code = "ACTION_TARGET_INELIGIBLE"
	CodeStealTargetBroke       Code = "STEAL_TARGET_BROKE"

	// Denied preconditions (expected, frequent, not system failures)
	CodeActionCooldownActive Code = "ACTION_COOLDOWN_ACTIVE"
	CodeActionLockedOut      Code = "ACTION_LOCKED_OUT"

	// Ledger errors
	CodeAdjustTargetRequired Code = "ADJUST_TARGET_REQUIRED"

	// Disaster errors
	CodeDisasterUnknownSeverity Code = "DISASTER_UNKNOWN_SEVERITY"
	CodeDisasterNoCandidates    Code = "DISASTER_NO_CANDIDATES"

	// Storage errors
	CodeStorageFailure Code = "STORAGE_FAILURE"

	// Configuration errors
	CodeOutcomeTableInvalid Code = "OUTCOME_TABLE_INVALID"
)
