package entity

// DateLayout is the calendar date format used in storage keys and API payloads
const DateLayout = "2006-01-02"

// Zero-hour reason constants for RawExtraction and CanonicalEntry
const (
	ZeroHourReasonAnnualLeave = "ANNUAL_LEAVE"
	ZeroHourReasonAbsence     = "ABSENCE"
)

// Confidence levels attached to corrections and identities
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Identity match types
const (
	MatchExact      = "exact"
	MatchAlias      = "alias"
	MatchFuzzy      = "fuzzy"
	MatchUnresolved = "unresolved"
)

// Correction kinds
const (
	CorrectionDigitConfusion      = "DIGIT_CONFUSION"
	CorrectionCategoryLabel       = "CATEGORY_LABEL"
	CorrectionMissingCodeInName   = "MISSING_CODE_IN_NAME"
	CorrectionWrongCodeInName     = "WRONG_CODE_IN_NAME"
	CorrectionBankHolidayOverride = "BANK_HOLIDAY_OVERRIDE"
	CorrectionNameAlias           = "NAME_ALIAS"
	CorrectionNameFuzzy           = "NAME_FUZZY"
	CorrectionDateRangeAdjusted   = "DATE_RANGE_ADJUSTED"
	CorrectionPrefixConfusion     = "PREFIX_CONFUSION"
	CorrectionCodeFromName        = "CODE_FROM_NAME"
	CorrectionProjectNameVariant  = "PROJECT_NAME_VARIANT"
	CorrectionDuplicateMerged     = "DUPLICATE_MERGED"
)

// Warning kinds
const (
	WarningAmbiguousCorrection   = "AMBIGUOUS_CORRECTION"
	WarningTotalsMismatch        = "TOTALS_MISMATCH"
	WarningLowConfidenceIdentity = "LOW_CONFIDENCE_IDENTITY"
	WarningCodeFormat            = "CODE_FORMAT"
	WarningNameFormat            = "NAME_FORMAT"
	WarningExcessiveDailyHours   = "EXCESSIVE_DAILY_HOURS"
	WarningFractionalTotal       = "FRACTIONAL_TOTAL"
	WarningSuspiciousTotal       = "SUSPICIOUS_TOTAL"
	WarningInvalidHours          = "INVALID_HOURS"
	WarningZeroHourConflict      = "ZERO_HOUR_CONFLICT"
	WarningMissingData           = "MISSING_DATA"
)

// Warning severities
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// Processing run status constants
const (
	RunStatusProcessed   = "processed"
	RunStatusNeedsReview = "needs_review"
	RunStatusFailed      = "failed"
)

// UnknownProjectCode is stored when no code can be recovered for a row
const UnknownProjectCode = "UNKNOWN"
