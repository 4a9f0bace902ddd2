package core

// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// When users encounter errors, they can quote the error code to support staff
// for faster diagnosis.
//
// Error codes are grouped by category:
//
// # Template Errors (TPL001-TPL099)
//
//	TPL001 - Unknown template: No template is registered under this name
//	         Action: Run "sheet2sql templates list" to see available templates
//	         Matched: schema.ErrTemplateNotFound
//
//	TPL002 - Invalid template: The template definition is malformed
//	         Action: Fix the template file; the error lists every problem
//	         Matched: schema.ErrInvalidTemplate
//
//	TPL003 - No template match: No template matches the file name or headers
//	         Action: Pass a template explicitly or add a file pattern
//	         Matched: schema.ErrNoTemplateMatch
//
// # Validation Errors (VAL001-VAL099)
//
// Every Violation carries one of these codes. MapError resolves a Violation
// by its code.
//
//	VAL001 - Invalid date: The value is not a recognised date
//	VAL002 - Invalid number: The value is not a valid integer or decimal
//	VAL003 - Required field: A required field is empty
//	VAL004 - Null not allowed: A non-nullable field without a default is empty
//	VAL005 - Out of range: The value is outside the declared bounds
//	VAL006 - Invalid enum: The value is not in the allowed list
//	VAL007 - Pattern mismatch: The value does not match the declared pattern
//	VAL008 - Invalid boolean: The value is not a recognised true/false token
//	VAL009 - Check failed: A comparison between two fields does not hold
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds maximum size limit
//	          Patterns: "file too large"
//	FILE002 - Unreadable file: File is not a valid CSV or XLSX workbook
//	          Patterns: "invalid csv", "invalid workbook", "unsupported file format"
//	FILE004 - No file: No file was provided
//	          Patterns: "no file provided"
//	FILE005 - Empty file: The file has no header row
//	          Patterns: "empty file"
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - System busy: Too many transforms in progress
//	REQ002 - Request cancelled
//	REQ003 - Request timeout
//
// # Internal Errors (INT001)
//
//	INT001 - Internal pipeline error: A pipeline invariant was broken
//	         Matched: ErrInternal
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or check the logs
//
// # Matching
//
// Violations are matched by code, then sentinel errors with errors.Is.
// Otherwise patterns are
// matched case-insensitively using strings.Contains and the first matching
// pattern wins, so more specific patterns should be defined before general ones.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/sheet2sql/internal/schema"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

// errorSentinel maps a sentinel error to its user message.
type errorSentinel struct {
	err error
	msg UserMessage
}

var errorSentinels = []errorSentinel{
	{
		err: schema.ErrTemplateNotFound,
		msg: UserMessage{
			Message: "Unknown template",
			Action:  `Run "sheet2sql templates list" to see available templates`,
			Code:    "TPL001",
		},
	},
	{
		err: schema.ErrInvalidTemplate,
		msg: UserMessage{
			Message: "The template definition is invalid",
			Action:  "Fix the template file; the error lists every problem",
			Code:    "TPL002",
		},
	},
	{
		err: schema.ErrNoTemplateMatch,
		msg: UserMessage{
			Message: "No template matches this file",
			Action:  "Choose a template explicitly or add a file pattern to one",
			Code:    "TPL003",
		},
	},
	{
		err: ErrInternal,
		msg: UserMessage{
			Message: "Internal pipeline error",
			Action:  "Report this error with the input file; nothing was written",
			Code:    "INT001",
		},
	},
}

// Violation codes.
const (
	CodeInvalidDate     = "VAL001"
	CodeInvalidNumber   = "VAL002"
	CodeRequired        = "VAL003"
	CodeNullNotAllowed  = "VAL004"
	CodeOutOfRange      = "VAL005"
	CodeNotAllowed      = "VAL006"
	CodePatternMismatch = "VAL007"
	CodeInvalidBoolean  = "VAL008"
	CodeCheckFailed     = "VAL009"
)

var violationMessages = map[string]UserMessage{
	CodeInvalidDate: {
		Message: "Invalid date format detected",
		Action:  "Use YYYY-MM-DD, MM/DD/YYYY, or Jan 15, 2024",
	},
	CodeInvalidNumber: {
		Message: "Invalid number format detected",
		Action:  "Remove letters and use standard decimal format",
	},
	CodeRequired: {
		Message: "Required field is empty",
		Action:  "Ensure all required columns have values",
	},
	CodeNullNotAllowed: {
		Message: "Field may not be empty",
		Action:  "Fill in the value or give the field a default",
	},
	CodeOutOfRange: {
		Message: "Value is out of range",
		Action:  "Check the field's minimum and maximum",
	},
	CodeNotAllowed: {
		Message: "Value is not in the allowed list",
		Action:  "Check the allowed values for this field",
	},
	CodePatternMismatch: {
		Message: "Value does not match the expected pattern",
		Action:  "Check the field's format",
	},
	CodeInvalidBoolean: {
		Message: "Invalid true/false value",
		Action:  "Use yes/no, true/false or 1/0",
	},
	CodeCheckFailed: {
		Message: "Fields are inconsistent",
		Action:  "Check the values the rule compares",
	},
}

// violationCode classifies a violation of rule on a field of type t.
func violationCode(rule string, t schema.FieldType) string {
	switch rule {
	case RuleType:
		switch t {
		case schema.FieldDate:
			return CodeInvalidDate
		case schema.FieldBoolean:
			return CodeInvalidBoolean
		default:
			return CodeInvalidNumber
		}
	case RuleRequired:
		return CodeRequired
	case RuleNullable:
		return CodeNullNotAllowed
	case RuleRange:
		return CodeOutOfRange
	case RuleEnum:
		return CodeNotAllowed
	case RuleRegex:
		return CodePatternMismatch
	case RuleCompare:
		return CodeCheckFailed
	}
	return defaultMessage.Code
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so order matters.
var errorPatterns = []errorPattern{
	// File Errors (FILE001-FILE005)
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure file is comma-separated with a header row",
			Code:    "FILE002",
		},
	},
	{
		pattern: "invalid workbook",
		msg: UserMessage{
			Message: "File is not a valid XLSX workbook",
			Action:  "Re-save the file as .xlsx or export it as CSV",
			Code:    "FILE002",
		},
	},
	{
		pattern: "unsupported file format",
		msg: UserMessage{
			Message: "File format is not supported",
			Action:  "Use a .csv or .xlsx file",
			Code:    "FILE002",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was provided",
			Action:  "Attach a CSV or XLSX file",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The file is empty",
			Action:  "Provide a file with a header row and data rows",
			Code:    "FILE005",
		},
	},

	// Request Errors (REQ001-REQ003)
	{
		pattern: "too many transforms",
		msg: UserMessage{
			Message: "System is busy processing other files",
			Action:  "Please wait a moment and try again",
			Code:    "REQ001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "REQ003",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or check the logs",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	_, err := reg.Get("nope")
//	msg := MapError(err)
//	// msg.Code == "TPL001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var v Violation
	if errors.As(err, &v) {
		if msg, ok := violationMessages[v.Code]; ok {
			msg.Code = v.Code
			return msg
		}
	}

	for _, es := range errorSentinels {
		if errors.Is(err, es.err) {
			return es.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether an error maps to a specific code rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError wraps a technical error with a user-friendly message.
// The original error is preserved for logging while providing a clean message for users.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError creates a UserError by mapping a technical error to a
// user-friendly message. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
