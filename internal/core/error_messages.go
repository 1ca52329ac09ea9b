// Package core runs duplicate-invoice analyses and tracks them while they run.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// When users encounter errors, they can quote the error code to support staff
// for faster diagnosis.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds the maximum size limit
//	          Action: Split the ledger into smaller files
//	          Patterns: "file too large", "request body too large"
//
//	FILE002 - Unreadable file: The file could not be read
//	          Action: Export the ledger again as a comma-separated file
//	          Patterns: "read chunk", "invalid csv"
//
//	FILE004 - No file: No file was selected
//	          Action: Please select a CSV file
//	          Patterns: "no file provided"
//
// # Mapping Errors (MAP001-MAP099)
//
//	MAP001 - Unknown column: A mapped column is not in the file
//	         Action: Re-select columns from the file's headers
//	         Patterns: "mapped column not found"
//
//	MAP002 - Invalid options: Date window or tolerance is negative
//	         Action: Use a date window and amount tolerance of zero or more
//	         Patterns: "invalid detection options"
//
//	MAP003 - Invalid mapping: The mapping or options could not be decoded
//	         Action: Send mapping and options as JSON objects
//	         Patterns: "invalid mapping", "invalid options"
//
// # Analysis Errors (ANL001-ANL099)
//
//	ANL001 - Not found: The analysis does not exist or has expired
//	         Action: Start a new analysis
//	         Patterns: "analysis not found", "run not found"
//
//	ANL002 - System busy: Too many analyses in progress
//	         Action: Please wait a moment and try again
//	         Patterns: "too many analyses"
//
//	ANL003 - Cancelled: The analysis was cancelled
//	         Action: Start a new analysis when ready
//	         Patterns: "context canceled"
//
//	ANL004 - Timed out: The analysis took too long
//	         Action: Try a smaller file or try again later
//	         Patterns: "context deadline exceeded"
//
//	ANL005 - Not finished: The analysis is still running
//	         Action: Wait for it to complete and try again
//	         Patterns: "still running"
//
// # Database Errors (DB001-DB099)
//
//	DB004 - Connection refused: Unable to connect to database
//	        Action: Please try again in a few moments
//	        Patterns: "connection refused"
//
//	DB005 - Connection reset: Database connection was interrupted
//	        Action: Please try again
//	        Patterns: "connection reset"
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited: Too many requests
//	          Action: Please wait a moment before trying again
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns should be
// defined before general ones.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user messages.
// Order matters: the first match wins.
var errorPatterns = []errorPattern{
	// =========================================================================
	// File Errors (FILE001-FILE004)
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Split the ledger into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Split the ledger into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "read chunk",
		msg: UserMessage{
			Message: "The file could not be read",
			Action:  "Export the ledger again as a comma-separated file",
			Code:    "FILE002",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "The file could not be read",
			Action:  "Export the ledger again as a comma-separated file",
			Code:    "FILE002",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV file",
			Code:    "FILE004",
		},
	},

	// =========================================================================
	// Mapping Errors (MAP001-MAP003)
	// =========================================================================
	{
		pattern: "mapped column not found",
		msg: UserMessage{
			Message: "A mapped column is not in the file",
			Action:  "Re-select columns from the file's headers",
			Code:    "MAP001",
		},
	},
	{
		pattern: "invalid detection options",
		msg: UserMessage{
			Message: "Date window or amount tolerance is negative",
			Action:  "Use a date window and amount tolerance of zero or more",
			Code:    "MAP002",
		},
	},
	{
		pattern: "invalid mapping",
		msg: UserMessage{
			Message: "The column mapping could not be read",
			Action:  "Send mapping and options as JSON objects",
			Code:    "MAP003",
		},
	},
	{
		pattern: "invalid options",
		msg: UserMessage{
			Message: "The detection options could not be read",
			Action:  "Send mapping and options as JSON objects",
			Code:    "MAP003",
		},
	},

	// =========================================================================
	// Analysis Errors (ANL001-ANL005)
	// =========================================================================
	{
		pattern: "analysis not found",
		msg: UserMessage{
			Message: "Analysis not found",
			Action:  "The analysis may have expired. Please start a new one",
			Code:    "ANL001",
		},
	},
	{
		pattern: "run not found",
		msg: UserMessage{
			Message: "Analysis not found",
			Action:  "The analysis may have expired. Please start a new one",
			Code:    "ANL001",
		},
	},
	{
		pattern: "too many analyses",
		msg: UserMessage{
			Message: "System is busy processing other analyses",
			Action:  "Please wait a moment and try again",
			Code:    "ANL002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "The analysis was cancelled",
			Action:  "Start a new analysis when ready",
			Code:    "ANL003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "The analysis took too long",
			Action:  "Try a smaller file or try again later",
			Code:    "ANL004",
		},
	},
	{
		pattern: "still running",
		msg: UserMessage{
			Message: "The analysis has not finished yet",
			Action:  "Wait for it to complete and try again",
			Code:    "ANL005",
		},
	},

	// =========================================================================
	// Database Errors (DB004-DB005)
	// =========================================================================
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. If no
// pattern matches, the ERR000 fallback is returned.
//
//	msg := MapError(errors.New("mapped column not found in headers"))
//	// msg.Code == "MAP001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	return mapText(err.Error())
}

func mapText(text string) UserMessage {
	lower := strings.ToLower(text)
	for _, ep := range errorPatterns {
		if strings.Contains(lower, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// MapMessage maps the text of a terminal error message.
func MapMessage(m Message) UserMessage {
	if m.Type != MessageError {
		return UserMessage{}
	}
	return mapText(m.Error)
}

// FormatUserError formats err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with the message shown for it.
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

// NewUserError maps err. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
