package etl

// error_messages.go maps pipeline failures to short support codes.
//
// The progress log is the only place an operator learns why a run failed, so
// the final ERROR event carries a code alongside the technical message:
//
//	FETCH001 - Source unreachable (DNS, refused, timeout)
//	FETCH002 - Source returned a non-success HTTP status
//	FETCH003 - Source payload exceeds the configured size limit
//	FETCH000 - Other fetch failures
//	PARSE001 - Payload is not well-formed delimited text
//	SCHEMA001 - No recognizable order-date column
//	SCHEMA002 - Two columns normalize to the same name
//	SCHEMA000 - Other schema failures
//	IO001 - Output path not writable
//	IO000 - Other output failures
//	STORE001 - Database unreachable
//	STORE002 - Database rejected the credentials
//	STORE000 - Other storage failures
//	CONFIG001 - Settings missing or invalid; the run never started
//	ERR000 - Unknown error
//
// Specific patterns are matched first (case-insensitive substring of the
// error text, scoped to a kind); the kind fallback applies when none match.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage describes a failure for the operator reading the progress log.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Support reference
}

// String formats the message as "Message (Code: XXX). Action".
func (m UserMessage) String() string {
	if m.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", m.Message, m.Code, m.Action)
}

type errorPattern struct {
	kind    error
	pattern string
	msg     UserMessage
}

var (
	msgUnreachable = UserMessage{
		Message: "Source could not be reached",
		Action:  "Check SOURCE_URL and network access",
		Code:    "FETCH001",
	}
	msgStoreUnreachable = UserMessage{
		Message: "Database could not be reached",
		Action:  "Check DB_HOST, DB_PORT and that the server is running",
		Code:    "STORE001",
	}
	msgNotWritable = UserMessage{
		Message: "Output file could not be written",
		Action:  "Check that OUTPUT_PATH points to a writable directory",
		Code:    "IO001",
	}
)

// errorPatterns is ordered: the first match wins.
var errorPatterns = []errorPattern{
	{kind: ErrFetch, pattern: "no such host", msg: msgUnreachable},
	{kind: ErrFetch, pattern: "connection refused", msg: msgUnreachable},
	{kind: ErrFetch, pattern: "timeout", msg: msgUnreachable},
	{kind: ErrFetch, pattern: "deadline exceeded", msg: msgUnreachable},
	{
		kind:    ErrFetch,
		pattern: "unexpected http status",
		msg: UserMessage{
			Message: "Source returned an error status",
			Action:  "Verify the URL still serves the CSV file",
			Code:    "FETCH002",
		},
	},
	{
		kind:    ErrFetch,
		pattern: "too large",
		msg: UserMessage{
			Message: "Source payload is too large",
			Action:  "Raise HTTP_MAX_BODY_SIZE or use a smaller extract",
			Code:    "FETCH003",
		},
	},
	{
		kind:    ErrSchema,
		pattern: "order-date",
		msg: UserMessage{
			Message: "No order date column found",
			Action:  "Provide a column named \"Order Date\" or \"OrderDate\"",
			Code:    "SCHEMA001",
		},
	},
	{
		kind:    ErrSchema,
		pattern: "duplicate column",
		msg: UserMessage{
			Message: "Two columns have the same name after cleaning",
			Action:  "Rename one of the conflicting source columns",
			Code:    "SCHEMA002",
		},
	},
	{kind: ErrIO, pattern: "permission denied", msg: msgNotWritable},
	{kind: ErrIO, pattern: "no such file or directory", msg: msgNotWritable},
	{kind: ErrStorage, pattern: "connection refused", msg: msgStoreUnreachable},
	{kind: ErrStorage, pattern: "no such host", msg: msgStoreUnreachable},
	{kind: ErrStorage, pattern: "timeout", msg: msgStoreUnreachable},
	{
		kind:    ErrStorage,
		pattern: "password authentication failed",
		msg: UserMessage{
			Message: "Database rejected the credentials",
			Action:  "Check DB_USER and DB_PASSWORD",
			Code:    "STORE002",
		},
	},
}

var kindMessages = []struct {
	kind error
	msg  UserMessage
}{
	{ErrFetch, UserMessage{Message: "Source download failed", Action: "Check the progress log for the HTTP error", Code: "FETCH000"}},
	{ErrParse, UserMessage{Message: "Source is not valid CSV", Action: "Ensure the source is comma-separated with a header row and consistent columns", Code: "PARSE001"}},
	{ErrSchema, UserMessage{Message: "Source columns are not usable", Action: "Check the source header row", Code: "SCHEMA000"}},
	{ErrIO, UserMessage{Message: "Output file write failed", Action: "Check disk space and permissions", Code: "IO000"}},
	{ErrStorage, UserMessage{Message: "Database load failed", Action: "Check the database logs", Code: "STORE000"}},
	{ErrConfig, UserMessage{Message: "Configuration is invalid", Action: "Check the environment variables, .env file and flags", Code: "CONFIG001"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the progress log for details",
	Code:    "ERR000",
}

// MapError converts a pipeline error to an operator-facing message.
// Returns the zero UserMessage for a nil error.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if errors.Is(err, ep.kind) && strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	for _, km := range kindMessages {
		if errors.Is(err, km.kind) {
			return km.msg
		}
	}

	return defaultMessage
}
