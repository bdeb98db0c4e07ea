package wiki

import "fmt"

// Error codes for programmatic error handling
type ErrorCode string

const (
	// Upload error codes
	UploadCodeWarning ErrorCode = "UPLOAD_WARNING"
	UploadCodeFailed  ErrorCode = "UPLOAD_FAILED"

	// Chunked-protocol error codes
	ChunkCodeMalformed ErrorCode = "CHUNK_MALFORMED_RESPONSE"
	ChunkCodeError     ErrorCode = "CHUNK_REMOTE_ERROR"
	ChunkCodeExceeded  ErrorCode = "CHUNK_BOUND_EXCEEDED"

	// Authentication error codes
	AuthCodeInvalidCredentials ErrorCode = "AUTH_INVALID_CREDENTIALS"
	AuthCodeTokenMissing       ErrorCode = "AUTH_TOKEN_MISSING"
)

// ValidationError reports a missing or malformed argument
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// UploadError is a terminal upload failure for one file. A warning that
// survives the single ignorewarnings retry surfaces as UploadCodeWarning;
// every other terminal condition is UploadCodeFailed.
type UploadError struct {
	Code     ErrorCode
	Title    string
	Message  string
	Warnings []string
}

func (e *UploadError) Error() string {
	msg := fmt.Sprintf("[%s] upload of %q failed: %s", e.Code, e.Title, e.Message)
	for _, w := range e.Warnings {
		msg += "\n  warning: " + w
	}
	return msg
}

// ErrorCode returns the structured code for programmatic handling
func (e *UploadError) ErrorCode() ErrorCode {
	return e.Code
}

// ChunkProtocolError is a malformed or terminal chunked-upload exchange.
// It is terminal for the affected file only; the run continues.
type ChunkProtocolError struct {
	Code   ErrorCode
	Title  string
	Offset int64
	Reason string
}

func (e *ChunkProtocolError) Error() string {
	return fmt.Sprintf("[%s] chunked upload of %q broke at offset %d: %s", e.Code, e.Title, e.Offset, e.Reason)
}

// ErrorCode returns the structured code for programmatic handling
func (e *ChunkProtocolError) ErrorCode() ErrorCode {
	return e.Code
}

// AuthenticationError reports a failed login or token handshake
type AuthenticationError struct {
	Code      ErrorCode
	Operation string
	Reason    string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("[%s] authentication failed during %s: %s", e.Code, e.Operation, e.Reason)
}
