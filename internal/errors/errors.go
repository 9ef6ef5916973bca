package errors

import "fmt"

// ErrCode represents an error code
type ErrCode string

const (
	ErrCodeConfig      ErrCode = "CONFIG_ERROR"
	ErrCodeFetch       ErrCode = "FETCH_ERROR"
	ErrCodeParse       ErrCode = "PARSE_ERROR"
	ErrCodeFilesystem  ErrCode = "FILESYSTEM_ERROR"
	ErrCodeNotFound    ErrCode = "NOT_FOUND"
	ErrCodeRateLimited ErrCode = "RATE_LIMITED"
)

// AppError represents an application error
type AppError struct {
	Code    ErrCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a fatal configuration error
func NewConfigError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeConfig,
		Message: message,
		Err:     err,
	}
}

// NewFetchError creates a per-entry or per-member fetch error
func NewFetchError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeFetch,
		Message: message,
		Err:     err,
	}
}

// NewParseError creates a front-matter parse error
func NewParseError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeParse,
		Message: message,
		Err:     err,
	}
}

// NewFilesystemError creates a local write error
func NewFilesystemError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeFilesystem,
		Message: message,
		Err:     err,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// NewRateLimitedError creates a new rate limited error
func NewRateLimitedError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeRateLimited,
		Message: message,
	}
}

// IsConfig checks if the error is a configuration error
func IsConfig(err error) bool {
	return hasCode(err, ErrCodeConfig)
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsRateLimited checks if the error is a rate limited error
func IsRateLimited(err error) bool {
	return hasCode(err, ErrCodeRateLimited)
}

// IsParse checks if the error is a parse error
func IsParse(err error) bool {
	return hasCode(err, ErrCodeParse)
}

func hasCode(err error, code ErrCode) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}
