package apperrors

var (
	ErrEmptyText       = InvalidArg("message text cannot be empty")
	ErrInvalidText     = InvalidArg("message text must be valid UTF-8")
	ErrEmptyAuthorID   = InvalidArg("author id is required")
	ErrEmptyAuthorRole = InvalidArg("author role is required")
	ErrEmptyAdminID    = InvalidArg("admin id is required")
	ErrNoReceipt       = NotFound("no read receipt for admin")
)

func ErrStoreUnavailable(cause error) error {
	return Unavailable("store unavailable", cause)
}

func ErrCanceled(cause error) error {
	return Wrap(CodeCanceled, "operation canceled", cause)
}

func ErrDeadlineExceeded(cause error) error {
	return Wrap(CodeDeadlineExceeded, "operation timed out", cause)
}
