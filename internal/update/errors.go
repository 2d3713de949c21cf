package update

import (
	"errors"
	"fmt"

	appErrors "officeapp/internal/errors"
)

// Error variables for update-specific failures. Each is wrapped in an
// appErrors.Error carrying the matching code, so callers may branch with
// either errors.Is or appErrors.CodeOf.
var (
	ErrInvalidVersion    = errors.New("invalid version format")
	ErrInsecureTransport = errors.New("insecure transport")
	ErrSizeLimitExceeded = errors.New("size limit exceeded")
	ErrTransferFailed    = errors.New("transfer failed")
	ErrChecksumMismatch  = errors.New("checksum verification failed")
	ErrCancelled         = errors.New("update cancelled")
	ErrUpdateInProgress  = errors.New("update already in progress")
)

var sentinelCodes = map[error]appErrors.Code{
	ErrInvalidVersion:    appErrors.CodeInvalidVersionFormat,
	ErrInsecureTransport: appErrors.CodeInsecureTransport,
	ErrSizeLimitExceeded: appErrors.CodeSizeLimitExceeded,
	ErrTransferFailed:    appErrors.CodeTransferFailed,
	ErrChecksumMismatch:  appErrors.CodeIntegrityMismatch,
	ErrCancelled:         appErrors.CodeCancelled,
	ErrUpdateInProgress:  appErrors.CodeUpdateInProgress,
}

// fail builds a coded error around one of the sentinels above. cause may be nil.
func fail(sentinel error, msg string, cause error) error {
	code, ok := sentinelCodes[sentinel]
	if !ok {
		code = appErrors.CodeUnknown
	}
	inner := sentinel
	if cause != nil {
		inner = fmt.Errorf("%w: %w", sentinel, cause)
	}
	return appErrors.New(code, msg, inner)
}
