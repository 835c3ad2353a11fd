package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoNamespace is returned when no root namespace is specified.
	// The namespace comes from --namespace or the ENDOR_NAMESPACE
	// environment variable.
	ErrNoNamespace = errors.New("no namespace specified: use --namespace or set ENDOR_NAMESPACE")

	// ErrInvalidTimeout is returned when any request timeout is not
	// positive. A zero timeout would cause immediate failures.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid worker count: must be positive")

	// ErrInvalidMaxAttempts is returned when the retry budget is not
	// positive. At least one attempt is required to make any request.
	ErrInvalidMaxAttempts = errors.New("invalid max attempts: must be positive")

	// ErrInvalidRetryDelay is returned when the backoff base delay is
	// negative. Use 0 for no delay between attempts.
	ErrInvalidRetryDelay = errors.New("invalid retry delay: must be non-negative")

	// ErrInvalidDirectory is returned when the output or state directory
	// is empty.
	ErrInvalidDirectory = errors.New("invalid directory: output and state directories must be set")

	// ErrNoCredentials is returned when neither a token nor a complete
	// key/secret pair is available in the environment.
	ErrNoCredentials = errors.New("no credentials: set ENDOR_TOKEN, or both ENDOR_API_CREDENTIALS_KEY and ENDOR_API_CREDENTIALS_SECRET")
)
