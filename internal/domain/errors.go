package domain

import "fmt"

// ValidationError reports malformed or unsupported input, such as a URL
// with a scheme other than http or https. Reported to the user, no retry.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + e.Reason
}

// QuotaExceededError reports a breached transfer ceiling. The partial
// download is discarded before this error propagates.
type QuotaExceededError struct {
	LimitBytes int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("transfer exceeds the %d MiB limit", e.LimitBytes>>20)
}

// TransportError reports a download or file-handle resolution failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transfer failed: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TranscodeError reports a media normalization failure and carries the
// transcoder's diagnostic output.
type TranscodeError struct {
	Detail string
	Err    error
}

func (e *TranscodeError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("audio conversion failed: %v", e.Err)
	}
	return fmt.Sprintf("audio conversion failed: %v: %s", e.Err, e.Detail)
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// ServiceError reports a remote backend failure (auth, rate limit,
// malformed response) from the speech or text-generation service.
type ServiceError struct {
	Backend string
	Err     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s backend: %v", e.Backend, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }
