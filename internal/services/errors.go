package services

import (
	"errors"
	"fmt"
	"strings"
)

// Markers for errors.Is classification. Each typed error below matches
// exactly one marker.
var (
	ErrTransport     = errors.New("transport error")
	ErrAPI           = errors.New("api error")
	ErrRestricted    = errors.New("post restricted")
	ErrFormat        = errors.New("format error")
	ErrPackaging     = errors.New("packaging error")
	ErrDelivery      = errors.New("delivery error")
	ErrConfiguration = errors.New("configuration error")
)

// TransportError reports a failed network fetch. The underlying transport
// carries no structured cause of its own, so Message is supplied by the caller.
// Status and Body are set when the server answered with a non-2xx status;
// Body holds at most the first few KiB of the response.
type TransportError struct {
	URL     string
	Message string
	Status  int
	Body    []byte
	Err     error
}

func (e *TransportError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = fmt.Sprintf("failed to download %q", e.URL)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// APIError reports a content API response that is unusable: an explicit
// error field, a missing body, or a shape that cannot be normalized.
type APIError struct {
	Message string
	Err     error
}

func (e *APIError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = "failed to call an API"
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *APIError) Unwrap() error { return e.Err }

func (e *APIError) Is(target error) bool { return target == ErrAPI }

// RestrictedError reports a post whose body is withheld from the current viewer.
type RestrictedError struct {
	PostID string
}

func (e *RestrictedError) Error() string {
	if e.PostID == "" {
		return "the article is restricted"
	}
	return fmt.Sprintf("the article %s is restricted", e.PostID)
}

func (e *RestrictedError) Is(target error) bool { return target == ErrRestricted }

// FormatError reports a template that references an unknown field or carries
// a malformed pad spec. Exactly one of Name or Spec is set.
type FormatError struct {
	Template string
	Name     string
	Spec     string
}

func (e *FormatError) Error() string {
	if e.Spec != "" {
		return fmt.Sprintf("invalid format %q", e.Spec)
	}
	return fmt.Sprintf("no value named %q", e.Name)
}

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// PackagingError wraps any failure raised while assembling or encoding an archive.
type PackagingError struct {
	PostID string
	Err    error
}

func (e *PackagingError) Error() string {
	if e.Err == nil {
		return "error occurred during download"
	}
	return "error occurred during download: " + e.Err.Error()
}

func (e *PackagingError) Unwrap() error { return e.Err }

func (e *PackagingError) Is(target error) bool { return target == ErrPackaging }

// Wrap tags err with a marker and an operation label. Used for failures that
// have no dedicated type, such as configuration problems.
func Wrap(marker error, operation, message string, err error) error {
	detail := buildDetail(operation, message)
	if marker == nil {
		marker = ErrConfiguration
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind classifies err into a short label for logs, history rows, and
// notifications. PackagingError is checked first because it wraps the
// transport failure that caused it.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPackaging):
		return "packaging"
	case errors.Is(err, ErrRestricted):
		return "restricted"
	case errors.Is(err, ErrAPI):
		return "api"
	case errors.Is(err, ErrFormat):
		return "format"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrDelivery):
		return "delivery"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "unknown"
	}
}

// Hint returns an operator-facing next step for the failure kind.
func Hint(err error) string {
	switch Kind(err) {
	case "restricted":
		return "check the session cookie and that the plan grants access to the post"
	case "api":
		return "verify the post id and the api_base_url setting"
	case "format":
		return "fix archive.filename_template in the config file"
	case "packaging", "transport":
		return "retry the download; asset hosts sometimes reject bursts of requests"
	case "delivery":
		return "check that paths.output_dir is writable and has free space"
	case "configuration":
		return "run fanboxed config validate"
	default:
		return "check logs for details"
	}
}

func buildDetail(operation, message string) string {
	parts := make([]string, 0, 2)
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "operation failed"
	}
	return strings.Join(parts, ": ")
}
