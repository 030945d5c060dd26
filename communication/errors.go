package communication

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedMessage is wrapped by every decoding failure.
	ErrMalformedMessage = errors.New("malformed message")
	// ErrLineTooLong is returned by ReadLine when no delimiter shows up within the limit.
	ErrLineTooLong = fmt.Errorf("%w: line too long", ErrMalformedMessage)
	// ErrConnectivity wraps dial, reset and premature close failures.
	ErrConnectivity = errors.New("connectivity failure")
	// ErrResourceNotFound is what a serving peer reports for a file it does not have.
	ErrResourceNotFound = errors.New("file does not exist")
	// ErrTruncated means a DOWNLOAD stream ended before the announced size.
	ErrTruncated = errors.New("transfer truncated")
)

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedMessage, fmt.Sprintf(format, args...))
}

// RemoteError carries the text of an ERROR reply.
type RemoteError struct {
	Text string
}

func (e *RemoteError) Error() string {
	return "remote error: " + e.Text
}

// Is lets errors.Is match a remote "file does not exist" against
// ErrResourceNotFound and a remote decode failure against ErrMalformedMessage.
func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrResourceNotFound:
		return e.Text == ErrResourceNotFound.Error()
	case ErrMalformedMessage:
		return strings.HasPrefix(e.Text, ErrMalformedMessage.Error())
	}
	return false
}
