package printer

import (
	"errors"
	"fmt"
)

// ErrInvalidState is returned by buffer and flush operations on a printer
// that has not been initialized, or has been closed.
var ErrInvalidState = errors.New("printer: not initialized")

// TransportError wraps a failure to open, write to or close a transport.
type TransportError struct {
	Kind string // transport kind, e.g. "serial"
	Op   string // "open", "send" or "close"
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ImageLoadError reports that an image could not be read from its source.
type ImageLoadError struct {
	Path string
	Err  error
}

func (e *ImageLoadError) Error() string {
	return fmt.Sprintf("printer: load image %q: %v", e.Path, e.Err)
}

func (e *ImageLoadError) Unwrap() error { return e.Err }

func transportErr(kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Kind: kind, Op: op, Err: err}
}
