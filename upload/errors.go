package upload

import "errors"

var (
	// ErrNotFound is returned when a file id is not registered.
	ErrNotFound = errors.New("file not found")
	// ErrInvalidUpload is returned when an upload is not an acceptable video.
	ErrInvalidUpload = errors.New("invalid upload")
	// ErrTooLarge is returned when an upload exceeds the configured size limit.
	// It also matches ErrInvalidUpload.
	ErrTooLarge = tooLargeError{}
	// ErrInsufficientStorage is returned when the upload directory is low on disk.
	ErrInsufficientStorage = errors.New("insufficient storage")
)

type tooLargeError struct{}

func (tooLargeError) Error() string { return "upload too large" }

func (tooLargeError) Is(target error) bool { return target == ErrInvalidUpload }
