package task

import "errors"

var (
	// ErrNotFound is returned when a task is unknown or its result is not available.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a task id is already registered.
	ErrAlreadyExists = errors.New("already exists")
	// ErrFileMissing is returned when a task's original file is gone from disk.
	ErrFileMissing = errors.New("file missing")
)
