package livetypes

import (
	"errors"
	"fmt"
)

var (
	ErrPathEscapesRoot = errors.New("path escapes root")
)

// fetch/publish failed for a reason other than "not found" / "not modified"
type TransportError struct {
	Op  string
	Key string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// malformed or unreadable diff archive
type ArchiveError struct {
	Entry string // empty if the container itself is broken
	Err   error
}

func (e *ArchiveError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("archive: %v", e.Err)
	}

	return fmt.Sprintf("archive: entry %s: %v", e.Entry, e.Err)
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// copy / restore / extract failed (permissions, space, ...)
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("filesystem: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}

func NewFilesystemError(op string, path string, err error) error {
	if err == nil {
		return nil
	}

	// don't wrap twice
	var fsErr *FilesystemError
	if errors.As(err, &fsErr) {
		return err
	}

	return &FilesystemError{Op: op, Path: path, Err: err}
}
