package editor

import "errors"

var (
	ErrNotContainer   = errors.New("instance does not accept children")
	ErrNoSelection    = errors.New("no instance selected")
	ErrEmptyClipboard = errors.New("clipboard is empty")
	// ErrUnsupportedVersion is returned for documents written by a newer format.
	ErrUnsupportedVersion = errors.New("unsupported document version")
)
