package service

import "errors"

var (
	// ErrUnsupportedFormat rejects uploads whose extension is not on the
	// media allow-list.
	ErrUnsupportedFormat = errors.New("unsupported video format")

	// ErrInvalidArchive rejects uploads with a .zip extension that cannot be
	// read as a zip archive.
	ErrInvalidArchive = errors.New("invalid zip file")

	// ErrNoVideoInArchive rejects archives with no allow-listed member.
	ErrNoVideoInArchive = errors.New("zip must contain a video file")

	// ErrNotFound covers missing jobs, jobs owned by someone else, and jobs
	// not yet ready for download. Deliberately indistinguishable.
	ErrNotFound = errors.New("video not found or not ready")
)
