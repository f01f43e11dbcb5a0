package application

import "errors"

// Sentinel errors returned by application services.
var (
	// ErrInvalidRepoInput indicates user input that is not in owner/repo form.
	ErrInvalidRepoInput = errors.New("invalid format, use owner/repo")

	// ErrTagRequired indicates an installed version update without a tag.
	ErrTagRequired = errors.New("version tag is required")

	// ErrTokenRequired indicates a credential update without a token.
	ErrTokenRequired = errors.New("token is required")

	// ErrDownloadInProgress indicates a download for the app is already running.
	ErrDownloadInProgress = errors.New("download already in progress")

	// ErrNoDownload indicates no download has been started for the app.
	ErrNoDownload = errors.New("no download for app")

	// ErrReleaseNotFound indicates the requested release tag does not exist.
	ErrReleaseNotFound = errors.New("release not found")

	// ErrAssetNotFound indicates the requested asset is not part of the release.
	ErrAssetNotFound = errors.New("asset not found")
)
