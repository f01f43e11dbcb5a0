package model

import "time"

// TrackedApp represents a GitHub repository registered for release monitoring.
// Owner and RepoName together are unique across all tracked apps.
type TrackedApp struct {
	ID                       int64
	Owner                    string
	RepoName                 string
	Description              string
	HTMLURL                  string
	InstalledVersionTag      *string
	LatestKnownReleaseTag    *string
	LatestReleaseID          *int64
	LatestReleasePublishedAt *time.Time
	LastCheckedAt            time.Time
}

// FullName returns the "owner/repo" form of the tracked repository.
func (a TrackedApp) FullName() string {
	return a.Owner + "/" + a.RepoName
}

// IsInstalled reports whether an installed version tag has been recorded.
func (a TrackedApp) IsInstalled() bool {
	return a.InstalledVersionTag != nil
}

// HasUpdate reports whether the latest known release differs from the
// installed one. Tags are compared as plain strings; an app with no installed
// tag or no known release never has an update.
func (a TrackedApp) HasUpdate() bool {
	if !a.IsInstalled() || a.LatestKnownReleaseTag == nil {
		return false
	}
	return *a.LatestKnownReleaseTag != *a.InstalledVersionTag
}

// IsStale reports whether the last release check is older than threshold.
func (a TrackedApp) IsStale(now time.Time, threshold time.Duration) bool {
	return now.Sub(a.LastCheckedAt) > threshold
}
