package model

import (
	"strings"
	"time"
)

// APKContentType is the MIME type GitHub reports for Android packages.
const APKContentType = "application/vnd.android.package-archive"

// Release represents a published GitHub release.
type Release struct {
	ID          int64
	TagName     string
	Name        string
	Body        string
	PublishedAt time.Time
	HTMLURL     string
	Prerelease  bool
	Draft       bool
	Assets      []Asset
}

// Asset is a downloadable file attached to a release.
type Asset struct {
	ID            int64
	Name          string
	DownloadURL   string
	ContentType   string
	Size          int64
	DownloadCount int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsAPK reports whether the asset is an Android package. Both the content
// type and the file extension must match.
func (a Asset) IsAPK() bool {
	return a.ContentType == APKContentType && strings.HasSuffix(strings.ToLower(a.Name), ".apk")
}

// FirstAPK returns the first APK asset of the release, or nil if none exists.
func (r Release) FirstAPK() *Asset {
	for i := range r.Assets {
		if r.Assets[i].IsAPK() {
			return &r.Assets[i]
		}
	}
	return nil
}

// AssetByID returns the asset with the given ID, or nil.
func (r Release) AssetByID(id int64) *Asset {
	for i := range r.Assets {
		if r.Assets[i].ID == id {
			return &r.Assets[i]
		}
	}
	return nil
}

// Installable reports whether the release is published and carries an APK.
func (r Release) Installable() bool {
	return !r.Draft && r.FirstAPK() != nil
}
