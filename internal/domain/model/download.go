package model

import "time"

// DownloadState represents the lifecycle state of an APK download.
type DownloadState string

const (
	DownloadStateIdle        DownloadState = "idle"
	DownloadStateDownloading DownloadState = "downloading"
	DownloadStateDownloaded  DownloadState = "downloaded"
	DownloadStateFailed      DownloadState = "failed"
	DownloadStateCancelled   DownloadState = "cancelled"
)

// Download is a point-in-time snapshot of an app's download.
// Progress is in the range [0, 1] and stays 0 when the total size is unknown.
type Download struct {
	AppID       int64
	ReleaseTag  string
	AssetName   string
	State       DownloadState
	Progress    float64
	BytesCopied int64
	TotalBytes  int64
	FilePath    string
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Active reports whether bytes are still being copied.
func (d Download) Active() bool {
	return d.State == DownloadStateDownloading
}
