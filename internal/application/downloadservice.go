package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/ericfisherdev/appdepo/internal/domain/model"
	"github.com/ericfisherdev/appdepo/internal/domain/port/driven"
)

const (
	copyBufferSize = 8 * 1024
	apkSubdir      = "apks"
	partialSuffix  = ".part"
)

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// ProgressFunc receives a snapshot whenever a download makes visible
// progress or changes state. It is called from the download goroutine.
type ProgressFunc func(model.Download)

type downloadJob struct {
	mu       sync.Mutex
	state    model.Download
	cancel   context.CancelFunc
	done     chan struct{}
	progress ProgressFunc
}

func (j *downloadJob) snapshot() model.Download {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// busy reports whether the job goroutine is still running, which includes
// the installer phase after the file is in place.
func (j *downloadJob) busy() bool {
	select {
	case <-j.done:
		return false
	default:
		return true
	}
}

func (j *downloadJob) update(fn func(*model.Download)) model.Download {
	j.mu.Lock()
	fn(&j.state)
	snap := j.state
	j.mu.Unlock()
	return snap
}

// DownloadService copies APK assets to local files, one download per app at
// a time. Downloads run in the background and outlive the request that
// started them; Shutdown cancels whatever is still running.
type DownloadService struct {
	store     driven.TrackedAppStore
	provider  *GitHubClientProvider
	installer driven.Installer
	metrics   driven.Metrics
	dir       string
	logger    *slog.Logger

	baseCtx   context.Context
	cancelAll context.CancelFunc
	wg        sync.WaitGroup

	mu   sync.Mutex
	jobs map[int64]*downloadJob
}

// NewDownloadService creates a DownloadService writing into dir/apks.
// installer and metrics may be nil.
func NewDownloadService(
	store driven.TrackedAppStore,
	provider *GitHubClientProvider,
	installer driven.Installer,
	metrics driven.Metrics,
	dir string,
	logger *slog.Logger,
) *DownloadService {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &DownloadService{
		store:     store,
		provider:  provider,
		installer: installer,
		metrics:   metrics,
		dir:       dir,
		logger:    logger,
		baseCtx:   ctx,
		cancelAll: cancel,
		jobs:      make(map[int64]*downloadJob),
	}
}

// SanitizeFileName replaces every character outside [a-zA-Z0-9._-] with an
// underscore. Names that would resolve to a directory fall back to "asset.apk".
func SanitizeFileName(name string) string {
	clean := unsafeFileChars.ReplaceAllString(name, "_")
	if clean == "" || clean == "." || clean == ".." {
		return "asset.apk"
	}
	return clean
}

// Start begins downloading asset for the given app and returns the initial
// snapshot. ctx only scopes the app lookup; the copy runs until it finishes,
// Cancel is called or the service shuts down.
func (s *DownloadService) Start(ctx context.Context, appID int64, release model.Release, asset model.Asset, progress ProgressFunc) (model.Download, error) {
	app, err := s.store.GetByID(ctx, appID)
	if err != nil {
		return model.Download{}, err
	}
	if app == nil {
		return model.Download{}, fmt.Errorf("app %d: %w", appID, driven.ErrAppNotFound)
	}

	s.mu.Lock()
	if existing, ok := s.jobs[appID]; ok && existing.busy() {
		s.mu.Unlock()
		return model.Download{}, fmt.Errorf("app %d: %w", appID, ErrDownloadInProgress)
	}

	jobCtx, cancel := context.WithCancel(s.baseCtx)
	job := &downloadJob{
		cancel:   cancel,
		done:     make(chan struct{}),
		progress: progress,
		state: model.Download{
			AppID:      appID,
			ReleaseTag: release.TagName,
			AssetName:  asset.Name,
			State:      model.DownloadStateDownloading,
			TotalBytes: asset.Size,
			FilePath:   filepath.Join(s.dir, apkSubdir, SanitizeFileName(asset.Name)),
			StartedAt:  time.Now().UTC(),
		},
	}
	s.jobs[appID] = job
	s.wg.Add(1)
	s.mu.Unlock()

	initial := job.snapshot()
	s.notify(job, initial)

	go func() {
		defer s.wg.Done()
		defer close(job.done)
		defer cancel()
		s.run(jobCtx, job, *app, asset)
	}()

	return initial, nil
}

// Status returns the latest snapshot for the app's download.
func (s *DownloadService) Status(appID int64) (model.Download, error) {
	job, ok := s.job(appID)
	if !ok {
		return model.Download{AppID: appID, State: model.DownloadStateIdle}, fmt.Errorf("app %d: %w", appID, ErrNoDownload)
	}
	return job.snapshot(), nil
}

// Cancel requests cooperative cancellation of an active download. The copy
// loop notices between chunks and removes the partial file.
func (s *DownloadService) Cancel(appID int64) error {
	job, ok := s.job(appID)
	if !ok || !job.snapshot().Active() {
		return fmt.Errorf("app %d: %w", appID, ErrNoDownload)
	}
	job.cancel()
	s.logger.Info("download cancellation requested", "app_id", appID)
	return nil
}

// Wait blocks until the app's current download settles or ctx is done.
func (s *DownloadService) Wait(ctx context.Context, appID int64) (model.Download, error) {
	job, ok := s.job(appID)
	if !ok {
		return model.Download{}, fmt.Errorf("app %d: %w", appID, ErrNoDownload)
	}

	select {
	case <-job.done:
		return job.snapshot(), nil
	case <-ctx.Done():
		return job.snapshot(), ctx.Err()
	}
}

// Shutdown cancels all running downloads and waits for them to clean up.
func (s *DownloadService) Shutdown(ctx context.Context) error {
	s.cancelAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *DownloadService) job(appID int64) (*downloadJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[appID]
	return job, ok
}

func (s *DownloadService) notify(job *downloadJob, snap model.Download) {
	if job.progress != nil {
		job.progress(snap)
	}
}

func (s *DownloadService) run(ctx context.Context, job *downloadJob, app model.TrackedApp, asset model.Asset) {
	snap := job.snapshot()
	log := s.logger.With("repo", app.FullName(), "asset", asset.Name, "tag", snap.ReleaseTag)
	log.Info("starting download", "url", asset.DownloadURL, "path", snap.FilePath)

	copied, err := s.fetch(ctx, job, asset)

	switch {
	case err != nil && ctx.Err() != nil:
		log.Info("download cancelled", "bytes", copied)
		s.finish(job, model.DownloadStateCancelled, "", copied)
		return
	case err != nil:
		log.Error("download failed", "error", err)
		s.finish(job, model.DownloadStateFailed, err.Error(), copied)
		return
	}

	log.Info("download complete", "bytes", copied)
	final := s.finish(job, model.DownloadStateDownloaded, "", copied)

	if s.installer == nil {
		return
	}

	if err := s.installer.Install(ctx, final.FilePath); err != nil {
		log.Error("failed to start installation", "error", err)
		s.notify(job, job.update(func(d *model.Download) {
			d.State = model.DownloadStateFailed
			d.Error = "could not start installation: " + err.Error()
		}))
		return
	}

	// The installer gives no completion signal, so the installed tag is
	// recorded as soon as it starts.
	tag := final.ReleaseTag
	if err := s.store.UpdateInstalledVersion(context.WithoutCancel(ctx), app.ID, &tag); err != nil {
		log.Error("failed to record installed version", "error", err)
	}
	log.Info("installation started")

	s.notify(job, job.update(func(d *model.Download) {
		d.State = model.DownloadStateIdle
	}))
}

// fetch streams the asset into a partial file and renames it into place on
// success. Any failure removes the partial file.
func (s *DownloadService) fetch(ctx context.Context, job *downloadJob, asset model.Asset) (copied int64, err error) {
	dest := job.snapshot().FilePath
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("create download dir: %w", err)
	}

	body, length, err := s.provider.Get().OpenAsset(ctx, asset.DownloadURL)
	if err != nil {
		return 0, err
	}
	defer func() { _ = body.Close() }()

	total := length
	if total <= 0 {
		total = asset.Size
	}
	job.update(func(d *model.Download) { d.TotalBytes = total })

	partial := dest + partialSuffix
	out, err := os.Create(partial)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = os.Remove(partial)
		}
	}()

	copied, err = s.copyWithProgress(ctx, job, out, body, total)
	if err != nil {
		return copied, err
	}

	if err = out.Close(); err != nil {
		return copied, fmt.Errorf("close file: %w", err)
	}
	if err = os.Rename(partial, dest); err != nil {
		return copied, fmt.Errorf("move file into place: %w", err)
	}

	return copied, nil
}

// copyWithProgress copies src to dst in fixed-size chunks, checking for
// cancellation before every read. Subscribers are notified when the whole
// percentage changes.
func (s *DownloadService) copyWithProgress(ctx context.Context, job *downloadJob, dst io.Writer, src io.Reader, total int64) (int64, error) {
	buf := make([]byte, copyBufferSize)
	var copied int64
	lastPercent := -1

	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return copied, fmt.Errorf("download io error: %w", err)
			}
			copied += int64(n)

			snap := job.update(func(d *model.Download) {
				d.BytesCopied = copied
				if total > 0 {
					d.Progress = min(float64(copied)/float64(total), 1)
				}
			})

			if percent := int(snap.Progress * 100); percent != lastPercent {
				lastPercent = percent
				s.notify(job, snap)
			}
		}

		if errors.Is(readErr, io.EOF) {
			return copied, nil
		}
		if readErr != nil {
			return copied, fmt.Errorf("download io error: %w", readErr)
		}
	}
}

func (s *DownloadService) finish(job *downloadJob, state model.DownloadState, msg string, copied int64) model.Download {
	snap := job.update(func(d *model.Download) {
		d.State = state
		d.Error = msg
		d.BytesCopied = copied
		d.FinishedAt = time.Now().UTC()
		if state == model.DownloadStateDownloaded {
			d.Progress = 1
		}
	})

	if s.metrics != nil {
		s.metrics.ObserveDownload(string(state), copied)
	}
	s.notify(job, snap)

	return snap
}
