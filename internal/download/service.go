// Package download orchestrates producing a file for a client: it
// re-enumerates the video for its title, stages the requested format,
// optionally converts it, and hands the result over for delayed cleanup.
package download

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/bytes"

	"github.com/hbomb79/Siphon/internal/media"
	"github.com/hbomb79/Siphon/internal/sanitize"
	"github.com/hbomb79/Siphon/pkg/logger"
	"github.com/hbomb79/Siphon/pkg/worker"
)

var log = logger.Get("Download")

type (
	Enumerator interface {
		Enumerate(ctx context.Context, url string) (*media.VideoMetadata, error)
	}

	Transcoder interface {
		ConvertToAudio(ctx context.Context, input string, output string) error
		ProbeDuration(ctx context.Context, path string) (int, error)
	}

	Scheduler interface {
		ScheduleRemoval(path string, delay time.Duration, onRemoved func())
		Delay() time.Duration
	}

	Pool interface {
		Do(ctx context.Context, label string, task worker.Task) error
	}

	Config struct {
		StagingDir string

		// FetchTimeout bounds a single fetch of the requested format.
		FetchTimeout time.Duration

		// MaxFileSizeMB is advisory: larger artifacts are logged, but are
		// still returned.
		MaxFileSizeMB int
	}

	// Artifact is a produced file, ready to be streamed to the client.
	// Once handed to Release the artifact belongs to the cleanup scheduler.
	Artifact struct {
		JobID              uuid.UUID
		Path               string
		Filename           string
		ContentType        string
		ContentDisposition string
		Size               int64
		Duration           int

		job *Job
	}

	Service struct {
		config     Config
		enumerator Enumerator
		fetcher    media.Fetcher
		transcoder Transcoder
		scheduler  Scheduler
		pool       Pool
	}
)

func NewService(config Config, enumerator Enumerator, fetcher media.Fetcher, transcoder Transcoder, scheduler Scheduler, pool Pool) *Service {
	return &Service{
		config:     config,
		enumerator: enumerator,
		fetcher:    fetcher,
		transcoder: transcoder,
		scheduler:  scheduler,
		pool:       pool,
	}
}

// EnumerateFormats returns the normalized metadata for url. It has no side
// effects on disk.
func (service *Service) EnumerateFormats(ctx context.Context, url string) (*media.VideoMetadata, error) {
	metadata, err := service.enumerate(ctx, url)
	if err != nil {
		return nil, enumerationError(err)
	}

	return metadata, nil
}

// ProduceFile materializes formatID of url in the requested container. On
// success the returned artifact exists on disk; the caller must pass it to
// Release once the response has been written.
func (service *Service) ProduceFile(ctx context.Context, url string, formatID string, kind OutputKind) (artifact *Artifact, err error) {
	job := newJob(url, formatID, kind)
	defer func() {
		if r := recover(); r != nil {
			artifact = nil
			err = newError(CodeServerError, "An unexpected error occurred", fmt.Errorf("job %s panicked: %v", job.ID, r))
		}

		if err != nil {
			job.advance(StageError)
			log.Emit(logger.ERROR, "Job %s failed: %v\n", job.ID, err)
		}
	}()

	log.Emit(logger.NEW, "Job %s started for %s (format %s, output %s)\n", job.ID, url, formatID, kind)

	// The title is needed to name the file, so the video is enumerated
	// again. Nothing is cached between requests.
	metadata, err := service.enumerate(ctx, url)
	if err != nil {
		if errors.Is(err, worker.ErrTaskPanicked) {
			return nil, newError(CodeServerError, "An unexpected error occurred", err)
		}
		return nil, newError(CodeFetchError, "Could not fetch video information", err)
	}

	title := sanitize.Filename(metadata.Title)
	job.FinalPath = filepath.Join(service.config.StagingDir, fmt.Sprintf("%s.%s", title, kind))
	job.StagingPath = job.FinalPath
	if kind == AudioContainer {
		job.StagingPath = filepath.Join(service.config.StagingDir, fmt.Sprintf("%s_temp.%s", title, stagingExtension(metadata, formatID)))
	}

	job.advance(StageFetching)
	if err := service.fetch(ctx, job); err != nil {
		return nil, err
	}

	if kind == AudioContainer {
		job.advance(StageConverting)
		if err := service.convert(ctx, job); err != nil {
			return nil, err
		}
	}

	info, err := os.Stat(job.FinalPath)
	if err != nil {
		return nil, newError(CodeOutputNotCreated, "Output file was not created", err)
	}

	job.advance(StageReady)
	artifact = &Artifact{
		JobID:              job.ID,
		Path:               job.FinalPath,
		Filename:           filepath.Base(job.FinalPath),
		ContentType:        kind.ContentType(),
		ContentDisposition: ContentDisposition(filepath.Base(job.FinalPath)),
		Size:               info.Size(),
		Duration:           service.probe(ctx, job),
		job:                job,
	}

	if limit := int64(service.config.MaxFileSizeMB) * 1024 * 1024; limit > 0 && artifact.Size > limit {
		log.Emit(logger.WARNING, "Job %s produced %s, exceeding the advisory limit of %s\n", job.ID, bytes.Format(artifact.Size), bytes.Format(limit))
	}

	log.Emit(logger.SUCCESS, "Job %s ready: %s (%s)\n", job.ID, artifact.Filename, bytes.Format(artifact.Size))
	return artifact, nil
}

// Release hands the artifact to the cleanup scheduler. It never blocks.
func (service *Service) Release(artifact *Artifact) {
	if artifact == nil {
		return
	}

	job := artifact.job
	job.advance(StageScheduled)
	service.scheduler.ScheduleRemoval(artifact.Path, service.scheduler.Delay(), func() {
		job.advance(StageRemoved)
	})
}

// Stage reports how far the artifact's job has progressed. Once released it
// moves to StageScheduled, and then to StageRemoved when the file is gone.
func (artifact *Artifact) Stage() Stage { return artifact.job.Stage }

func (service *Service) enumerate(ctx context.Context, url string) (*media.VideoMetadata, error) {
	var metadata *media.VideoMetadata
	err := service.pool.Do(ctx, "enumerate "+url, func() error {
		var err error
		metadata, err = service.enumerator.Enumerate(context.WithoutCancel(ctx), url)
		return err
	})

	return metadata, err
}

func (service *Service) fetch(ctx context.Context, job *Job) error {
	err := service.pool.Do(ctx, "fetch "+job.ID.String(), func() error {
		fetchCtx, cancel := service.bounded(ctx, service.config.FetchTimeout)
		defer cancel()

		return service.fetcher.Fetch(fetchCtx, job.URL, job.FormatID, job.StagingPath)
	})
	if err != nil {
		removeQuietly(job.StagingPath)
		if errors.Is(err, worker.ErrTaskPanicked) {
			return newError(CodeServerError, "An unexpected error occurred", err)
		}
		return newError(CodeDownloadError, "Download failed", err)
	}

	if _, err := os.Stat(job.StagingPath); err != nil {
		return newError(CodeFileNotCreated, "Download file was not created", err)
	}

	// Fetchers may stamp the file with the upstream Last-Modified time, which
	// would make a fresh artifact look abandoned to the staging sweep.
	now := time.Now()
	if err := os.Chtimes(job.StagingPath, now, now); err != nil {
		log.Emit(logger.WARNING, "Job %s: failed to refresh modification time of %s: %v\n", job.ID, job.StagingPath, err)
	}

	return nil
}

// convert transcodes the staged file to the final path. The staged input is
// removed whether or not the conversion succeeds.
func (service *Service) convert(ctx context.Context, job *Job) error {
	defer removeQuietly(job.StagingPath)

	err := service.pool.Do(ctx, "convert "+job.ID.String(), func() error {
		return service.transcoder.ConvertToAudio(context.WithoutCancel(ctx), job.StagingPath, job.FinalPath)
	})
	if err != nil {
		if errors.Is(err, worker.ErrTaskPanicked) {
			return newError(CodeServerError, "An unexpected error occurred", err)
		}
		return newError(CodeConversionError, "Conversion failed", err)
	}

	return nil
}

// probe annotates the artifact with its duration. Failure is not fatal.
func (service *Service) probe(ctx context.Context, job *Job) int {
	var duration int
	err := service.pool.Do(ctx, "probe "+job.ID.String(), func() error {
		var err error
		duration, err = service.transcoder.ProbeDuration(context.WithoutCancel(ctx), job.FinalPath)
		return err
	})
	if err != nil {
		log.Emit(logger.DEBUG, "Job %s: unable to probe duration: %v\n", job.ID, err)
		return 0
	}

	return duration
}

func (service *Service) bounded(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if timeout <= 0 {
		return context.WithCancel(detached)
	}

	return context.WithTimeout(detached, timeout)
}

// stagingExtension keeps the source container's extension for the staged
// audio. Merged pairs are always muxed in to mp4, and an unknown format
// falls back to m4a.
func stagingExtension(metadata *media.VideoMetadata, formatID string) string {
	if strings.Contains(formatID, "+") {
		return string(VideoContainer)
	}

	for _, format := range metadata.Formats {
		if format.FormatID == formatID && format.Extension != "" {
			return format.Extension
		}
	}

	return "m4a"
}

// ContentDisposition builds an attachment disposition carrying the filename
// percent-encoded per RFC 5987.
func ContentDisposition(filename string) string {
	return "attachment; filename*=UTF-8''" + strings.ReplaceAll(url.QueryEscape(filename), "+", "%20")
}

func removeQuietly(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Emit(logger.WARNING, "Failed to remove staged file %s: %v\n", path, err)
	}
}
