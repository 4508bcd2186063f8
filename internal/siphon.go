package internal

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/hbomb79/Siphon/internal/api"
	"github.com/hbomb79/Siphon/internal/cleanup"
	"github.com/hbomb79/Siphon/internal/download"
	"github.com/hbomb79/Siphon/internal/ffmpeg"
	"github.com/hbomb79/Siphon/internal/media"
	"github.com/hbomb79/Siphon/internal/ratelimit"
	"github.com/hbomb79/Siphon/internal/youtube"
	"github.com/hbomb79/Siphon/internal/ytdlp"
	"github.com/hbomb79/Siphon/pkg/logger"
	"github.com/hbomb79/Siphon/pkg/worker"
	"golang.org/x/time/rate"
)

var log = logger.Get("Core")

type (
	RunnableService interface {
		Run(context.Context) error
	}

	// backend pairs the two halves of an extractor implementation.
	backend interface {
		media.Extractor
		media.Fetcher
	}
)

// siphonImpl represents the top-level object for the server, and is responsible
// for constructing each of the components and running the long-lived ones.
type siphonImpl struct {
	config     SiphonConfig
	stagingDir string

	pool        *worker.WorkerPool
	transcoder  *ffmpeg.Transcoder
	limiter     *ratelimit.Limiter
	scheduler   *cleanup.Scheduler
	service     *download.Service
	restGateway *api.RestGateway
}

func New(config SiphonConfig) (*siphonImpl, error) {
	logger.SetMinLoggingLevel(logger.ParseLevel(config.LogLevel).Level())
	log.Emit(logger.DEBUG, "Bootstrapping Siphon services using config: %#v\n", config)

	stagingDir, err := config.StagingDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging dir %s: %w", stagingDir, err)
	}

	siphon := &siphonImpl{
		config:     config,
		stagingDir: stagingDir,
		pool:       worker.NewWorkerPool(config.Concurrency.Workers),
		transcoder: ffmpeg.New(config.Transcoder),
		limiter:    ratelimit.New(),
	}

	// A missing transcoder only affects mp3 output and merged formats, so it
	// is reported rather than treated as fatal.
	if err := siphon.transcoder.Validate(); err != nil {
		log.Emit(logger.WARNING, "Transcoder unavailable, audio conversion will fail: %v\n", err)
	}

	siphon.scheduler = cleanup.NewScheduler(cleanup.Config{
		Dir:           stagingDir,
		Delay:         config.Staging.CleanupDelay,
		SweepMaxAge:   config.Staging.SweepMaxAge,
		SweepInterval: config.Staging.SweepInterval,
	}, cleanup.SystemClock)
	siphon.scheduler.OnSweep(func() {
		if removed := siphon.limiter.Sweep(siphon.longestWindow()); removed > 0 {
			log.Emit(logger.DEBUG, "Dropped %d idle rate limit bucket(s)\n", removed)
		}
	})

	extractor := siphon.newBackend()
	siphon.service = download.NewService(
		download.Config{
			StagingDir:    stagingDir,
			FetchTimeout:  config.Extractor.FetchTimeout,
			MaxFileSizeMB: config.Staging.MaxFileSizeMB,
		},
		media.NewEnumerator(extractor, siphon.newThrottle()),
		extractor,
		siphon.transcoder,
		siphon.scheduler,
		siphon.pool,
	)

	siphon.restGateway = api.NewRestGateway(&config.RestConfig, &config.RateLimit, siphon.limiter, siphon.service, siphon.transcoder)
	return siphon, nil
}

// Run will start all of Siphon by bringing up the worker pool, the cleanup
// scheduler and the REST gateway.
//
// This function will not return until Siphon is stopped.
// To stop Siphon, the provided context must be cancelled. Errors from which Siphon cannot recover
// will also cause Siphon to stop.
func (siphon *siphonImpl) Run(parent context.Context) error {
	if err := siphon.pool.Start(); err != nil {
		return err
	}
	defer siphon.pool.Close()

	ctx, cancel := context.WithCancelCause(parent)
	crashHandler := func(label string, err error) {
		log.Emit(logger.FATAL, "Service crash (%s)! %s\n", label, err.Error())
		cancel(err)
	}

	// The scheduler outlives the gateway so that artifacts still being
	// streamed during shutdown are not removed underneath the response.
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	schedulerWg := &sync.WaitGroup{}
	siphon.spawnAsyncService(schedulerCtx, schedulerWg, siphon.scheduler, "cleanup-scheduler", crashHandler)

	gatewayWg := &sync.WaitGroup{}
	siphon.spawnAsyncService(ctx, gatewayWg, siphon.restGateway, "rest-gateway", crashHandler)
	log.Emit(logger.SUCCESS, "Siphon services spawned! Staging files in %s\n", siphon.stagingDir)

	gatewayWg.Wait()
	stopScheduler()
	schedulerWg.Wait()

	if cause := context.Cause(ctx); cause != nil && cause != ctx.Err() {
		return cause
	}

	return nil
}

// spawnAsyncService will run the provided function/service as it's own
// go-routine, ensuring that the Siphon service waitgroup is updated correctly
func (siphon *siphonImpl) spawnAsyncService(context context.Context, wg *sync.WaitGroup, service RunnableService, serviceLabel string, crashHandler func(string, error)) {
	log.Emit(logger.NEW, "Spawning %s\n", serviceLabel)
	wg.Add(1)

	go func(wg *sync.WaitGroup, label string, crash func(string, error)) {
		defer func() {
			if r := recover(); r != nil {
				crash(label, fmt.Errorf("panic %v", r))
			}
		}()

		defer wg.Done()
		if err := service.Run(context); err != nil {
			crash(label, err)
		}
	}(wg, serviceLabel, crashHandler)
}

func (siphon *siphonImpl) newBackend() backend {
	extractor := siphon.config.Extractor
	if extractor.Backend == BackendNative {
		log.Emit(logger.INFO, "Using native extractor backend\n")
		return youtube.New(youtube.Config{SocketTimeout: extractor.SocketTimeout}, siphon.transcoder)
	}

	log.Emit(logger.INFO, "Using yt-dlp extractor backend (%s)\n", extractor.YtDlpPath)
	return ytdlp.New(ytdlp.Config{
		BinaryPath:    extractor.YtDlpPath,
		SocketTimeout: extractor.SocketTimeout,
		FfmpegPath:    siphon.transcoder.FfmpegPath(),
	})
}

// newThrottle bounds how quickly enumerations reach the platform, across all
// clients. A non-positive rate disables throttling.
func (siphon *siphonImpl) newThrottle() *rate.Limiter {
	extractor := siphon.config.Extractor
	if extractor.RequestsPerSecond <= 0 {
		return nil
	}

	burst := extractor.Burst
	if burst < 1 {
		burst = 1
	}

	return rate.NewLimiter(rate.Limit(extractor.RequestsPerSecond), burst)
}

func (siphon *siphonImpl) longestWindow() time.Duration {
	minutes := max(siphon.config.RateLimit.FetchWindowMinutes, siphon.config.RateLimit.DownloadWindowMinutes)
	return time.Duration(minutes) * time.Minute
}
