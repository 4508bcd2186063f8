package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/hbomb79/Siphon/internal/api/downloads"
	"github.com/hbomb79/Siphon/internal/api/formats"
	"github.com/hbomb79/Siphon/internal/api/status"
	"github.com/hbomb79/Siphon/internal/api/util"
	"github.com/hbomb79/Siphon/internal/ratelimit"
	"github.com/hbomb79/Siphon/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

var log = logger.Get("API")

const shutdownGrace = 10 * time.Second

type (
	RestConfig struct {
		HostAddr       string   `yaml:"host_address" env:"API_HOST_ADDR" env-default:"0.0.0.0:8000"`
		AllowedOrigins []string `yaml:"allowed_origins" env:"API_ALLOWED_ORIGINS" env-default:"*"`
		BodyLimit      string   `yaml:"body_limit" env:"API_BODY_LIMIT" env-default:"64K"`
	}

	// RateLimitConfig holds the admission policy for each of the rate
	// limited endpoints. When Enabled is false, no admission checks are
	// performed at all.
	RateLimitConfig struct {
		Enabled               bool `yaml:"enabled" env:"RATE_LIMIT_ENABLED" env-default:"true"`
		FetchMaxRequests      int  `yaml:"fetch_max_requests" env:"RATE_LIMIT_FETCH_MAX" env-default:"30"`
		FetchWindowMinutes    int  `yaml:"fetch_window_minutes" env:"RATE_LIMIT_FETCH_WINDOW" env-default:"10"`
		DownloadMaxRequests   int  `yaml:"download_max_requests" env:"RATE_LIMIT_DOWNLOAD_MAX" env-default:"5"`
		DownloadWindowMinutes int  `yaml:"download_window_minutes" env:"RATE_LIMIT_DOWNLOAD_WINDOW" env-default:"10"`
	}

	// Service is the union of the behaviour the controllers require from
	// the download orchestrator.
	Service interface {
		formats.Service
		downloads.Service
	}

	// The RestGateway is a thin-wrapper around the Echo HTTP router. It's sole responsbility
	// is to create the routes Siphon exposes and to enforce the admission checks
	// on the rate limited endpoints.
	RestGateway struct {
		config             *RestConfig
		ec                 *echo.Echo
		statusController   *status.Controller
		formatsController  *formats.Controller
		downloadController *downloads.Controller
	}
)

// NewRestGateway constructs the Echo router and populates it with all the
// routes defined by the various controllers.
func NewRestGateway(
	config *RestConfig,
	rateLimits *RateLimitConfig,
	limiter *ratelimit.Limiter,
	service Service,
	probe status.Probe,
) *RestGateway {
	ec := echo.New()
	ec.OnAddRouteHandler = func(host string, route echo.Route, handler echo.HandlerFunc, middleware []echo.MiddlewareFunc) {
		log.Emit(logger.DEBUG, "Registered new route %s %s\n", route.Method, route.Path)
	}
	ec.HidePort = true
	ec.HideBanner = true
	ec.HTTPErrorHandler = util.GetHTTPErrorHandler()

	validate := util.NewValidator()
	gateway := &RestGateway{
		config:             config,
		ec:                 ec,
		statusController:   status.New(probe),
		formatsController:  formats.New(validate, service),
		downloadController: downloads.New(validate, service),
	}

	ec.Use(middleware.Logger())
	ec.Use(middleware.Recover())
	ec.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: config.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
		// Browsers can only read the filename of a cross origin download
		// if the header is exposed explicitly.
		ExposeHeaders: []string{echo.HeaderContentDisposition},
	}))
	if config.BodyLimit != "" {
		ec.Use(middleware.BodyLimit(config.BodyLimit))
	}
	ec.Pre(middleware.RemoveTrailingSlash())

	gateway.statusController.SetRoutes(ec.Group(""))

	api := ec.Group("/api")
	gateway.formatsController.SetRoutes(api, admission(limiter, rateLimits, ratelimit.Policy{
		Endpoint:      "fetch_formats",
		MaxRequests:   rateLimits.FetchMaxRequests,
		WindowMinutes: rateLimits.FetchWindowMinutes,
	})...)
	gateway.downloadController.SetRoutes(api, admission(limiter, rateLimits, ratelimit.Policy{
		Endpoint:      "download",
		MaxRequests:   rateLimits.DownloadMaxRequests,
		WindowMinutes: rateLimits.DownloadWindowMinutes,
	})...)

	return gateway
}

// ServeHTTP exposes the underlying router, primarily so the gateway
// can be exercised without binding a socket.
func (gateway *RestGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	gateway.ec.ServeHTTP(w, r)
}

func (gateway *RestGateway) Run(parentCtx context.Context) error {
	ctx, ctxCancel := context.WithCancelCause(parentCtx)
	wg := &sync.WaitGroup{}

	// Start echo router
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Emit(logger.INFO, "Listening on %s\n", gateway.config.HostAddr)
		if err := gateway.ec.Start(gateway.config.HostAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ctxCancel(err)
		}
	}()

	// Start thread to listen for context cancellation. In-flight downloads are
	// given a grace period to finish streaming before the server is closed.
	wg.Add(1)
	go func(ec *echo.Echo) {
		defer wg.Done()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := ec.Shutdown(shutdownCtx); err != nil {
			log.Emit(logger.WARNING, "Graceful shutdown failed, closing: %v\n", err)
			ec.Close()
		}
	}(gateway.ec)

	wg.Wait()

	// Return cancellation cause if any, otherwise nil as parent context
	// cancellation is not an error case we should report.
	if cause := context.Cause(ctx); cause != ctx.Err() {
		return cause
	}

	return nil
}

func admission(limiter *ratelimit.Limiter, config *RateLimitConfig, policy ratelimit.Policy) []echo.MiddlewareFunc {
	if limiter == nil || !config.Enabled {
		return nil
	}

	return []echo.MiddlewareFunc{ratelimit.Middleware(limiter, policy)}
}
