package status

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const (
	Name        = "YouTube Downloader API"
	Version     = "1.0.0"
	Description = "Educational YouTube Video/Audio Downloader"
	Disclaimer  = "For personal/educational use only. Downloading copyrighted content violates YouTube ToS."
)

type (
	IndexResponse struct {
		Name        string            `json:"name"`
		Version     string            `json:"version"`
		Description string            `json:"description"`
		Disclaimer  string            `json:"disclaimer"`
		Endpoints   map[string]string `json:"endpoints"`
	}

	HealthResponse struct {
		Status          string `json:"status"`
		Version         string `json:"version"`
		FfmpegAvailable bool   `json:"ffmpeg_available"`
	}

	// Probe reports whether the transcoder can currently be resolved.
	Probe interface {
		Available() bool
	}

	Controller struct {
		probe Probe
	}
)

func New(probe Probe) *Controller {
	return &Controller{probe: probe}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("/", controller.index)
	eg.GET("/health", controller.health)
}

func (controller *Controller) index(ec echo.Context) error {
	return ec.JSON(http.StatusOK, IndexResponse{
		Name:        Name,
		Version:     Version,
		Description: Description,
		Disclaimer:  Disclaimer,
		Endpoints: map[string]string{
			"health":        "/health",
			"fetch_formats": "POST /api/fetch-formats",
			"download":      "POST /api/download",
		},
	})
}

// health is always 200: a missing transcoder degrades mp3 output but the
// service itself is still up.
func (controller *Controller) health(ec echo.Context) error {
	return ec.JSON(http.StatusOK, HealthResponse{
		Status:          "healthy",
		Version:         Version,
		FfmpegAvailable: controller.probe.Available(),
	})
}
