package formats

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hbomb79/Siphon/internal/api/util"
	"github.com/hbomb79/Siphon/internal/media"
	"github.com/labstack/echo/v4"
)

type (
	FetchRequest struct {
		URL string `json:"url" validate:"required,youtube_url"`

		// Accepted for compatibility with existing clients; has no effect.
		Language string `json:"language"`
	}

	FetchResponse struct {
		Success       bool        `json:"success"`
		VideoID       string      `json:"video_id"`
		Title         string      `json:"title"`
		Duration      int         `json:"duration"`
		Thumbnail     string      `json:"thumbnail"`
		Formats       []FormatDto `json:"formats"`
		AgeRestricted bool        `json:"age_restricted"`
		IsLive        bool        `json:"is_live"`
		DownloadURL   string      `json:"download_url"`
	}

	FormatDto struct {
		FormatID        string   `json:"format_id"`
		FormatName      string   `json:"format_name"`
		Extension       string   `json:"ext"`
		Height          *float64 `json:"height"`
		Width           *float64 `json:"width"`
		FPS             *float64 `json:"fps"`
		VideoCodec      *string  `json:"vcodec"`
		AudioCodec      *string  `json:"acodec"`
		AudioBitrate    *float64 `json:"audio_bitrate"`
		VideoBitrate    *float64 `json:"video_bitrate"`
		EstimatedSizeMB *float64 `json:"estimated_size_mb"`
		IsDash          bool     `json:"is_dash"`
	}

	Service interface {
		EnumerateFormats(ctx context.Context, url string) (*media.VideoMetadata, error)
	}

	Controller struct {
		service  Service
		validate *validator.Validate
	}
)

func New(validate *validator.Validate, service Service) *Controller {
	return &Controller{service: service, validate: validate}
}

func (controller *Controller) SetRoutes(eg *echo.Group, middleware ...echo.MiddlewareFunc) {
	eg.POST("/fetch-formats", controller.fetch, middleware...)
}

func (controller *Controller) fetch(ec echo.Context) error {
	var request FetchRequest
	if err := util.BindAndValidate(ec, controller.validate, &request); err != nil {
		return err
	}

	url := strings.TrimSpace(request.URL)
	metadata, err := controller.service.EnumerateFormats(ec.Request().Context(), url)
	if err != nil {
		return util.ServiceError(err)
	}

	return ec.JSON(http.StatusOK, FetchResponse{
		Success:       true,
		VideoID:       metadata.VideoID,
		Title:         metadata.Title,
		Duration:      metadata.Duration,
		Thumbnail:     metadata.Thumbnail,
		Formats:       util.ApplyConversion(metadata.Formats, FormatToDto),
		AgeRestricted: metadata.AgeRestricted,
		IsLive:        metadata.IsLive,
		DownloadURL:   url,
	})
}

func FormatToDto(format media.FormatDescriptor) FormatDto {
	return FormatDto{
		FormatID:        format.FormatID,
		FormatName:      format.FormatName,
		Extension:       format.Extension,
		Height:          format.Height,
		Width:           format.Width,
		FPS:             format.FPS,
		VideoCodec:      format.VideoCodec,
		AudioCodec:      format.AudioCodec,
		AudioBitrate:    format.AudioBitrate,
		VideoBitrate:    format.VideoBitrate,
		EstimatedSizeMB: format.EstimatedSizeMB,
		IsDash:          format.IsDash,
	}
}
