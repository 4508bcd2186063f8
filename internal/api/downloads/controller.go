package downloads

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hbomb79/Siphon/internal/api/util"
	"github.com/hbomb79/Siphon/internal/download"
	"github.com/labstack/echo/v4"
)

type (
	DownloadRequest struct {
		URL          string `json:"url" validate:"required,youtube_url"`
		FormatID     string `json:"format_id" validate:"required,format_id"`
		OutputFormat string `json:"output_format" validate:"required,output_format"`
	}

	Service interface {
		ProduceFile(ctx context.Context, url string, formatID string, kind download.OutputKind) (*download.Artifact, error)
		Release(artifact *download.Artifact)
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
	eg.POST("/download", controller.download, middleware...)
}

// download produces the requested file and streams it back. The artifact is
// released for delayed removal once the body has been written (or the write
// has failed); it is never removed before then.
func (controller *Controller) download(ec echo.Context) error {
	var request DownloadRequest
	if err := util.BindAndValidate(ec, controller.validate, &request); err != nil {
		return err
	}

	kind, err := download.ParseOutputKind(request.OutputFormat)
	if err != nil {
		return util.ValidationError("Output format must be mp4 or mp3", err)
	}

	artifact, err := controller.service.ProduceFile(ec.Request().Context(), strings.TrimSpace(request.URL), request.FormatID, kind)
	if err != nil {
		return util.ServiceError(err)
	}
	defer controller.service.Release(artifact)

	header := ec.Response().Header()
	header.Set(echo.HeaderContentType, artifact.ContentType)
	header.Set(echo.HeaderContentDisposition, artifact.ContentDisposition)
	return ec.File(artifact.Path)
}
