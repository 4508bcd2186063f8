package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/hbomb79/Siphon/internal/download"
	"github.com/hbomb79/Siphon/pkg/logger"
	"github.com/labstack/echo/v4"
)

const (
	CodeValidation = "VALIDATION_ERROR"
	CodeHTTP       = "HTTP_ERROR"
	CodeServer     = "SERVER_ERROR"
)

type APIError struct {
	// Human readable error display message
	Message string

	// A machine readable and stable identifier for the error case being represented
	Code string

	// Used to alter the HTTP response status in accordance with the error
	Status int

	// Additional message for internal logging only. Will not be included in the message
	// sent to the user.
	InternalMessage string
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
}

// Error satisifies the Go error interface and simply exposes the
// message contained by this APIError.
func (err APIError) Error() string {
	return fmt.Sprintf("api error: %s", err.Message)
}

// ValidationError is returned for request bodies which fail binding or
// validation.
func ValidationError(message string, err error) APIError {
	return APIError{Message: message, Code: CodeValidation, Status: http.StatusBadRequest, InternalMessage: err.Error()}
}

// GetHTTPErrorHandler returns an echo HTTP error handler
// which understands how to interpret APIError. Echo's own HTTPError
// (e.g., unknown routes, method not allowed) is rendered in the same
// envelope, and anything else (including recovered panics) is reported
// as a SERVER_ERROR without exposing the underlying error.
func GetHTTPErrorHandler() echo.HTTPErrorHandler {
	log := logger.Get("API")
	return func(err error, ctx echo.Context) {
		if ctx.Response().Committed {
			log.Warnf("%s %s failed after the response was committed: %v\n", ctx.Request().Method, ctx.Request().RequestURI, err)
			return
		}

		var apiErr APIError
		var httpErr *echo.HTTPError
		switch {
		case errors.As(err, &apiErr):
		case errors.As(err, &httpErr):
			apiErr = APIError{Message: fmt.Sprint(httpErr.Message), Code: CodeHTTP, Status: httpErr.Code}
		default:
			log.Warnf(
				"%s request to %s caused error response, however the response does not satisfy the APIError interface. Reporting as server error\n",
				ctx.Request().Method, ctx.Request().RequestURI,
			)
			apiErr = APIError{Message: "Server error", Code: CodeServer, Status: http.StatusInternalServerError, InternalMessage: err.Error()}
		}

		if apiErr.Status == 0 {
			apiErr.Status = http.StatusInternalServerError
		}
		if len(apiErr.Message) == 0 {
			apiErr.Message = http.StatusText(apiErr.Status)
		}
		if len(apiErr.Code) == 0 {
			apiErr.Code = CodeHTTP
		}
		if len(apiErr.InternalMessage) > 0 {
			log.Errorf("Request failure (%s), internal error: %s\n", apiErr.Code, apiErr.InternalMessage)
		}

		if err := ctx.JSON(apiErr.Status, ErrorResponse{Success: false, Error: apiErr.Message, ErrorCode: apiErr.Code}); err != nil {
			log.Errorf("Failed to write error response: %v\n", err)
		}
	}
}

// ServiceError translates a failure from the download service in to an
// APIError, choosing the response status from the failure code. Errors which
// did not originate from the service are reported as SERVER_ERROR.
func ServiceError(err error) APIError {
	var downloadErr *download.Error
	if !errors.As(err, &downloadErr) {
		return APIError{Message: "Server error", Code: CodeServer, Status: http.StatusInternalServerError, InternalMessage: err.Error()}
	}

	apiErr := APIError{Message: downloadErr.Message, Code: string(downloadErr.Code), InternalMessage: err.Error()}
	switch downloadErr.Code {
	case download.CodeVideoNotFound:
		apiErr.Status = http.StatusNotFound
	case download.CodeAgeRestricted:
		apiErr.Status = http.StatusForbidden
	case download.CodeFetchError, download.CodeDownloadError, download.CodeFileNotCreated:
		apiErr.Status = http.StatusBadRequest
	default:
		apiErr.Status = http.StatusInternalServerError
	}

	return apiErr
}
