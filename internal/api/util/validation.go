package util

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var (
	// Accepted video URL shapes. Matching is anchored at the start only, so
	// trailing query parameters (playlists, timestamps) are tolerated.
	videoURLPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^(?:https?://)?(?:www\.)?youtube\.com/watch\?v=[\w-]+`),
		regexp.MustCompile(`^(?:https?://)?(?:www\.)?youtu\.be/[\w-]+`),
		regexp.MustCompile(`^(?:https?://)?(?:m\.)?youtube\.com/watch\?v=[\w-]+`),
	}

	formatIDPattern = regexp.MustCompile(`^[A-Za-z0-9+]+$`)
)

// IsVideoURL reports whether url is one of the accepted video URL shapes.
func IsVideoURL(url string) bool {
	for _, pattern := range videoURLPatterns {
		if pattern.MatchString(url) {
			return true
		}
	}

	return false
}

// IsFormatID reports whether id consists only of ASCII alphanumerics and
// the '+' combinator, with at least one alphanumeric.
func IsFormatID(id string) bool {
	return formatIDPattern.MatchString(id) && strings.Trim(id, "+") != ""
}

// NewValidator constructs the validator used by every controller, with the
// custom tags:
//   - youtube_url: an accepted video URL
//   - format_id: alphanumerics and '+'
//   - output_format: mp4 or mp3, case-insensitively
func NewValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		return jsonName(field.Tag.Get("json"), field.Name)
	})

	mustRegister(validate, "youtube_url", func(fl validator.FieldLevel) bool {
		return IsVideoURL(strings.TrimSpace(fl.Field().String()))
	})
	mustRegister(validate, "format_id", func(fl validator.FieldLevel) bool {
		return IsFormatID(fl.Field().String())
	})
	mustRegister(validate, "output_format", func(fl validator.FieldLevel) bool {
		switch strings.ToLower(strings.TrimSpace(fl.Field().String())) {
		case "mp4", "mp3":
			return true
		default:
			return false
		}
	})

	return validate
}

// BindAndValidate decodes the request body in to target and validates it,
// translating any failure in to a VALIDATION_ERROR.
func BindAndValidate(ec echo.Context, validate *validator.Validate, target any) error {
	if err := ec.Bind(target); err != nil {
		return ValidationError("Invalid request body", err)
	}

	if err := validate.Struct(target); err != nil {
		return ValidationError(describeValidation(err), err)
	}

	return nil
}

func describeValidation(err error) string {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return "Invalid request body"
	}

	messages := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		switch fe.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", fe.Field()))
		case "youtube_url":
			messages = append(messages, "Invalid YouTube URL")
		case "format_id":
			messages = append(messages, "Invalid format ID")
		case "output_format":
			messages = append(messages, "Output format must be mp4 or mp3")
		default:
			messages = append(messages, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}

	return strings.Join(messages, "; ")
}

func mustRegister(validate *validator.Validate, tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("failed to register validation %s: %v", tag, err))
	}
}

func jsonName(tag string, fallback string) string {
	name, _, _ := strings.Cut(tag, ",")
	if name == "" || name == "-" {
		return fallback
	}

	return name
}
