package handler

import (
	"errors"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"web-dlp/constant"
	"web-dlp/service"
)

const (
	errInvalidURL     = "invalid_url"
	errInvalidFormat  = "invalid_format"
	errInvalidRequest = "invalid_request"
)

var registerOnce sync.Once

// RegisterValidators adds the youtube_url and media_format tags to gin's
// binding engine.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("youtube_url", func(fl validator.FieldLevel) bool {
			return service.IsYouTubeURL(fl.Field().String())
		})
		_ = v.RegisterValidation("media_format", func(fl validator.FieldLevel) bool {
			return constant.Format(fl.Field().String()).Valid()
		})
	})
}

// bindingError picks the client error code for a failed bind.
func bindingError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errInvalidRequest
	}
	for _, fe := range verrs {
		switch {
		case fe.Tag() == "media_format":
			return errInvalidFormat
		case fe.Field() == "URL":
			return errInvalidURL
		}
	}
	return errInvalidRequest
}
