package service

import (
	"errors"
	"regexp"

	"web-dlp/constant"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrInvalidURL    = errors.New("invalid YouTube URL")
	ErrInvalidFormat = errors.New("invalid format, use mp3 or mp4")
)

var youtubeURL = regexp.MustCompile(`^(https?://)?(www\.)?(youtube\.com|youtu\.be)/.+`)

func IsYouTubeURL(url string) bool {
	return youtubeURL.MatchString(url)
}

// ParseFormat maps an empty value to the default format. Matching is exact,
// "MP3" is rejected.
func ParseFormat(value string) (constant.Format, error) {
	if value == "" {
		return constant.DefaultFormat, nil
	}
	format := constant.Format(value)
	if !format.Valid() {
		return "", errors.Join(ErrValidation, ErrInvalidFormat)
	}
	return format, nil
}

func ValidateURL(url string) error {
	if !IsYouTubeURL(url) {
		return errors.Join(ErrValidation, ErrInvalidURL)
	}
	return nil
}
