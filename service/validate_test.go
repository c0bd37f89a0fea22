package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"web-dlp/constant"
)

func TestIsYouTubeURL(t *testing.T) {
	valid := []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"http://youtube.com/watch?v=dQw4w9WgXcQ",
		"youtube.com/shorts/abc",
		"https://youtu.be/dQw4w9WgXcQ",
		"www.youtube.com/playlist?list=PL123",
	}
	for _, u := range valid {
		assert.True(t, IsYouTubeURL(u), u)
	}

	invalid := []string{
		"",
		"https://vimeo.com/123",
		"https://www.youtube.com/",
		"ftp://youtube.com/watch?v=1",
		"https://notyoutube.com/watch?v=1",
		"https://m.youtube.com/watch?v=1",
	}
	for _, u := range invalid {
		assert.False(t, IsYouTubeURL(u), u)
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, constant.FormatVideo, f)

	f, err = ParseFormat("mp3")
	require.NoError(t, err)
	assert.Equal(t, constant.FormatAudio, f)

	f, err = ParseFormat("mp4")
	require.NoError(t, err)
	assert.Equal(t, constant.FormatVideo, f)

	for _, value := range []string{"webm", "MP4", "Mp3", " mp3"} {
		_, err = ParseFormat(value)
		assert.ErrorIs(t, err, ErrInvalidFormat, value)
		assert.ErrorIs(t, err, ErrValidation, value)
	}
}
