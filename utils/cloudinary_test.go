package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPublicID(t *testing.T) {
	cases := map[string]string{
		"https://res.cloudinary.com/demo/image/upload/v1234567890/events/abc123.jpg": "events/abc123",
		"https://res.cloudinary.com/demo/image/upload/businesses/logo.png":           "businesses/logo",
		"https://res.cloudinary.com/demo/image/upload/v99/a/b/c.webp":               "a/b/c",
		"https://res.cloudinary.com/demo/image/upload/vintage/shop.jpg":             "vintage/shop",
	}
	for in, want := range cases {
		got, err := extractPublicID(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestExtractPublicID_Invalid(t *testing.T) {
	_, err := extractPublicID("https://example.com/no/marker.jpg")
	assert.Error(t, err)

	_, err = extractPublicID("https://res.cloudinary.com/demo/image/upload")
	assert.Error(t, err)
}

func TestUploadFormFiles_NilForm(t *testing.T) {
	urls, err := UploadFormFiles(nil, "images", FolderEvents)
	assert.NoError(t, err)
	assert.Nil(t, urls)
}
