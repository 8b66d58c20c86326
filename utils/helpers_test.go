package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestGenerateETag_ChangesWithUpdate(t *testing.T) {
	id := primitive.NewObjectID()
	now := time.Now()

	a := GenerateETag(id, now)
	b := GenerateETag(id, now)
	c := GenerateETag(id, now.Add(time.Second))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Regexp(t, `^W/"[0-9a-f]{16}"$`, a)
}

func TestGenerateETag_Variant(t *testing.T) {
	id := primitive.NewObjectID()
	now := time.Now()

	anon := GenerateETag(id, now)
	assert.Equal(t, anon, GenerateETag(id, now, ""))
	assert.NotEqual(t, anon, GenerateETag(id, now, "user-a:1"))
	assert.NotEqual(t, GenerateETag(id, now, "user-a:1"), GenerateETag(id, now, "user-b:1"))
	assert.NotEqual(t, GenerateETag(id, now, "user-a:1"), GenerateETag(id, now, "user-a:2"))
}

func TestNotModified_VariantMismatch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	id := primitive.NewObjectID()
	updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("If-None-Match", GenerateETag(id, updated, "user-a:1"))

	assert.False(t, NotModified(c, id, updated, "user-b:1"))
	assert.Equal(t, "Authorization", w.Header().Get("Vary"))
	assert.Equal(t, GenerateETag(id, updated, "user-b:1"), w.Header().Get("ETag"))
}

func TestNotModified(t *testing.T) {
	gin.SetMode(gin.TestMode)
	id := primitive.NewObjectID()
	updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	assert.False(t, NotModified(c, id, updated))
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.Equal(t, "Sun, 01 Mar 2026 12:00:00 GMT", w.Header().Get("Last-Modified"))

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("If-None-Match", etag)

	assert.True(t, NotModified(c, id, updated))
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNotModified, w.Code)
}

func TestParseFlexibleTime(t *testing.T) {
	got, err := ParseFlexibleTime("2026-05-04T10:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 2026, got.Year())

	got, err = ParseFlexibleTime("2026-05-04")
	require.NoError(t, err)
	assert.Equal(t, time.May, got.Month())

	got, err = ParseFlexibleTime("2026-05-04 18:30")
	require.NoError(t, err)
	assert.Equal(t, 18, got.Hour())

	_, err = ParseFlexibleTime("next tuesday")
	assert.Error(t, err)
}

func TestParseOptionalTime(t *testing.T) {
	got, err := ParseOptionalTime(nil)
	assert.NoError(t, err)
	assert.Nil(t, got)

	empty := ""
	got, err = ParseOptionalTime(&empty)
	assert.NoError(t, err)
	assert.Nil(t, got)

	bad := "soon"
	_, err = ParseOptionalTime(&bad)
	assert.Error(t, err)
}
