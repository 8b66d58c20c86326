package utils

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GenerateETag derives a weak validator from a document id and its last update.
// variant separates responses personalized for different callers.
func GenerateETag(id primitive.ObjectID, updatedAt time.Time, variant ...string) string {
	key := fmt.Sprintf("%s-%d", id.Hex(), updatedAt.UnixNano())
	if v := strings.Join(variant, "|"); v != "" {
		key += "|" + v
	}
	sum := sha1.Sum([]byte(key))
	return `W/"` + hex.EncodeToString(sum[:8]) + `"`
}

// NotModified sets ETag and Last-Modified and reports whether the client copy
// is still fresh, in which case a 304 has already been written.
func NotModified(c *gin.Context, id primitive.ObjectID, updatedAt time.Time, variant ...string) bool {
	c.Header("Vary", "Authorization")
	etag := GenerateETag(id, updatedAt, variant...)
	if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	c.Header("ETag", etag)
	c.Header("Last-Modified", updatedAt.UTC().Format(http.TimeFormat))
	return false
}
