package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger reports backing store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

func Health(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "mongo": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mongo": "up"})
	}
}
