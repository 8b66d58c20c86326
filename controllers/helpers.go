package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/phillip/localhub-go/billing"
	"github.com/phillip/localhub-go/config"
	"github.com/phillip/localhub-go/middleware"
	"github.com/phillip/localhub-go/models"
	"github.com/phillip/localhub-go/services"
	"github.com/phillip/localhub-go/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// requester returns the authenticated caller set by the auth middleware.
func requester(c *gin.Context) (primitive.ObjectID, string, bool) {
	userID, err := primitive.ObjectIDFromHex(c.GetString(middleware.ContextUserID))
	if err != nil {
		return primitive.NilObjectID, "", false
	}
	return userID, c.GetString(middleware.ContextRole), true
}

// canModify is the owner-or-admin rule shared by every mutable resource.
func canModify(role string, ownerID, requesterID primitive.ObjectID) bool {
	return role == models.RoleAdmin || ownerID == requesterID
}

func paramID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return primitive.NilObjectID, false
	}
	return oid, true
}

// pagination reads ?page=&limit= into find options, newest first.
func pagination(c *gin.Context) *options.FindOptions {
	return paginate(c, bson.D{{Key: "created_at", Value: -1}})
}

// paginate applies ?page=&limit= after sorting by order, so later pages
// continue the same ordering.
func paginate(c *gin.Context, order bson.D) *options.FindOptions {
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", ""), 10, 64)
	if err != nil || limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	page, err := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)
	if err != nil || page < 1 {
		page = 1
	}
	return options.Find().
		SetSort(order).
		SetSkip((page - 1) * limit).
		SetLimit(limit)
}

func logger(c *gin.Context, cfg *config.Config) logrus.FieldLogger {
	var fallback logrus.FieldLogger = logrus.StandardLogger()
	if cfg != nil && cfg.Log != nil {
		fallback = cfg.Log
	}
	return middleware.Logger(c, fallback)
}

// respondError maps domain errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrNoActiveSponsor), errors.Is(err, services.ErrNoSubscription):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrAlreadySubscribed):
		status = http.StatusConflict
	case errors.Is(err, services.ErrUnknownPlan),
		errors.Is(err, services.ErrInvalidRange),
		errors.Is(err, services.ErrUnknownCounter),
		errors.Is(err, billing.ErrSignature):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		serverError(c, err.Error(), err)
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// serverError logs err on the request logger and answers 500 with msg and
// the error text.
func serverError(c *gin.Context, msg string, err error) {
	logger(c, nil).WithError(err).WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.FullPath(),
	}).Error(msg)
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg, "details": err.Error()})
}
