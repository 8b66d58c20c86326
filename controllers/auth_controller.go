package controllers

import (
	"context"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"github.com/phillip/localhub-go/config"
	"github.com/phillip/localhub-go/models"
	"github.com/phillip/localhub-go/store"
	"github.com/phillip/localhub-go/utils"
)

const minPasswordLength = 8

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

func issueTokens(cfg *config.Config, user *models.User) (*tokenPair, error) {
	access, err := utils.GenerateToken(cfg.JWTSecret, user.ID.Hex(), user.Role, utils.TokenAccess, cfg.JWTTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := utils.GenerateToken(cfg.JWTSecret, user.ID.Hex(), user.Role, utils.TokenRefresh, cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}
	return &tokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: int64(cfg.JWTTTL.Seconds())}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ---------------- REGISTER ----------------
func Register(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Name     string `json:"name" binding:"required"`
			Email    string `json:"email" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		email := normalizeEmail(input.Email)
		if _, err := mail.ParseAddress(email); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email"})
			return
		}
		if len(input.Password) < minPasswordLength {
			c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 8 characters"})
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			serverError(c, "could not hash password", err)
			return
		}

		now := time.Now()
		user := models.User{
			ID:                 primitive.NewObjectID(),
			Name:               strings.TrimSpace(input.Name),
			Email:              email,
			PasswordHash:       string(hash),
			Role:               models.RoleUser,
			SubscriptionStatus: models.SubscriptionInactive,
			Favorites:          []primitive.ObjectID{},
			CreatedAt:          now,
			UpdatedAt:          now,
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := cfg.Collection(store.ColUsers).InsertOne(ctx, user); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
				return
			}
			serverError(c, "could not create user", err)
			return
		}

		tokens, err := issueTokens(cfg, &user)
		if err != nil {
			serverError(c, "could not issue token", err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"user": user, "tokens": tokens})
	}
}

// ---------------- LOGIN ----------------
func Login(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Email    string `json:"email" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var user models.User
		err := cfg.Collection(store.ColUsers).FindOne(ctx, bson.M{"email": normalizeEmail(input.Email)}).Decode(&user)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}

		tokens, err := issueTokens(cfg, &user)
		if err != nil {
			serverError(c, "could not issue token", err)
			return
		}
		logger(c, cfg).WithField("user_id", user.ID.Hex()).Info("user logged in")
		c.JSON(http.StatusOK, gin.H{"user": user, "tokens": tokens})
	}
}

// ---------------- REFRESH ----------------
// RefreshToken exchanges a refresh token for a new pair, picking up role changes.
func RefreshToken(cfg *config.Config, st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			RefreshToken string `json:"refresh_token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		claims, err := utils.ParseToken(cfg.JWTSecret, input.RefreshToken, utils.TokenRefresh)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
			return
		}
		userID, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		user, err := st.UserByID(ctx, userID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user no longer exists"})
			return
		}

		tokens, err := issueTokens(cfg, user)
		if err != nil {
			serverError(c, "could not issue token", err)
			return
		}
		c.JSON(http.StatusOK, tokens)
	}
}

// ---------------- ME ----------------
func Me(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := requester(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		user, err := st.UserByID(ctx, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}
