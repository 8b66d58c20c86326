package controllers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/phillip/localhub-go/config"
	"github.com/phillip/localhub-go/models"
	"github.com/phillip/localhub-go/realtime"
	"github.com/phillip/localhub-go/store"
)

const (
	defaultMessagePage = 50
	maxMessagePage     = 200
	maxMessageLength   = 4000
)

// StartConversation finds or creates the caller's conversation with participant_id.
func StartConversation(cfg *config.Config, st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := requester(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var input struct {
			ParticipantID string `json:"participant_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		other, err := primitive.ObjectIDFromHex(input.ParticipantID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid participant_id"})
			return
		}
		if other == userID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot start a conversation with yourself"})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := st.UserByID(ctx, other); err != nil {
			respondError(c, err)
			return
		}

		conv, err := st.FindOrCreateConversation(ctx, userID, other)
		if err != nil {
			respondError(c, err)
			return
		}
		logger(c, cfg).WithField("conversation_id", conv.ID.Hex()).Debug("conversation opened")
		c.JSON(http.StatusOK, conv)
	}
}

func ListConversations(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := requester(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		convs, err := st.ConversationsFor(ctx, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, convs)
	}
}

// participantConversation loads the conversation and checks membership.
func participantConversation(ctx context.Context, c *gin.Context, st *store.Store) (*models.Conversation, primitive.ObjectID, bool) {
	userID, _, ok := requester(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, primitive.NilObjectID, false
	}
	convID, ok := paramID(c, "id")
	if !ok {
		return nil, primitive.NilObjectID, false
	}

	conv, err := st.ConversationByID(ctx, convID)
	if err != nil {
		respondError(c, err)
		return nil, primitive.NilObjectID, false
	}
	if !conv.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant of this conversation"})
		return nil, primitive.NilObjectID, false
	}
	return conv, userID, true
}

func ListMessages(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		conv, _, ok := participantConversation(ctx, c, st)
		if !ok {
			return
		}

		limit, err := strconv.ParseInt(c.DefaultQuery("limit", strconv.Itoa(defaultMessagePage)), 10, 64)
		if err != nil || limit <= 0 {
			limit = defaultMessagePage
		}
		if limit > maxMessagePage {
			limit = maxMessagePage
		}

		var before time.Time
		if b := c.Query("before"); b != "" {
			before, err = time.Parse(time.RFC3339Nano, b)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "before must be an RFC3339 timestamp"})
				return
			}
		}

		msgs, err := st.Messages(ctx, conv.ID, before, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, msgs)
	}
}

// SendMessage stores the message and pushes it to open streams.
func SendMessage(st *store.Store, hub *realtime.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		conv, userID, ok := participantConversation(ctx, c, st)
		if !ok {
			return
		}

		var input struct {
			Text string `json:"text" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		text := strings.TrimSpace(input.Text)
		if text == "" || len(text) > maxMessageLength {
			c.JSON(http.StatusBadRequest, gin.H{"error": "text must be between 1 and 4000 characters"})
			return
		}

		msg := models.Message{ConversationID: conv.ID, SenderID: userID, Text: text}
		if err := st.AddMessage(ctx, &msg); err != nil {
			respondError(c, err)
			return
		}

		hub.Broadcast(conv.ID.Hex(), "message", msg)
		c.JSON(http.StatusCreated, msg)
	}
}

func MarkConversationRead(st *store.Store, hub *realtime.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		conv, userID, ok := participantConversation(ctx, c, st)
		if !ok {
			return
		}

		n, err := st.MarkRead(ctx, conv.ID, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		if n > 0 {
			hub.Broadcast(conv.ID.Hex(), "read", gin.H{"user_id": userID.Hex()})
		}
		c.JSON(http.StatusOK, gin.H{"marked": n})
	}
}

// StreamConversation upgrades to a websocket that receives the conversation's
// new messages until the client disconnects.
func StreamConversation(cfg *config.Config, st *store.Store, hub *realtime.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		conv, userID, ok := participantConversation(ctx, c, st)
		cancel()
		if !ok {
			return
		}

		if err := hub.Serve(c.Writer, c.Request, conv.ID.Hex(), userID.Hex()); err != nil {
			logger(c, cfg).WithError(err).Warn("websocket upgrade failed")
		}
	}
}
