package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/phillip/localhub-go/models"
)

// FindOrCreateConversation returns the single conversation between a and b.
// The unique key index makes concurrent first messages converge.
func (s *Store) FindOrCreateConversation(ctx context.Context, a, b primitive.ObjectID) (*models.Conversation, error) {
	now := time.Now()
	key := models.ConversationKey(a, b)
	participants := []primitive.ObjectID{a, b}
	if b.Hex() < a.Hex() {
		participants = []primitive.ObjectID{b, a}
	}

	update := bson.M{"$setOnInsert": bson.M{
		"participants": participants,
		"created_at":   now,
		"updated_at":   now,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var conv models.Conversation
	if err := s.col(ColConversations).FindOneAndUpdate(ctx, bson.M{"key": key}, update, opts).Decode(&conv); err != nil {
		return nil, fmt.Errorf("upsert conversation: %w", err)
	}
	return &conv, nil
}

func (s *Store) ConversationByID(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.col(ColConversations).FindOne(ctx, bson.M{"_id": id}).Decode(&conv); err != nil {
		return nil, notFound(err)
	}
	return &conv, nil
}

// ConversationsFor lists a user's conversations, most recently active first.
func (s *Store) ConversationsFor(ctx context.Context, userID primitive.ObjectID) ([]models.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cursor, err := s.col(ColConversations).Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find conversations: %w", err)
	}
	convs := []models.Conversation{}
	if err := cursor.All(ctx, &convs); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}
	return convs, nil
}

// AddMessage stores the message and refreshes the conversation summary.
func (s *Store) AddMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	if msg.ReadBy == nil {
		msg.ReadBy = []primitive.ObjectID{msg.SenderID}
	}

	if _, err := s.col(ColMessages).InsertOne(ctx, msg); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	_, err := s.col(ColConversations).UpdateOne(ctx, bson.M{"_id": msg.ConversationID}, bson.M{"$set": bson.M{
		"last_message":    msg.Text,
		"last_sender_id":  msg.SenderID,
		"last_message_at": msg.CreatedAt,
		"updated_at":      msg.CreatedAt,
	}})
	if err != nil {
		return fmt.Errorf("update conversation summary: %w", err)
	}
	return nil
}

// Messages returns up to limit messages older than before (zero = newest),
// in chronological order.
func (s *Store) Messages(ctx context.Context, conversationID primitive.ObjectID, before time.Time, limit int64) ([]models.Message, error) {
	filter := bson.M{"conversation_id": conversationID}
	if !before.IsZero() {
		filter["created_at"] = bson.M{"$lt": before}
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)

	cursor, err := s.col(ColMessages).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	msgs := []models.Message{}
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// MarkRead adds userID to read_by on every message of the conversation.
func (s *Store) MarkRead(ctx context.Context, conversationID, userID primitive.ObjectID) (int64, error) {
	res, err := s.col(ColMessages).UpdateMany(ctx,
		bson.M{"conversation_id": conversationID, "read_by": bson.M{"$ne": userID}},
		bson.M{"$addToSet": bson.M{"read_by": userID}})
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return res.ModifiedCount, nil
}
