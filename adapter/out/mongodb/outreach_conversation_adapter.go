// Package mongodb implements MongoDB adapters for the application.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"outreach_server/core/domain"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NewClient creates a new MongoDB client.
func NewClient(url, database string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(url).
		SetMaxPoolSize(100).
		SetMinPoolSize(10).
		SetMaxConnIdleTime(30 * time.Second)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client, nil
}

// =============================================================================
// Conversation Log Adapter
// =============================================================================

const collectionConversations = "conversation_logs"

// ConversationLogAdapter implements out.ConversationLogRepository using
// MongoDB. The log is append-only; entries are never updated.
type ConversationLogAdapter struct {
	collection *mongo.Collection
}

// NewConversationLogAdapter creates a new conversation log adapter.
func NewConversationLogAdapter(db *mongo.Database) *ConversationLogAdapter {
	return &ConversationLogAdapter{
		collection: db.Collection(collectionConversations),
	}
}

// EnsureIndexes creates necessary indexes for the collection.
func (a *ConversationLogAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "thread_id", Value: 1},
				{Key: "sent_at", Value: 1},
			},
		},
		{
			Keys:    bson.D{{Key: "message_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// conversationDocument represents the MongoDB document structure.
type conversationDocument struct {
	MessageID string    `bson:"message_id"`
	UserID    string    `bson:"user_id"`
	ThreadID  string    `bson:"thread_id"`
	Direction string    `bson:"direction"`
	Channel   string    `bson:"channel"`
	Body      string    `bson:"body"`
	SentAt    time.Time `bson:"sent_at"`
}

// Append writes one thread message to the log.
func (a *ConversationLogAdapter) Append(ctx context.Context, userID uuid.UUID, msg *domain.ThreadMessage) error {
	doc := conversationDocument{
		MessageID: msg.ID,
		UserID:    userID.String(),
		ThreadID:  msg.ThreadID,
		Direction: string(msg.Direction),
		Channel:   string(msg.Channel),
		Body:      msg.Body,
		SentAt:    msg.SentAt,
	}
	if doc.SentAt.IsZero() {
		doc.SentAt = time.Now()
	}

	_, err := a.collection.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		// Same webhook delivered twice; the log already has the message.
		return nil
	}
	return err
}

// GetThread returns a thread's messages in chronological order.
func (a *ConversationLogAdapter) GetThread(ctx context.Context, userID uuid.UUID, threadID string) ([]domain.ThreadMessage, error) {
	filter := bson.M{
		"user_id":   userID.String(),
		"thread_id": threadID,
	}
	opts := options.Find().SetSort(bson.D{{Key: "sent_at", Value: 1}})

	cursor, err := a.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []domain.ThreadMessage
	for cursor.Next(ctx) {
		var doc conversationDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		messages = append(messages, domain.ThreadMessage{
			ID:        doc.MessageID,
			ThreadID:  doc.ThreadID,
			Direction: domain.MessageDirection(doc.Direction),
			Channel:   domain.Channel(doc.Channel),
			Body:      doc.Body,
			SentAt:    doc.SentAt,
		})
	}
	return messages, cursor.Err()
}
