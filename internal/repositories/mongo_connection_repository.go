package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"musicez/internal/models"
)

type mongoConnectionRepository struct {
	collection *mongo.Collection
}

// NewMongoConnectionRepository creates a MongoDB-backed store for provider tokens
func NewMongoConnectionRepository(db *models.Database) ConnectionRepository {
	return &mongoConnectionRepository{
		collection: db.DB.Collection(models.ConnectionsCollection),
	}
}

func (r *mongoConnectionRepository) FindByUser(ctx context.Context, userID, provider string) (*models.ProviderConnection, error) {
	var conn models.ProviderConnection
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID, "provider": provider}).Decode(&conn)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find provider connection: %w", err)
	}
	return &conn, nil
}

func (r *mongoConnectionRepository) Upsert(ctx context.Context, conn *models.ProviderConnection) error {
	conn.UpdatedAt = time.Now()
	filter := bson.M{"user_id": conn.UserID, "provider": conn.Provider}
	update := bson.M{"$set": bson.M{
		"access_token":  conn.AccessToken,
		"refresh_token": conn.RefreshToken,
		"token_type":    conn.TokenType,
		"expiry":        conn.Expiry,
		"scopes":        conn.Scopes,
		"updated_at":    conn.UpdatedAt,
	}}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save provider connection: %w", err)
	}
	return nil
}

func (r *mongoConnectionRepository) Delete(ctx context.Context, userID, provider string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"user_id": userID, "provider": provider})
	if err != nil {
		return fmt.Errorf("failed to delete provider connection: %w", err)
	}
	return nil
}
