package models

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
)

const (
	SongsCollection       = "songs"
	ConnectionsCollection = "provider_connections"
)

// Database represents the database connection
type Database struct {
	Client *mongo.Client
	DB     *mongo.Database
}

// NewDatabase creates a new database connection
func NewDatabase(ctx context.Context, mongoURL, dbName string) (*Database, error) {
	clientOptions := options.Client().
		ApplyURI(mongoURL).
		SetMonitor(otelmongo.NewMonitor()).
		SetMaxPoolSize(20).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(30 * time.Second).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return &Database{
		Client: client,
		DB:     client.Database(dbName),
	}, nil
}

// Close closes the database connection
func (d *Database) Close(ctx context.Context) error {
	return d.Client.Disconnect(ctx)
}

// Health pings the primary
func (d *Database) Health(ctx context.Context) error {
	return d.Client.Ping(ctx, nil)
}

// CreateIndexes creates the indexes the catalog and connection lookups rely on
func (d *Database) CreateIndexes(ctx context.Context) error {
	songs := d.DB.Collection(SongsCollection)

	// The search text index from schema v1 is replaced by the trigram index
	if err := d.dropLegacyIndexes(ctx, songs); err != nil {
		return err
	}

	songIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "spotify_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "isrc", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
		{
			// Multikey index backing the trigram prefilter
			Keys: bson.D{{Key: "search_trigrams", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "popularity", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "updated_at", Value: 1}},
		},
	}
	if _, err := songs.Indexes().CreateMany(ctx, songIndexes); err != nil {
		return err
	}

	connections := d.DB.Collection(ConnectionsCollection)
	_, err := connections.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "provider", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// dropLegacyIndexes removes indexes that conflict with the current schema
func (d *Database) dropLegacyIndexes(ctx context.Context, collection *mongo.Collection) error {
	cursor, err := collection.Indexes().List(ctx)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	var existing []bson.M
	if err = cursor.All(ctx, &existing); err != nil {
		return err
	}

	for _, index := range existing {
		name, _ := index["name"].(string)
		if name == "title_text_artist_text_album_text" {
			if _, err := collection.Indexes().DropOne(ctx, name); err != nil {
				return err
			}
		}
	}

	return nil
}
