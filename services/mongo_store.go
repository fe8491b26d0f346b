package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"watchlist_backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB database and collection names
const (
	MongoDBName              = "watchlist_backend"
	MongoWatchlistCollection = "watchlist"
	MongoAlertsCollection    = "alerts"
)

// watchlistDoc is the MongoDB shape of a watchlist entry
type watchlistDoc struct {
	UserID  string    `bson:"userId"`
	Symbol  string    `bson:"symbol"`
	Company string    `bson:"company"`
	AddedAt time.Time `bson:"addedAt"`
}

// alertDoc is the MongoDB shape of an alert
type alertDoc struct {
	ID            string    `bson:"_id"`
	UserID        string    `bson:"userId"`
	Symbol        string    `bson:"symbol"`
	Company       string    `bson:"company"`
	AlertName     string    `bson:"alertName"`
	AlertType     string    `bson:"alertType"`
	Threshold     float64   `bson:"threshold"`
	CurrentPrice  *float64  `bson:"currentPrice,omitempty"`
	ChangePercent *float64  `bson:"changePercent,omitempty"`
	CreatedAt     time.Time `bson:"createdAt"`
}

// ConnectMongo establishes a connection to MongoDB and ensures the unique
// indexes the stores rely on for conflict detection.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Database, error) {
	clientOptions := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetMaxPoolSize(10).
		SetMinPoolSize(2).
		SetMaxConnIdleTime(30 * time.Second).
		SetConnectTimeout(30 * time.Second).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(MongoDBName)
	if err := ensureMongoIndexes(ctx, db); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}

	log.Println("MongoDB connection established")
	return db, nil
}

// ensureMongoIndexes creates the composite unique indexes
func ensureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(MongoWatchlistCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "symbol", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create watchlist index: %w", err)
	}

	_, err = db.Collection(MongoAlertsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "userId", Value: 1},
			{Key: "symbol", Value: 1},
			{Key: "alertType", Value: 1},
			{Key: "threshold", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create alert index: %w", err)
	}

	return nil
}

// MongoWatchlistStore implements WatchlistStore on MongoDB
type MongoWatchlistStore struct {
	coll *mongo.Collection
}

// NewMongoWatchlistStore creates a MongoDB-backed watchlist store
func NewMongoWatchlistStore(db *mongo.Database) *MongoWatchlistStore {
	return &MongoWatchlistStore{coll: db.Collection(MongoWatchlistCollection)}
}

// Add inserts a new watchlist entry for the user
func (s *MongoWatchlistStore) Add(ctx context.Context, userID, symbol, company string) error {
	doc := watchlistDoc{
		UserID:  userID,
		Symbol:  CanonicalSymbol(symbol),
		Company: company,
		AddedAt: time.Now().UTC(),
	}

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to add watchlist entry: %w", err)
	}

	return nil
}

// Remove deletes the entry scoped to (userID, symbol)
func (s *MongoWatchlistStore) Remove(ctx context.Context, userID, symbol string) error {
	result, err := s.coll.DeleteOne(ctx, bson.M{
		"userId": userID,
		"symbol": CanonicalSymbol(symbol),
	})
	if err != nil {
		return fmt.Errorf("failed to remove watchlist entry: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}

	return nil
}

// ListForUser returns the user's entries, most recently added first
func (s *MongoWatchlistStore) ListForUser(ctx context.Context, userID string) ([]models.WatchlistEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "addedAt", Value: -1}})
	cursor, err := s.coll.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list watchlist: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []watchlistDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode watchlist: %w", err)
	}

	entries := make([]models.WatchlistEntry, len(docs))
	for i, d := range docs {
		entries[i] = models.WatchlistEntry{
			UserID:  d.UserID,
			Symbol:  d.Symbol,
			Company: d.Company,
			AddedAt: d.AddedAt,
		}
	}
	return entries, nil
}

// SymbolsForUser returns the user's tracked symbols
func (s *MongoWatchlistStore) SymbolsForUser(ctx context.Context, userID string) ([]string, error) {
	entries, err := s.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	symbols := make([]string, len(entries))
	for i, e := range entries {
		symbols[i] = e.Symbol
	}
	return symbols, nil
}

// Exists reports whether the user already tracks the symbol
func (s *MongoWatchlistStore) Exists(ctx context.Context, userID, symbol string) (bool, error) {
	count, err := s.coll.CountDocuments(ctx, bson.M{
		"userId": userID,
		"symbol": CanonicalSymbol(symbol),
	})
	if err != nil {
		return false, fmt.Errorf("failed to check watchlist entry: %w", err)
	}
	return count > 0, nil
}

// MongoAlertStore implements AlertStore on MongoDB
type MongoAlertStore struct {
	coll *mongo.Collection
}

// NewMongoAlertStore creates a MongoDB-backed alert store
func NewMongoAlertStore(db *mongo.Database) *MongoAlertStore {
	return &MongoAlertStore{coll: db.Collection(MongoAlertsCollection)}
}

// Create persists a new alert
func (s *MongoAlertStore) Create(ctx context.Context, alert *models.Alert) error {
	if _, err := s.coll.InsertOne(ctx, toAlertDoc(alert)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// Update rewrites the alert scoped to (id, userID)
func (s *MongoAlertStore) Update(ctx context.Context, alert *models.Alert) error {
	result, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": alert.ID, "userId": alert.UserID},
		bson.M{"$set": bson.M{
			"symbol":        alert.Symbol,
			"company":       alert.Company,
			"alertName":     alert.AlertName,
			"alertType":     alert.AlertType,
			"threshold":     alert.Threshold,
			"currentPrice":  alert.CurrentPrice,
			"changePercent": alert.ChangePercent,
		}},
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to update alert: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes the alert scoped to (id, userID)
func (s *MongoAlertStore) Delete(ctx context.Context, userID, id string) error {
	result, err := s.coll.DeleteOne(ctx, bson.M{"_id": id, "userId": userID})
	if err != nil {
		return fmt.Errorf("failed to delete alert: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}

	return nil
}

// ListForUser returns the user's alerts, most recently created first
func (s *MongoAlertStore) ListForUser(ctx context.Context, userID string) ([]models.Alert, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.coll.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer cursor.Close(ctx)

	return decodeAlerts(ctx, cursor)
}

// GetByID returns the alert scoped to (id, userID)
func (s *MongoAlertStore) GetByID(ctx context.Context, userID, id string) (*models.Alert, error) {
	var doc alertDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": id, "userId": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch alert: %w", err)
	}
	alert := fromAlertDoc(&doc)
	return &alert, nil
}

// All returns every stored alert
func (s *MongoAlertStore) All(ctx context.Context) ([]models.Alert, error) {
	cursor, err := s.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list all alerts: %w", err)
	}
	defer cursor.Close(ctx)

	return decodeAlerts(ctx, cursor)
}

func decodeAlerts(ctx context.Context, cursor *mongo.Cursor) ([]models.Alert, error) {
	var docs []alertDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode alerts: %w", err)
	}

	alerts := make([]models.Alert, len(docs))
	for i := range docs {
		alerts[i] = fromAlertDoc(&docs[i])
	}
	return alerts, nil
}

func toAlertDoc(a *models.Alert) alertDoc {
	return alertDoc{
		ID:            a.ID,
		UserID:        a.UserID,
		Symbol:        a.Symbol,
		Company:       a.Company,
		AlertName:     a.AlertName,
		AlertType:     a.AlertType,
		Threshold:     a.Threshold,
		CurrentPrice:  a.CurrentPrice,
		ChangePercent: a.ChangePercent,
		CreatedAt:     a.CreatedAt,
	}
}

func fromAlertDoc(d *alertDoc) models.Alert {
	return models.Alert{
		ID:            d.ID,
		UserID:        d.UserID,
		Symbol:        d.Symbol,
		Company:       d.Company,
		AlertName:     d.AlertName,
		AlertType:     d.AlertType,
		Threshold:     d.Threshold,
		CurrentPrice:  d.CurrentPrice,
		ChangePercent: d.ChangePercent,
		CreatedAt:     d.CreatedAt,
	}
}
