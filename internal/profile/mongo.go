package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const defaultCollection = "security_profiles"

// MongoConfig captures connection settings for the profile store.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// MongoStore implements Store on a MongoDB collection, one document per
// user keyed by user ID.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore connects and pings so misconfiguration surfaces at startup.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if strings.TrimSpace(cfg.URI) == "" {
		return nil, errors.New("profile: mongo uri is required")
	}
	if strings.TrimSpace(cfg.Database) == "" {
		return nil, errors.New("profile: mongo database is required")
	}
	if cfg.Collection == "" {
		cfg.Collection = defaultCollection
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client, err := mongo.Connect(
		options.Client().
			ApplyURI(cfg.URI).
			SetConnectTimeout(cfg.Timeout).
			SetRetryWrites(true),
	)
	if err != nil {
		return nil, fmt.Errorf("profile: connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("profile: ping mongo: %w", err)
	}

	return &MongoStore{coll: client.Database(cfg.Database).Collection(cfg.Collection)}, nil
}

// Close disconnects the underlying client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.coll.Database().Client().Disconnect(ctx)
}

func (s *MongoStore) LoadOrCreate(ctx context.Context, seed SecurityProfile) (*SecurityProfile, error) {
	if strings.TrimSpace(seed.UserID) == "" {
		return nil, errors.New("profile: user id is required")
	}

	// Seed fields only apply on insert so an existing document is
	// never clobbered by defaults.
	update := bson.M{
		"$setOnInsert": bson.M{
			"email":            seed.Email,
			"displayName":      seed.DisplayName,
			"pinHash":          seed.PinHash,
			"twoFactorEnabled": seed.TwoFactorEnabled,
		},
		"$currentDate": bson.M{"updatedAt": true},
	}

	var doc SecurityProfile
	err := s.coll.FindOneAndUpdate(
		ctx,
		bson.M{"_id": seed.UserID},
		update,
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("profile: load or create: %w", err)
	}

	return &doc, nil
}

func (s *MongoStore) Load(ctx context.Context, userID string) (*SecurityProfile, error) {
	var doc SecurityProfile
	err := s.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profile: load: %w", err)
	}
	return &doc, nil
}

func (s *MongoStore) Apply(ctx context.Context, userID string, patch Patch) (*SecurityProfile, error) {
	set := bson.M{}
	if patch.Email != nil {
		set["email"] = *patch.Email
	}
	if patch.DisplayName != nil {
		set["displayName"] = *patch.DisplayName
	}
	if patch.PinHash != nil {
		set["pinHash"] = *patch.PinHash
	}
	if patch.TwoFactorEnabled != nil {
		set["twoFactorEnabled"] = *patch.TwoFactorEnabled
	}
	if patch.TOTPSecret != nil {
		set["totpSecret"] = *patch.TOTPSecret
	}
	if patch.RecoveryCodeHashes != nil {
		set["recoveryCodeHashes"] = patch.RecoveryCodeHashes
	}
	if patch.ResetUsedCodes {
		set["usedRecoveryCodeHashes"] = []string{}
	}

	update := bson.M{"$currentDate": bson.M{"updatedAt": true}}
	if len(set) > 0 {
		update["$set"] = set
	}

	var doc SecurityProfile
	err := s.coll.FindOneAndUpdate(
		ctx,
		bson.M{"_id": userID},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profile: apply patch: %w", err)
	}

	return &doc, nil
}

// ConsumeRecoveryCode uses a filtered atomic update so concurrent
// consumers of the same code see exactly one winner.
func (s *MongoStore) ConsumeRecoveryCode(ctx context.Context, userID, digest string) (bool, error) {
	filter := bson.M{
		"_id":                    userID,
		"recoveryCodeHashes":     digest,
		"usedRecoveryCodeHashes": bson.M{"$ne": digest},
	}
	update := bson.M{
		"$addToSet":    bson.M{"usedRecoveryCodeHashes": digest},
		"$currentDate": bson.M{"updatedAt": true},
	}

	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("profile: consume recovery code: %w", err)
	}
	return res.ModifiedCount == 1, nil
}
