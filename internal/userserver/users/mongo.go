package users

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/userserver/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const collectionName = "users"

// Connect opens a client for uri and pings the primary.
func Connect(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI).SetTimeout(timeout)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w: %w", common.ErrUnavailable, err)
	}
	return client, nil
}

type MongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(collectionName)}
}

// EnsureIndexes creates the unique and lookup indexes. Wallet addresses are
// unique across users; users without wallets are left out of that index.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{
			Keys: bson.D{{Key: "walletAddresses.address", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"walletAddresses.address": bson.M{"$exists": true}}),
		},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "role", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "lastActive", Value: -1}}},
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, indexes); err != nil {
		return wrapErr("create indexes", err)
	}
	return nil
}

func (r *MongoRepository) Create(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = bson.NewObjectID()
	}
	if _, err := r.coll.InsertOne(ctx, u); err != nil {
		return wrapErr("insert user", err)
	}
	return nil
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, common.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *MongoRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *MongoRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoRepository) GetByWallet(ctx context.Context, address string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"walletAddresses.address": strings.ToLower(address)})
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := r.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrNotFound
		}
		return nil, wrapErr("find user", err)
	}
	return &u, nil
}

func (r *MongoRepository) Update(ctx context.Context, u *models.User) error {
	set := bson.M{
		"username":        u.Username,
		"email":           u.Email,
		"profile":         u.Profile,
		"role":            u.Role,
		"status":          u.Status,
		"isVerified":      u.IsVerified,
		"walletAddresses": u.Wallets,
		"primaryWallet":   u.PrimaryWallet,
		"updatedAt":       u.UpdatedAt,
	}

	res, err := r.coll.UpdateByID(ctx, u.ID, bson.M{"$set": set})
	if err != nil {
		return wrapErr("update user", err)
	}
	if res.MatchedCount == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *MongoRepository) RecordLogin(ctx context.Context, id string, now time.Time) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return common.ErrNotFound
	}

	res, err := r.coll.UpdateByID(ctx, oid, bson.M{
		"$inc": bson.M{"loginCount": 1},
		"$set": bson.M{"lastLogin": now, "lastActive": now, "updatedAt": now},
	})
	if err != nil {
		return wrapErr("record login", err)
	}
	if res.MatchedCount == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *MongoRepository) List(ctx context.Context, f models.Filter, skip, limit int) ([]*models.User, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))

	cur, err := r.coll.Find(ctx, filterDoc(f), opts)
	if err != nil {
		return nil, wrapErr("list users", err)
	}

	users := []*models.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, wrapErr("decode users", err)
	}
	return users, nil
}

func (r *MongoRepository) Count(ctx context.Context, f models.Filter) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, filterDoc(f))
	if err != nil {
		return 0, wrapErr("count users", err)
	}
	return n, nil
}

func (r *MongoRepository) Ping(ctx context.Context) error {
	if err := r.coll.Database().Client().Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongo ping: %w: %w", common.ErrUnavailable, err)
	}
	return nil
}

func filterDoc(f models.Filter) bson.M {
	doc := bson.M{}
	if f.Status != "" {
		doc["status"] = f.Status
	}
	if f.Role != "" {
		doc["role"] = f.Role
	}
	if f.Search != "" {
		re := bson.M{"$regex": regexp.QuoteMeta(f.Search), "$options": "i"}
		doc["$or"] = bson.A{
			bson.M{"username": re},
			bson.M{"email": re},
			bson.M{"profile.firstName": re},
			bson.M{"profile.lastName": re},
		}
	}
	return doc
}

// wrapErr maps driver errors onto the common sentinels.
func wrapErr(op string, err error) error {
	switch {
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w", op, common.ErrAlreadyExists)
	case mongo.IsNetworkError(err), mongo.IsTimeout(err):
		return fmt.Errorf("%s: %w: %w", op, common.ErrUnavailable, err)
	default:
		return fmt.Errorf("db error: %s: %w", op, err)
	}
}
