package repository

import (
	"context"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-identity/app/entity"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const usersCollection = "users"

// MongoUserRepository is the document-store credential store. Every mutation
// is a single-document update, so per-identity atomicity comes from MongoDB.
type MongoUserRepository struct {
	coll *mongo.Collection
}

func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{coll: db.Collection(usersCollection)}
}

// EnsureIndexes creates the unique username/email indexes and the reset token lookup index.
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uq_users_username"),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uq_users_email"),
		},
		{
			Keys:    bson.D{{Key: "resetPasswordToken", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("idx_users_reset_token"),
		},
	})
	return err
}

func (r *MongoUserRepository) Create(ctx context.Context, user *entity.User) error {
	if user.WatchHistory == nil {
		user.WatchHistory = []string{}
	}
	_, err := r.coll.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func (r *MongoUserRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoUserRepository) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *MongoUserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoUserRepository) FindByUsernameOrEmail(ctx context.Context, identifier string) (*entity.User, error) {
	return r.findOne(ctx, bson.M{"$or": bson.A{
		bson.M{"username": identifier},
		bson.M{"email": identifier},
	}})
}

func (r *MongoUserRepository) FindByResetTokenHash(ctx context.Context, tokenHash string, now time.Time) (*entity.User, error) {
	return r.findOne(ctx, bson.M{
		"resetPasswordToken":   tokenHash,
		"resetPasswordExpires": bson.M{"$gt": now},
	})
}

func (r *MongoUserRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"refreshToken": token, "updatedAt": time.Now()},
	})
	return err
}

func (r *MongoUserRepository) SwapRefreshToken(ctx context.Context, id, expected, next string) (bool, error) {
	result, err := r.coll.UpdateOne(ctx, bson.M{"_id": id, "refreshToken": expected}, bson.M{
		"$set": bson.M{"refreshToken": next, "updatedAt": time.Now()},
	})
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

func (r *MongoUserRepository) ClearRefreshToken(ctx context.Context, id string) error {
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$unset": bson.M{"refreshToken": ""},
		"$set":   bson.M{"updatedAt": time.Now()},
	})
	return err
}

func (r *MongoUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"password": passwordHash, "updatedAt": time.Now()},
	})
	return err
}

func (r *MongoUserRepository) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"resetPasswordToken":   tokenHash,
			"resetPasswordExpires": expiresAt,
			"updatedAt":            time.Now(),
		},
	})
	return err
}

func (r *MongoUserRepository) ConsumeResetToken(ctx context.Context, id, tokenHash string, now time.Time, passwordHash string) (bool, error) {
	filter := bson.M{
		"_id":                  id,
		"resetPasswordToken":   tokenHash,
		"resetPasswordExpires": bson.M{"$gt": now},
	}
	result, err := r.coll.UpdateOne(ctx, filter, bson.M{
		"$set":   bson.M{"password": passwordHash, "updatedAt": time.Now()},
		"$unset": bson.M{"resetPasswordToken": "", "resetPasswordExpires": ""},
	})
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

func (r *MongoUserRepository) UpdateProfile(ctx context.Context, id, fullName, email string) (*entity.User, error) {
	user, err := r.findOneAndSet(ctx, id, bson.M{"fullName": fullName, "email": email})
	if mongo.IsDuplicateKeyError(err) {
		return nil, ErrDuplicate
	}
	return user, err
}

func (r *MongoUserRepository) UpdateAvatar(ctx context.Context, id, url string) (*entity.User, error) {
	return r.findOneAndSet(ctx, id, bson.M{"avatar": url})
}

func (r *MongoUserRepository) UpdateCoverImage(ctx context.Context, id, url string) (*entity.User, error) {
	return r.findOneAndSet(ctx, id, bson.M{"coverImage": url})
}

func (r *MongoUserRepository) UpdateRole(ctx context.Context, id, role string) (*entity.User, error) {
	return r.findOneAndSet(ctx, id, bson.M{"role": role})
}

func (r *MongoUserRepository) List(ctx context.Context, page, limit int) (*entity.UserPage, error) {
	total, err := r.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return nil, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(pageOffset(page, limit))).
		SetLimit(int64(limit))
	cursor, err := r.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := make([]*entity.User, 0, limit)
	if err = cursor.All(ctx, &users); err != nil {
		return nil, err
	}

	return &entity.UserPage{Users: users, Total: total, Page: page, Limit: limit}, nil
}

func (r *MongoUserRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return result.DeletedCount > 0, nil
}

func (r *MongoUserRepository) findOneAndSet(ctx context.Context, id string, fields bson.M) (*entity.User, error) {
	fields["updatedAt"] = time.Now()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	user := &entity.User{}
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": fields}, opts).Decode(user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter interface{}) (*entity.User, error) {
	user := &entity.User{}
	err := r.coll.FindOne(ctx, filter).Decode(user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
