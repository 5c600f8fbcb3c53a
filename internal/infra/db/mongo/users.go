package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"direct-messaging/internal/domain/directory"
)

const usersCollection = "users"

// Users reads the directory and the sign-in tokens from the users collection.
type Users struct {
	col *mongo.Collection
}

func NewUsers(ctx context.Context, db *mongo.Database) (*Users, error) {
	col := db.Collection(usersCollection)
	if _, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "uid", Value: 1}}},
		{Keys: bson.D{{Key: "tokens", Value: 1}}},
	}); err != nil {
		return nil, fmt.Errorf("create user indexes: %w", err)
	}
	return &Users{col: col}, nil
}

func (u *Users) ListOthers(ctx context.Context, excludingUID string) ([]directory.Entry, error) {
	filter := bson.M{}
	if excludingUID != "" {
		filter["uid"] = bson.M{"$ne": excludingUID}
	}
	cur, err := u.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer cur.Close(ctx)

	var docs []userDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	out := make([]directory.Entry, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toEntry())
	}
	return out, nil
}

func (u *Users) ByID(ctx context.Context, id string) (directory.Entry, error) {
	var doc userDocument
	if err := u.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return directory.Entry{}, directory.ErrNotFound
		}
		return directory.Entry{}, fmt.Errorf("get user %s: %w", id, err)
	}
	return doc.toEntry(), nil
}

func (u *Users) CurrentActor(ctx context.Context, token string) (directory.Actor, bool) {
	if token == "" {
		return directory.Actor{}, false
	}
	var doc userDocument
	if err := u.col.FindOne(ctx, bson.M{"tokens": token}).Decode(&doc); err != nil {
		return directory.Actor{}, false
	}
	if doc.UID == "" {
		return directory.Actor{}, false
	}
	return directory.Actor{ID: doc.UID, DisplayName: doc.DisplayName, PhotoURL: doc.PhotoURL}, true
}

type userDocument struct {
	ID          string   `bson:"_id"`
	UID         string   `bson:"uid,omitempty"`
	Name        string   `bson:"name,omitempty"`
	DisplayName string   `bson:"display_name,omitempty"`
	Email       string   `bson:"email,omitempty"`
	PhotoURL    string   `bson:"photo_url,omitempty"`
	Tokens      []string `bson:"tokens,omitempty"`
}

func (d userDocument) toEntry() directory.Entry {
	return directory.Entry{
		ID:          d.ID,
		UID:         d.UID,
		Name:        d.Name,
		DisplayName: d.DisplayName,
		Email:       d.Email,
		PhotoURL:    d.PhotoURL,
	}
}

var (
	_ directory.Directory = (*Users)(nil)
	_ directory.Identity  = (*Users)(nil)
)
