// Package mongo stores project documents in MongoDB, one BSON document per
// project keyed by name.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	fgerrors "github.com/matzehuels/framegraph/pkg/errors"
	"github.com/matzehuels/framegraph/pkg/project"
	"github.com/matzehuels/framegraph/pkg/store"
)

// DefaultCollection holds one record per project.
const DefaultCollection = "projects"

// Config configures a MongoDB connection.
type Config struct {
	URI        string
	Database   string
	Collection string
}

// record is the stored form of a project.
type record struct {
	Name      string           `bson:"_id"`
	Document  project.Document `bson:"document"`
	UpdatedAt time.Time        `bson:"updated_at"`
}

// Store implements store.Store on a MongoDB collection.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	owned  bool
}

// New connects to MongoDB and verifies the connection with a ping.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Database == "" {
		return nil, fgerrors.New(fgerrors.ErrCodeInvalidInput, "mongo database name is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	name := cfg.Collection
	if name == "" {
		name = DefaultCollection
	}
	s := NewFromCollection(client.Database(cfg.Database).Collection(name))
	s.client = client
	s.owned = true
	return s, nil
}

// NewFromCollection wraps an existing collection. Close does not
// disconnect its client.
func NewFromCollection(coll *mongo.Collection) *Store {
	return &Store{coll: coll}
}

func (s *Store) Load(ctx context.Context, name string) (*project.Document, error) {
	if err := fgerrors.ValidateProjectName(name); err != nil {
		return nil, err
	}
	var rec record
	err := s.coll.FindOne(ctx, bson.M{"_id": name}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.NotFound(name)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	doc := rec.Document
	Normalize(&doc)
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *Store) Save(ctx context.Context, doc *project.Document) error {
	if err := store.CheckDocument(doc); err != nil {
		return err
	}
	rec := record{Name: doc.Name, Document: *doc, UpdatedAt: time.Now().UTC()}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": doc.Name}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save %s: %w", doc.Name, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	if err := fgerrors.ValidateProjectName(name); err != nil {
		return err
	}
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": name})
	if err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	if res.DeletedCount == 0 {
		return store.NotFound(name)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	var ids []struct {
		Name string `bson:"_id"`
	}
	if err := cur.All(ctx, &ids); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = id.Name
	}
	return names, nil
}

// Close disconnects the client if the store created it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Normalize converts BSON container types decoded into params back to the
// plain maps and slices the project package understands.
func Normalize(doc *project.Document) {
	for i := range doc.Nodes {
		for k, v := range doc.Nodes[i].Params {
			doc.Nodes[i].Params[k] = plain(v)
		}
	}
}

func plain(v any) any {
	switch t := v.(type) {
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = plain(e.Value)
		}
		return m
	case bson.M:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = plain(e)
		}
		return m
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	default:
		return v
	}
}

var _ store.Store = (*Store)(nil)
