package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"hotelbook/internal/adapters/observability"
	"hotelbook/internal/domain"
)

const collectionName = "hotels"

type Repo struct{ coll *mongo.Collection }

func New(db *mongo.Database) *Repo { return &Repo{coll: db.Collection(collectionName)} }

// Connect dials the server and verifies it with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the indexes the search and owner paths rely on.
func (r *Repo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}}},
		{Keys: bson.D{{Key: "starRating", Value: -1}, {Key: "_id", Value: 1}}},
		{Keys: bson.D{{Key: "pricePerNight", Value: 1}, {Key: "_id", Value: 1}}},
	})
	if err != nil {
		return storeErr("create indexes", err)
	}
	return nil
}

func (r *Repo) Find(ctx context.Context, f domain.Filter, sort domain.SortKey, skip, limit int64) ([]domain.Listing, error) {
	if skip < 0 || limit < 0 {
		return nil, fmt.Errorf("find listings: negative window skip=%d limit=%d", skip, limit)
	}
	q, err := toQuery(f)
	if errors.Is(err, errNoMatch) {
		return []domain.Listing{}, nil
	}
	opts := options.Find().SetSort(toSort(sort))
	if skip > 0 {
		opts.SetSkip(skip)
	}
	if limit > 0 {
		opts.SetLimit(limit)
	}

	start := time.Now()
	cur, err := r.coll.Find(ctx, q, opts)
	observe("find", err, start)
	if err != nil {
		return nil, storeErr("find listings", err)
	}
	var docs []listingDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storeErr("decode listings", err)
	}
	out := make([]domain.Listing, 0, len(docs))
	for _, d := range docs {
		out = append(out, toDomain(d))
	}
	return out, nil
}

func (r *Repo) Count(ctx context.Context, f domain.Filter) (int64, error) {
	q, err := toQuery(f)
	if errors.Is(err, errNoMatch) {
		return 0, nil
	}
	start := time.Now()
	n, err := r.coll.CountDocuments(ctx, q)
	observe("count", err, start)
	if err != nil {
		return 0, storeErr("count listings", err)
	}
	return n, nil
}

func (r *Repo) FindByID(ctx context.Context, id string) (domain.Listing, error) {
	return r.FindOne(ctx, domain.Filter{ID: id})
}

func (r *Repo) FindOne(ctx context.Context, f domain.Filter) (domain.Listing, error) {
	q, err := toQuery(f)
	if errors.Is(err, errNoMatch) {
		return domain.Listing{}, domain.ErrNotFound
	}
	var d listingDocument
	start := time.Now()
	err = r.coll.FindOne(ctx, q).Decode(&d)
	observe("find_one", err, start)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Listing{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Listing{}, storeErr("find listing", err)
	}
	return toDomain(d), nil
}

func (r *Repo) Insert(ctx context.Context, l domain.Listing) (domain.Listing, error) {
	d := toDocument(l)
	start := time.Now()
	res, err := r.coll.InsertOne(ctx, d)
	observe("insert", err, start)
	if err != nil {
		return domain.Listing{}, storeErr("insert listing", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return domain.Listing{}, fmt.Errorf("insert listing: unexpected id type %T", res.InsertedID)
	}
	d.ID = oid
	return toDomain(d), nil
}

func (r *Repo) UpdateOne(ctx context.Context, f domain.Filter, u domain.ListingUpdate) (domain.Listing, error) {
	q, err := toQuery(f)
	if errors.Is(err, errNoMatch) {
		return domain.Listing{}, domain.ErrNotFound
	}
	q = withImages(q, u.PrevImageURLs)
	var d listingDocument
	start := time.Now()
	err = r.coll.FindOneAndUpdate(ctx, q, bson.M{"$set": toSet(u)},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&d)
	observe("update", err, start)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Listing{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Listing{}, storeErr("update listing", err)
	}
	return toDomain(d), nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

func observe(op string, err error, start time.Time) {
	status := 200
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		status = 404
	case err != nil:
		status = 500
	}
	observability.ObserveExternal("mongo", op, status, time.Since(start))
}
