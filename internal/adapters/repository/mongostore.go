package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/okian/movierank/internal/domain/model"
	"github.com/okian/movierank/pkg/metrics"
)

const (
	mongoBackend     = "mongo"
	usersCollection  = "users"
	moviesCollection = "movies"
	defaultDatabase  = "movierank"
	defaultTimeout   = 10 * time.Second
)

type rankEntryDoc struct {
	MovieID bson.ObjectID `bson:"movieId"`
	Rank    int           `bson:"rank"`
}

type userDoc struct {
	ID        bson.ObjectID  `bson:"_id,omitempty"`
	Name      string         `bson:"name"`
	Email     string         `bson:"email"`
	Password  string         `bson:"password"`
	Movies    []rankEntryDoc `bson:"movies"`
	Version   int64          `bson:"version"`
	CreatedAt time.Time      `bson:"createdAt"`
}

type movieDoc struct {
	ID          bson.ObjectID `bson:"_id,omitempty"`
	Title       string        `bson:"title"`
	Overview    string        `bson:"overview"`
	ReleaseDate time.Time     `bson:"releaseDate"`
	Adult       bool          `bson:"adult"`
	CreatedBy   bson.ObjectID `bson:"createdBy"`
	CreatedAt   time.Time     `bson:"createdAt"`
	UpdatedAt   time.Time     `bson:"updatedAt"`
}

// MongoStore is the MongoDB Store. Users embed their rank entries; the
// version field guards whole-collection writes.
type MongoStore struct {
	client  *mongo.Client
	db      *mongo.Database
	users   *mongo.Collection
	movies  *mongo.Collection
	dbName  string
	timeout time.Duration
}

// NewMongoStore connects, pings and ensures indexes.
func NewMongoStore(ctx context.Context, uri string, opts ...MongoOption) (*MongoStore, error) {
	s := &MongoStore{dbName: defaultDatabase, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(s)
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri).SetTimeout(s.timeout))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	s.client = client
	s.db = client.Database(s.dbName)
	s.users = s.db.Collection(usersCollection)
	s.movies = s.db.Collection(moviesCollection)

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	indexes := map[*mongo.Collection][]mongo.IndexModel{
		s.users: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		s.movies: {
			{Keys: bson.D{{Key: "createdBy", Value: 1}, {Key: "title", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "createdBy", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
	}
	for coll, models := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes for %s: %w", coll.Name(), err)
		}
	}
	return nil
}

// Backend implements Store.
func (s *MongoStore) Backend() string { return mongoBackend }

// Close implements Store.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func observeMongo(op string, start time.Time, err error) {
	metrics.RecordStoreCall(mongoBackend, op, float64(time.Since(start).Microseconds())/1000, err)
}

// parseID maps malformed ids to ErrNotFound: such a record cannot exist.
func parseID(id string) (bson.ObjectID, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.ObjectID{}, ErrNotFound
	}
	return oid, nil
}

func toEntryDocs(entries []model.RankEntry) ([]rankEntryDoc, error) {
	docs := make([]rankEntryDoc, 0, len(entries))
	for _, e := range entries {
		oid, err := bson.ObjectIDFromHex(e.MovieID)
		if err != nil {
			return nil, fmt.Errorf("movie id %q: %w", e.MovieID, err)
		}
		docs = append(docs, rankEntryDoc{MovieID: oid, Rank: e.Rank.Value()})
	}
	return docs, nil
}

func fromUserDoc(d *userDoc) (*model.User, error) {
	u := &model.User{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.Password,
		Version:      d.Version,
		CreatedAt:    d.CreatedAt,
		Movies:       make([]model.RankEntry, 0, len(d.Movies)),
	}
	for _, e := range d.Movies {
		r, err := model.RankFromStored(e.Rank)
		if err != nil {
			return nil, fmt.Errorf("user %s movie %s: %w", u.ID, e.MovieID.Hex(), err)
		}
		u.Movies = append(u.Movies, model.RankEntry{MovieID: e.MovieID.Hex(), Rank: r})
	}
	return u, nil
}

func toMovieDoc(m *model.Movie) (*movieDoc, error) {
	owner, err := bson.ObjectIDFromHex(m.CreatedBy)
	if err != nil {
		return nil, fmt.Errorf("owner id %q: %w", m.CreatedBy, err)
	}
	d := &movieDoc{
		Title:       m.Title,
		Overview:    m.Overview,
		ReleaseDate: m.ReleaseDate,
		Adult:       m.Adult,
		CreatedBy:   owner,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.ID != "" {
		if d.ID, err = bson.ObjectIDFromHex(m.ID); err != nil {
			return nil, ErrNotFound
		}
	}
	return d, nil
}

func fromMovieDoc(d *movieDoc) *model.Movie {
	return &model.Movie{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Overview:    d.Overview,
		ReleaseDate: d.ReleaseDate,
		Adult:       d.Adult,
		CreatedBy:   d.CreatedBy.Hex(),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// CreateUser implements UserStore.
func (s *MongoStore) CreateUser(ctx context.Context, u *model.User) (out *model.User, err error) {
	defer func(start time.Time) { observeMongo("create_user", start, err) }(time.Now())

	entries, err := toEntryDocs(u.Movies)
	if err != nil {
		return nil, err
	}
	doc := userDoc{
		ID:        bson.NewObjectID(),
		Name:      u.Name,
		Email:     strings.ToLower(strings.TrimSpace(u.Email)),
		Password:  u.PasswordHash,
		Movies:    entries,
		Version:   1,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return fromUserDoc(&doc)
}

// GetUser implements UserStore.
func (s *MongoStore) GetUser(ctx context.Context, id string) (out *model.User, err error) {
	defer func(start time.Time) { observeMongo("get_user", start, err) }(time.Now())

	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.findUser(ctx, bson.D{{Key: "_id", Value: oid}})
}

// FindUserByEmail implements UserStore.
func (s *MongoStore) FindUserByEmail(ctx context.Context, email string) (out *model.User, err error) {
	defer func(start time.Time) { observeMongo("find_user_by_email", start, err) }(time.Now())

	return s.findUser(ctx, bson.D{{Key: "email", Value: strings.ToLower(strings.TrimSpace(email))}})
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.D) (*model.User, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return fromUserDoc(&doc)
}

// SaveMovies implements UserStore with a single conditional update on
// {_id, version}.
func (s *MongoStore) SaveMovies(ctx context.Context, userID string, expectedVersion int64, entries []model.RankEntry) (v int64, err error) {
	defer func(start time.Time) { observeMongo("save_movies", start, err) }(time.Now())

	oid, err := parseID(userID)
	if err != nil {
		return 0, err
	}
	docs, err := toEntryDocs(entries)
	if err != nil {
		return 0, err
	}

	filter := versionFilter(oid, expectedVersion)
	update := bson.D{
		{Key: "$set", Value: bson.D{{Key: "movies", Value: docs}}},
		{Key: "$inc", Value: bson.D{{Key: "version", Value: 1}}},
	}
	res, err := s.users.UpdateOne(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	if res.MatchedCount == 1 {
		return expectedVersion + 1, nil
	}

	n, err := s.users.CountDocuments(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrNotFound
	}
	return 0, ErrVersionConflict
}

// versionFilter matches the user only at the expected version. Documents
// written before versioning carry no version field and count as version 0.
func versionFilter(oid bson.ObjectID, expected int64) bson.D {
	if expected == 0 {
		return bson.D{
			{Key: "_id", Value: oid},
			{Key: "$or", Value: bson.A{
				bson.D{{Key: "version", Value: int64(0)}},
				bson.D{{Key: "version", Value: bson.D{{Key: "$exists", Value: false}}}},
			}},
		}
	}
	return bson.D{{Key: "_id", Value: oid}, {Key: "version", Value: expected}}
}

// CountUsers implements UserStore.
func (s *MongoStore) CountUsers(ctx context.Context) (n int, err error) {
	defer func(start time.Time) { observeMongo("count_users", start, err) }(time.Now())

	count, err := s.users.CountDocuments(ctx, bson.D{})
	return int(count), err
}

// CreateMovie implements MovieStore.
func (s *MongoStore) CreateMovie(ctx context.Context, m *model.Movie) (out *model.Movie, err error) {
	defer func(start time.Time) { observeMongo("create_movie", start, err) }(time.Now())

	doc, err := toMovieDoc(m)
	if err != nil {
		return nil, err
	}
	doc.ID = bson.NewObjectID()
	doc.CreatedAt = time.Now().UTC()
	doc.UpdatedAt = doc.CreatedAt
	if _, err := s.movies.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return fromMovieDoc(doc), nil
}

// GetMovie implements MovieStore.
func (s *MongoStore) GetMovie(ctx context.Context, id string) (out *model.Movie, err error) {
	defer func(start time.Time) { observeMongo("get_movie", start, err) }(time.Now())

	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.findMovie(ctx, bson.D{{Key: "_id", Value: oid}})
}

// FindMovieByTitle implements MovieStore.
func (s *MongoStore) FindMovieByTitle(ctx context.Context, owner, title string) (out *model.Movie, err error) {
	defer func(start time.Time) { observeMongo("find_movie_by_title", start, err) }(time.Now())

	oid, err := parseID(owner)
	if err != nil {
		return nil, err
	}
	return s.findMovie(ctx, bson.D{{Key: "createdBy", Value: oid}, {Key: "title", Value: title}})
}

func (s *MongoStore) findMovie(ctx context.Context, filter bson.D) (*model.Movie, error) {
	var doc movieDoc
	if err := s.movies.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return fromMovieDoc(&doc), nil
}

// ListMovies implements MovieStore.
func (s *MongoStore) ListMovies(ctx context.Context, owner string) (out []model.Movie, err error) {
	defer func(start time.Time) { observeMongo("list_movies", start, err) }(time.Now())

	oid, err := parseID(owner)
	if err != nil {
		return []model.Movie{}, nil
	}
	cur, err := s.movies.Find(ctx,
		bson.D{{Key: "createdBy", Value: oid}},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	var docs []movieDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out = make([]model.Movie, 0, len(docs))
	for i := range docs {
		out = append(out, *fromMovieDoc(&docs[i]))
	}
	return out, nil
}

// UpdateMovie implements MovieStore.
func (s *MongoStore) UpdateMovie(ctx context.Context, m *model.Movie) (out *model.Movie, err error) {
	defer func(start time.Time) { observeMongo("update_movie", start, err) }(time.Now())

	doc, err := toMovieDoc(m)
	if err != nil {
		return nil, err
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "title", Value: doc.Title},
		{Key: "overview", Value: doc.Overview},
		{Key: "releaseDate", Value: doc.ReleaseDate},
		{Key: "adult", Value: doc.Adult},
		{Key: "updatedAt", Value: time.Now().UTC()},
	}}}
	var updated movieDoc
	err = s.movies.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: doc.ID}},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return nil, ErrDuplicate
	case err != nil:
		return nil, err
	}
	return fromMovieDoc(&updated), nil
}

// DeleteMovie implements MovieStore.
func (s *MongoStore) DeleteMovie(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { observeMongo("delete_movie", start, err) }(time.Now())

	oid, err := parseID(id)
	if err != nil {
		return err
	}
	res, err := s.movies.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// CountMovies implements MovieStore.
func (s *MongoStore) CountMovies(ctx context.Context) (n int, err error) {
	defer func(start time.Time) { observeMongo("count_movies", start, err) }(time.Now())

	count, err := s.movies.CountDocuments(ctx, bson.D{})
	return int(count), err
}
