package repository

import (
	"context"
	"errors"
	"fmt"

	"service_finder/internal/common"
	"service_finder/internal/domain/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection      = "users"
	categoriesCollection = "categories"
	providersCollection  = "service_providers"
)

// insertionOrder sorts documents the way they were created.
var insertionOrder = bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}

// EnsureMongoIndexes creates the unique and geo-prefilter indexes. The unique
// indexes are what make name and email uniqueness authoritative.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetName("uniq_email").SetUnique(true)},
		},
		categoriesCollection: {
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetName("uniq_name").SetUnique(true)},
			{Keys: bson.D{{Key: "isActive", Value: 1}}, Options: options.Index().SetName("idx_active")},
		},
		providersCollection: {
			{
				Keys: bson.D{
					{Key: "location.lat", Value: 1},
					{Key: "location.lng", Value: 1},
				},
				Options: options.Index().SetName("idx_location"),
			},
			{
				Keys: bson.D{
					{Key: "category", Value: 1},
					{Key: "isAvailable", Value: 1},
				},
				Options: options.Index().SetName("idx_category_available"),
			},
		},
	}
	for coll, models := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("ensure indexes on %s: %w", coll, err)
		}
	}
	return nil
}

// ---- users ----

type mongoUserRepository struct {
	coll *mongo.Collection
}

func NewMongoUserRepository(db *mongo.Database) UserRepository {
	return &mongoUserRepository{coll: db.Collection(usersCollection)}
}

func (r *mongoUserRepository) Create(ctx context.Context, user *model.User) error {
	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("user with email %q: %w", user.Email, common.ErrDuplicateEmail)
		}
		return fmt.Errorf("mongoUserRepository.Create: %w", err)
	}
	return nil
}

func (r *mongoUserRepository) findOne(ctx context.Context, op string, filter bson.M) (*model.User, error) {
	user := &model.User{}
	if err := r.coll.FindOne(ctx, filter).Decode(user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("mongoUserRepository.%s: %w", op, err)
	}
	return user, nil
}

func (r *mongoUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, "FindByEmail", bson.M{"email": email})
}

func (r *mongoUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, "FindByID", bson.M{"_id": id})
}

func (r *mongoUserRepository) List(ctx context.Context) ([]model.User, error) {
	cursor, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(insertionOrder))
	if err != nil {
		return nil, fmt.Errorf("mongoUserRepository.List: %w", err)
	}
	users := []model.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("mongoUserRepository.List decode: %w", err)
	}
	return users, nil
}

func (r *mongoUserRepository) Update(ctx context.Context, user *model.User) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("user with email %q: %w", user.Email, common.ErrDuplicateEmail)
		}
		return fmt.Errorf("mongoUserRepository.Update: %w", err)
	}
	if res.MatchedCount == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *mongoUserRepository) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.coll, id, "mongoUserRepository.Delete")
}

// ---- categories ----

type mongoCategoryRepository struct {
	coll *mongo.Collection
}

func NewMongoCategoryRepository(db *mongo.Database) CategoryRepository {
	return &mongoCategoryRepository{coll: db.Collection(categoriesCollection)}
}

func (r *mongoCategoryRepository) Create(ctx context.Context, c *model.Category) error {
	if _, err := r.coll.InsertOne(ctx, c); err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("category %q: %w", c.Name, common.ErrDuplicateName)
		}
		return fmt.Errorf("mongoCategoryRepository.Create: %w", err)
	}
	return nil
}

func (r *mongoCategoryRepository) findOne(ctx context.Context, op string, filter bson.M) (*model.Category, error) {
	c := &model.Category{}
	if err := r.coll.FindOne(ctx, filter).Decode(c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("mongoCategoryRepository.%s: %w", op, err)
	}
	return c, nil
}

func (r *mongoCategoryRepository) FindByID(ctx context.Context, id string) (*model.Category, error) {
	return r.findOne(ctx, "FindByID", bson.M{"_id": id})
}

func (r *mongoCategoryRepository) FindByName(ctx context.Context, name string) (*model.Category, error) {
	return r.findOne(ctx, "FindByName", bson.M{"name": name})
}

func (r *mongoCategoryRepository) FindByIDs(ctx context.Context, ids []string) ([]model.Category, error) {
	if len(ids) == 0 {
		return []model.Category{}, nil
	}
	return r.find(ctx, "FindByIDs", bson.M{"_id": bson.M{"$in": ids}})
}

func (r *mongoCategoryRepository) List(ctx context.Context, activeOnly bool) ([]model.Category, error) {
	filter := bson.M{}
	if activeOnly {
		filter["isActive"] = true
	}
	return r.find(ctx, "List", filter)
}

func (r *mongoCategoryRepository) find(ctx context.Context, op string, filter bson.M) ([]model.Category, error) {
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(insertionOrder))
	if err != nil {
		return nil, fmt.Errorf("mongoCategoryRepository.%s: %w", op, err)
	}
	categories := []model.Category{}
	if err := cursor.All(ctx, &categories); err != nil {
		return nil, fmt.Errorf("mongoCategoryRepository.%s decode: %w", op, err)
	}
	return categories, nil
}

func (r *mongoCategoryRepository) Update(ctx context.Context, c *model.Category) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": c.ID}, c)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("category %q: %w", c.Name, common.ErrDuplicateName)
		}
		return fmt.Errorf("mongoCategoryRepository.Update: %w", err)
	}
	if res.MatchedCount == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *mongoCategoryRepository) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.coll, id, "mongoCategoryRepository.Delete")
}

// ---- providers ----

type mongoProviderRepository struct {
	coll *mongo.Collection
}

func NewMongoProviderRepository(db *mongo.Database) ProviderRepository {
	return &mongoProviderRepository{coll: db.Collection(providersCollection)}
}

func (r *mongoProviderRepository) Create(ctx context.Context, p *model.ServiceProvider) error {
	if _, err := r.coll.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("mongoProviderRepository.Create: %w", err)
	}
	return nil
}

func (r *mongoProviderRepository) FindByID(ctx context.Context, id string) (*model.ServiceProvider, error) {
	p := &model.ServiceProvider{}
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("mongoProviderRepository.FindByID: %w", err)
	}
	return p, nil
}

func providerFilterDoc(filter ProviderFilter) bson.M {
	doc := bson.M{}
	if filter.CategoryID != "" {
		doc["category"] = filter.CategoryID
	}
	if filter.AvailableOnly {
		doc["isAvailable"] = true
	}
	if box := filter.Box; box != nil {
		doc["location.lat"] = bson.M{"$gte": box.MinLat, "$lte": box.MaxLat}
		switch len(box.LngRanges) {
		case 0:
		case 1:
			doc["location.lng"] = bson.M{"$gte": box.LngRanges[0].Min, "$lte": box.LngRanges[0].Max}
		default:
			ranges := make(bson.A, 0, len(box.LngRanges))
			for _, lr := range box.LngRanges {
				ranges = append(ranges, bson.M{"location.lng": bson.M{"$gte": lr.Min, "$lte": lr.Max}})
			}
			doc["$or"] = ranges
		}
	}
	return doc
}

func (r *mongoProviderRepository) List(ctx context.Context, filter ProviderFilter) ([]model.ServiceProvider, error) {
	cursor, err := r.coll.Find(ctx, providerFilterDoc(filter), options.Find().SetSort(insertionOrder))
	if err != nil {
		return nil, fmt.Errorf("mongoProviderRepository.List: %w", err)
	}
	providers := []model.ServiceProvider{}
	if err := cursor.All(ctx, &providers); err != nil {
		return nil, fmt.Errorf("mongoProviderRepository.List decode: %w", err)
	}
	return providers, nil
}

func (r *mongoProviderRepository) Update(ctx context.Context, p *model.ServiceProvider) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	if err != nil {
		return fmt.Errorf("mongoProviderRepository.Update: %w", err)
	}
	if res.MatchedCount == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *mongoProviderRepository) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.coll, id, "mongoProviderRepository.Delete")
}

func (r *mongoProviderRepository) CountByCategory(ctx context.Context, categoryID string) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"category": categoryID})
	if err != nil {
		return 0, fmt.Errorf("mongoProviderRepository.CountByCategory: %w", err)
	}
	return n, nil
}

func deleteByID(ctx context.Context, coll *mongo.Collection, id, op string) error {
	res, err := coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.DeletedCount == 0 {
		return common.ErrNotFound
	}
	return nil
}
