package repository

import (
	"context"
	"testing"

	"service_finder/internal/common"
	"service_finder/internal/common/geo"
	"service_finder/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestMemoryStore_UniqueKeys(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Users().Create(ctx, &model.User{ID: "1", Email: "a@example.com"}))
	err := store.Users().Create(ctx, &model.User{ID: "2", Email: "a@example.com"})
	assert.ErrorIs(t, err, common.ErrDuplicateEmail)

	require.NoError(t, store.Categories().Create(ctx, &model.Category{ID: "c1", Name: "Plumbing"}))
	err = store.Categories().Create(ctx, &model.Category{ID: "c2", Name: "Plumbing"})
	assert.ErrorIs(t, err, common.ErrDuplicateName)
}

func TestMemoryStore_ProvidersAreCopied(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	p := &model.ServiceProvider{ID: "p1", CategoryID: "c1", Images: []string{"a"}, Services: []string{}}
	require.NoError(t, store.Providers().Create(ctx, p))

	p.Images[0] = "mutated"
	got, err := store.Providers().FindByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got.Images)
	assert.NotNil(t, got.Services, "empty lists must stay empty, not null")

	got.Images = append(got.Images, "b")
	again, err := store.Providers().FindByID(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, again.Images, 1)
}

func TestMemoryStore_ProviderFilter(t *testing.T) {
	store := NewMemoryStore()
	providers := store.Providers()
	ctx := context.Background()

	for _, p := range []model.ServiceProvider{
		{ID: "near", CategoryID: "c1", IsAvailable: true, Location: geo.Point{Lat: 10, Lng: 10}},
		{ID: "off", CategoryID: "c1", IsAvailable: false, Location: geo.Point{Lat: 10, Lng: 10}},
		{ID: "other", CategoryID: "c2", IsAvailable: true, Location: geo.Point{Lat: 10, Lng: 10}},
		{ID: "far", CategoryID: "c1", IsAvailable: true, Location: geo.Point{Lat: 50, Lng: 10}},
	} {
		p := p
		require.NoError(t, providers.Create(ctx, &p))
	}

	box := geo.BoundingBoxFor(geo.Point{Lat: 10, Lng: 10}, 10)
	got, err := providers.List(ctx, ProviderFilter{CategoryID: "c1", AvailableOnly: true, Box: &box})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "near", got[0].ID)

	all, err := providers.List(ctx, ProviderFilter{})
	require.NoError(t, err)
	ids := make([]string, len(all))
	for i, p := range all {
		ids[i] = p.ID
	}
	assert.Equal(t, []string{"near", "off", "other", "far"}, ids)

	n, err := providers.CountByCategory(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	assert.ErrorIs(t, providers.Delete(ctx, "missing"), common.ErrNotFound)
	assert.ErrorIs(t, providers.Update(ctx, &model.ServiceProvider{ID: "missing"}), common.ErrNotFound)
}

func TestProviderFilterDoc(t *testing.T) {
	assert.Equal(t, bson.M{}, providerFilterDoc(ProviderFilter{}))

	box := geo.BoundingBox{MinLat: 1, MaxLat: 2, LngRanges: []geo.LngRange{{Min: 3, Max: 4}}}
	doc := providerFilterDoc(ProviderFilter{CategoryID: "c1", AvailableOnly: true, Box: &box})
	assert.Equal(t, bson.M{
		"category":     "c1",
		"isAvailable":  true,
		"location.lat": bson.M{"$gte": 1.0, "$lte": 2.0},
		"location.lng": bson.M{"$gte": 3.0, "$lte": 4.0},
	}, doc)

	split := geo.BoundingBoxFor(geo.Point{Lat: 0, Lng: 179.9}, 10)
	doc = providerFilterDoc(ProviderFilter{Box: &split})
	assert.NotContains(t, doc, "location.lng")
	require.Contains(t, doc, "$or")
	assert.Len(t, doc["$or"], 2)

	polar := geo.BoundingBoxFor(geo.Point{Lat: 90, Lng: 0}, 10)
	doc = providerFilterDoc(ProviderFilter{Box: &polar})
	assert.NotContains(t, doc, "location.lng")
	assert.NotContains(t, doc, "$or")
}
