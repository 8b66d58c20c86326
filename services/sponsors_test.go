package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/phillip/localhub-go/models"
	"github.com/phillip/localhub-go/store"
)

func sponsor(name string, views int64, lastShown *time.Time) models.SupportingCompany {
	return models.SupportingCompany{
		ID:          primitive.NewObjectID(),
		Name:        name,
		IsActive:    true,
		Views:       views,
		LastShownAt: lastShown,
	}
}

func TestPickLeastViewed(t *testing.T) {
	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)

	tests := []struct {
		name     string
		sponsors []models.SupportingCompany
		want     string
	}{
		{"empty", nil, ""},
		{"fewest views wins", []models.SupportingCompany{sponsor("a", 5, nil), sponsor("b", 2, &late), sponsor("c", 9, nil)}, "b"},
		{"never shown beats shown", []models.SupportingCompany{sponsor("a", 3, &early), sponsor("b", 3, nil)}, "b"},
		{"older impression wins tie", []models.SupportingCompany{sponsor("a", 3, &late), sponsor("b", 3, &early)}, "b"},
		{"slice order breaks full tie", []models.SupportingCompany{sponsor("a", 0, nil), sponsor("b", 0, nil)}, "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PickLeastViewed(tt.sponsors)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestSponsorsNext_RecordsViewAndImpression(t *testing.T) {
	fs := newFakeStore()
	fs.sponsors = []models.SupportingCompany{sponsor("busy", 10, nil), sponsor("quiet", 1, nil)}
	now := time.Date(2026, 5, 3, 9, 30, 0, 0, time.UTC)

	svc := NewSponsors(fs, quietLogger())
	svc.now = func() time.Time { return now }

	got, err := svc.Next(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "quiet", got.Name)
	assert.Equal(t, int64(2), got.Views)
	assert.Equal(t, int64(1), got.MonthlyViews)
	require.NotNil(t, got.LastShownAt)
	assert.True(t, got.LastShownAt.Equal(now))

	key := models.SubjectSponsor + "/" + got.ID.Hex() + "/2026-05-03/" + models.CounterImpressions
	assert.Equal(t, int64(1), fs.counters[key])
}

func TestSponsorsNext_RotatesAcrossCalls(t *testing.T) {
	fs := newFakeStore()
	fs.sponsors = []models.SupportingCompany{sponsor("a", 0, nil), sponsor("b", 0, nil), sponsor("c", 0, nil)}
	svc := NewSponsors(fs, quietLogger())

	seen := map[string]int{}
	for i := 0; i < 6; i++ {
		got, err := svc.Next(context.Background())
		require.NoError(t, err)
		seen[got.Name]++
	}
	assert.Equal(t, map[string]int{"a": 2, "b": 2, "c": 2}, seen)
}

func TestSponsorsNext_NoActiveSponsor(t *testing.T) {
	fs := newFakeStore()
	inactive := sponsor("off", 0, nil)
	inactive.IsActive = false
	fs.sponsors = []models.SupportingCompany{inactive}

	_, err := NewSponsors(fs, quietLogger()).Next(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveSponsor)
}

func TestSponsorsNext_RetriesWhenPickDisappears(t *testing.T) {
	fs := newFakeStore()
	gone := sponsor("gone", 0, nil)
	fs.sponsors = []models.SupportingCompany{gone, sponsor("stays", 4, nil)}
	fs.failRecordView = func(id primitive.ObjectID) error {
		if id != gone.ID {
			return nil
		}
		fs.mu.Lock()
		fs.sponsors[0].IsActive = false
		fs.mu.Unlock()
		return store.ErrNotFound
	}

	got, err := NewSponsors(fs, quietLogger()).Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "stays", got.Name)
}

func TestSponsorsClick(t *testing.T) {
	fs := newFakeStore()
	fs.sponsors = []models.SupportingCompany{sponsor("a", 0, nil)}
	svc := NewSponsors(fs, quietLogger())

	require.NoError(t, svc.Click(context.Background(), fs.sponsors[0].ID))
	assert.Equal(t, int64(1), fs.sponsors[0].Clicks)

	assert.ErrorIs(t, svc.Click(context.Background(), primitive.NewObjectID()), store.ErrNotFound)
}
