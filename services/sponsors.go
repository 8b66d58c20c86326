package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/phillip/localhub-go/metrics"
	"github.com/phillip/localhub-go/models"
	"github.com/phillip/localhub-go/store"
)

type SponsorStore interface {
	ActiveSponsors(ctx context.Context) ([]models.SupportingCompany, error)
	RecordSponsorView(ctx context.Context, id primitive.ObjectID, at time.Time) (*models.SupportingCompany, error)
	IncrementSponsorClicks(ctx context.Context, id primitive.ObjectID) error
	IncrementCounter(ctx context.Context, kind string, subjectID primitive.ObjectID, day, counter string, n int64) error
}

// Sponsors rotates supporting companies through the sponsor slot so the least
// shown sponsor is always served next.
type Sponsors struct {
	store SponsorStore
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewSponsors(s SponsorStore, log logrus.FieldLogger) *Sponsors {
	return &Sponsors{store: s, log: log, now: time.Now}
}

// selection attempts before giving up when sponsors are deactivated mid-pick
const maxPickAttempts = 3

// Next picks the active sponsor with the fewest views and records the view.
func (s *Sponsors) Next(ctx context.Context) (*models.SupportingCompany, error) {
	for attempt := 0; attempt < maxPickAttempts; attempt++ {
		sponsors, err := s.store.ActiveSponsors(ctx)
		if err != nil {
			return nil, err
		}
		pick := PickLeastViewed(sponsors)
		if pick == nil {
			return nil, ErrNoActiveSponsor
		}

		now := s.now()
		shown, err := s.store.RecordSponsorView(ctx, pick.ID, now)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("record sponsor view: %w", err)
		}

		metrics.SponsorImpressions.Inc()
		day := now.UTC().Format(models.DayLayout)
		if err := s.store.IncrementCounter(ctx, models.SubjectSponsor, shown.ID, day, models.CounterImpressions, 1); err != nil {
			s.log.WithError(err).WithField("sponsor_id", shown.ID.Hex()).Warn("sponsor impression not counted")
		}
		return shown, nil
	}
	return nil, ErrNoActiveSponsor
}

func (s *Sponsors) Click(ctx context.Context, id primitive.ObjectID) error {
	return s.store.IncrementSponsorClicks(ctx, id)
}

// PickLeastViewed returns the sponsor with the fewest views. Ties go to the
// one shown least recently (never shown first), then to slice order.
func PickLeastViewed(sponsors []models.SupportingCompany) *models.SupportingCompany {
	var best *models.SupportingCompany
	for i := range sponsors {
		sp := &sponsors[i]
		if best == nil || sp.Views < best.Views || (sp.Views == best.Views && shownBefore(sp, best)) {
			best = sp
		}
	}
	return best
}

func shownBefore(a, b *models.SupportingCompany) bool {
	switch {
	case a.LastShownAt == nil:
		return b.LastShownAt != nil
	case b.LastShownAt == nil:
		return false
	default:
		return a.LastShownAt.Before(*b.LastShownAt)
	}
}
