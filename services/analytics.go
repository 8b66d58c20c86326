package services

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/phillip/localhub-go/models"
)

type AnalyticsStore interface {
	IncrementCounter(ctx context.Context, kind string, subjectID primitive.ObjectID, day, counter string, n int64) error
	AnalyticsDays(ctx context.Context, kind string, subjectID *primitive.ObjectID, from, to string) ([]models.AnalyticsDay, error)
}

// Analytics records daily counters and reduces them into reports.
type Analytics struct {
	store AnalyticsStore
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewAnalytics(s AnalyticsStore, log logrus.FieldLogger) *Analytics {
	return &Analytics{store: s, log: log, now: time.Now}
}

const (
	defaultRangeDays = 30
	maxRangeDays     = 366
)

type DayPoint struct {
	Day      string           `json:"day"`
	Counters map[string]int64 `json:"counters"`
}

type Summary struct {
	From             string           `json:"from"`
	To               string           `json:"to"`
	Totals           map[string]int64 `json:"totals"`
	Series           []DayPoint       `json:"series"`
	ClickThroughRate float64          `json:"click_through_rate"`
}

type SubjectTotal struct {
	SubjectID primitive.ObjectID `json:"subject_id"`
	Totals    map[string]int64   `json:"totals"`
}

type Overview struct {
	From   string           `json:"from"`
	To     string           `json:"to"`
	Totals map[string]int64 `json:"totals"`
	Top    []SubjectTotal   `json:"top"`
}

// Record bumps one counter for today.
func (a *Analytics) Record(ctx context.Context, kind string, subjectID primitive.ObjectID, counter string) error {
	day := a.now().UTC().Format(models.DayLayout)
	return a.store.IncrementCounter(ctx, kind, subjectID, day, counter, 1)
}

// RecordAsync records a counter without holding up the request. Failures are logged.
func (a *Analytics) RecordAsync(kind string, subjectID primitive.ObjectID, counter string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Record(ctx, kind, subjectID, counter); err != nil {
			a.log.WithError(err).WithFields(logrus.Fields{
				"kind":       kind,
				"subject_id": subjectID.Hex(),
				"counter":    counter,
			}).Warn("analytics counter not recorded")
		}
	}()
}

// ParseRange validates a YYYY-MM-DD range; empty bounds default to the last
// 30 days ending today.
func (a *Analytics) ParseRange(fromStr, toStr string) (time.Time, time.Time, error) {
	today := a.now().UTC().Truncate(24 * time.Hour)

	to := today
	if toStr != "" {
		t, err := time.Parse(models.DayLayout, toStr)
		if err != nil {
			return time.Time{}, time.Time{}, ErrInvalidRange
		}
		to = t
	}

	from := to.AddDate(0, 0, -(defaultRangeDays - 1))
	if fromStr != "" {
		f, err := time.Parse(models.DayLayout, fromStr)
		if err != nil {
			return time.Time{}, time.Time{}, ErrInvalidRange
		}
		from = f
	}

	if to.Before(from) || to.Sub(from) >= maxRangeDays*24*time.Hour {
		return time.Time{}, time.Time{}, ErrInvalidRange
	}
	return from, to, nil
}

// Summary reduces one subject's days into a report.
func (a *Analytics) Summary(ctx context.Context, kind string, subjectID primitive.ObjectID, from, to time.Time) (*Summary, error) {
	days, err := a.store.AnalyticsDays(ctx, kind, &subjectID, from.Format(models.DayLayout), to.Format(models.DayLayout))
	if err != nil {
		return nil, err
	}
	s := Summarize(days, from, to)
	return &s, nil
}

// Overview reduces every subject of a kind and ranks the top n by views.
func (a *Analytics) Overview(ctx context.Context, kind string, from, to time.Time, n int) (*Overview, error) {
	days, err := a.store.AnalyticsDays(ctx, kind, nil, from.Format(models.DayLayout), to.Format(models.DayLayout))
	if err != nil {
		return nil, err
	}
	return &Overview{
		From:   from.Format(models.DayLayout),
		To:     to.Format(models.DayLayout),
		Totals: reduceTotals(days),
		Top:    RankSubjects(days, models.CounterViews, n),
	}, nil
}

// Summarize folds day documents into totals and a gap-free daily series.
func Summarize(days []models.AnalyticsDay, from, to time.Time) Summary {
	byDay := make(map[string]map[string]int64, len(days))
	for _, d := range days {
		counters := byDay[d.Day]
		if counters == nil {
			counters = make(map[string]int64)
			byDay[d.Day] = counters
		}
		for k, v := range d.Counters {
			counters[k] += v
		}
	}

	series := []DayPoint{}
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		key := day.Format(models.DayLayout)
		counters := byDay[key]
		if counters == nil {
			counters = map[string]int64{}
		}
		series = append(series, DayPoint{Day: key, Counters: counters})
	}

	totals := reduceTotals(days)
	return Summary{
		From:             from.Format(models.DayLayout),
		To:               to.Format(models.DayLayout),
		Totals:           totals,
		Series:           series,
		ClickThroughRate: ClickThroughRate(totals),
	}
}

// ClickThroughRate is contact clicks over profile views.
func ClickThroughRate(totals map[string]int64) float64 {
	views := totals[models.CounterViews]
	if views == 0 {
		return 0
	}
	clicks := totals[models.CounterWebsiteClicks] + totals[models.CounterPhoneClicks] + totals[models.CounterDirectionClicks]
	return float64(clicks) / float64(views)
}

// RankSubjects totals each subject and returns the n with the highest counter.
func RankSubjects(days []models.AnalyticsDay, counter string, n int) []SubjectTotal {
	bySubject := make(map[primitive.ObjectID]map[string]int64)
	for _, d := range days {
		totals := bySubject[d.SubjectID]
		if totals == nil {
			totals = make(map[string]int64)
			bySubject[d.SubjectID] = totals
		}
		for k, v := range d.Counters {
			totals[k] += v
		}
	}

	ranked := make([]SubjectTotal, 0, len(bySubject))
	for id, totals := range bySubject {
		ranked = append(ranked, SubjectTotal{SubjectID: id, Totals: totals})
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i].Totals[counter], ranked[j].Totals[counter]
		if a == b {
			return ranked[i].SubjectID.Hex() < ranked[j].SubjectID.Hex()
		}
		return a > b
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func reduceTotals(days []models.AnalyticsDay) map[string]int64 {
	totals := make(map[string]int64)
	for _, d := range days {
		for k, v := range d.Counters {
			totals[k] += v
		}
	}
	return totals
}
