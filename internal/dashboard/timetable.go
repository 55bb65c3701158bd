package dashboard

import (
	"context"
	"time"

	"github.com/iliyamo/classsync/internal/cache"
	"github.com/iliyamo/classsync/internal/metrics"
	"github.com/iliyamo/classsync/internal/model"
	"github.com/iliyamo/classsync/internal/repository"
	"github.com/iliyamo/classsync/internal/toast"
)

var timetableNotices = cache.Notices{
	StaleTitle:   "Offline timetable",
	StaleMessage: "Showing last saved timetable copy.",
	MissTitle:    "Timetable error",
	MissMessage:  "Could not load timetable for your section.",
}

// timetableStore adapts the timetable repository to cache.Store.
type timetableStore struct {
	repo *repository.TimetableRepo
}

func (s timetableStore) Load(ctx context.Context, section string) (cache.Entry[model.WeeklyTimetable], error) {
	e, err := s.repo.Load(ctx, section)
	if err != nil {
		return cache.Entry[model.WeeklyTimetable]{}, err
	}
	return cache.Entry[model.WeeklyTimetable]{SavedAt: e.SavedAt, Value: e.Timetable}, nil
}

func (s timetableStore) Save(ctx context.Context, section string, e cache.Entry[model.WeeklyTimetable]) error {
	return s.repo.Save(ctx, section, repository.TimetableEntry{SavedAt: e.SavedAt, Timetable: e.Value})
}

// WeeklyTimetable is the answer of a timetable load.
type WeeklyTimetable struct {
	Section   string                `json:"section"`
	Source    cache.Source          `json:"source"`
	SavedAt   *time.Time            `json:"savedAt,omitempty"`
	Timetable model.WeeklyTimetable `json:"timetable"`
}

type timetableFetch func(ctx context.Context, section string) (model.WeeklyTimetable, error)

func loadTimetable(ctx context.Context, section string, fetch timetableFetch, repo *repository.TimetableRepo,
	toasts toast.Pusher, staleAfter time.Duration, now func() time.Time) WeeklyTimetable {
	f := &cache.Fetcher[model.WeeklyTimetable]{
		Fetch:      fetch,
		Store:      timetableStore{repo: repo},
		Toasts:     toasts,
		Notices:    timetableNotices,
		StaleAfter: staleAfter,
		Now:        now,
	}
	res := f.Get(ctx, section)
	metrics.TimetableFetches.WithLabelValues(string(res.Source)).Inc()

	out := WeeklyTimetable{Section: section, Source: res.Source, Timetable: res.Value}
	if res.Found() {
		t := res.SavedAt
		out.SavedAt = &t
	}
	if out.Timetable == nil {
		out.Timetable = model.WeeklyTimetable{}
	}
	return out
}
