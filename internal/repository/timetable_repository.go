package repository

import (
	"context"
	"time"

	"github.com/iliyamo/classsync/internal/model"
)

// TimetableEntry is the last successfully fetched weekly timetable of a
// section together with the moment it was fetched.
type TimetableEntry struct {
	SavedAt   time.Time             `json:"savedAt"`
	Timetable model.WeeklyTimetable `json:"timetable"`
}

// TimetableRepo caches one weekly timetable per section.  Entries are
// overwritten on every successful fetch and never cleared.
type TimetableRepo struct {
	KV     KV
	Prefix string
}

func NewTimetableRepo(kv KV, prefix string) *TimetableRepo {
	return &TimetableRepo{KV: kv, Prefix: prefix}
}

// Key returns the storage key of section.
func (r *TimetableRepo) Key(section string) string {
	return r.Prefix + "_" + section
}

// Load returns the cached entry of section or ErrNotFound.
func (r *TimetableRepo) Load(ctx context.Context, section string) (TimetableEntry, error) {
	var e TimetableEntry
	if err := getJSON(ctx, r.KV, r.Key(section), &e); err != nil {
		return TimetableEntry{}, err
	}
	return e, nil
}

func (r *TimetableRepo) Save(ctx context.Context, section string, e TimetableEntry) error {
	return setJSON(ctx, r.KV, r.Key(section), e)
}
