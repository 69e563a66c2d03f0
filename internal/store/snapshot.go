package store

import (
	"fmt"

	"marketpulse/internal/model"
)

// SnapshotCache stores one MarketSnapshot per date.
type SnapshotCache struct {
	f *File
}

func NewSnapshotCache(path string) *SnapshotCache {
	return &SnapshotCache{f: NewFile(path)}
}

// Save stores snap under its date, replacing any previous entry.
func (c *SnapshotCache) Save(snap *model.MarketSnapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: nil snapshot", model.ErrMalformedInput)
	}
	if _, err := model.ParseDate(snap.Date); err != nil {
		return err
	}
	return c.f.Put(snap.Date, snap)
}

// Load returns the snapshot cached for date, or false when there is none. A
// cached entry that fails validation is ErrMalformedInput.
func (c *SnapshotCache) Load(date string) (*model.MarketSnapshot, bool, error) {
	if _, err := model.ParseDate(date); err != nil {
		return nil, false, err
	}
	var snap model.MarketSnapshot
	ok, err := c.f.Get(date, &snap)
	if err != nil || !ok {
		return nil, false, err
	}
	if err := snap.Validate(); err != nil {
		return nil, false, err
	}
	if snap.Date != date {
		return nil, false, fmt.Errorf("%w: entry %s carries date %s", model.ErrMalformedInput, date, snap.Date)
	}
	return &snap, true, nil
}

// Dates lists the cached dates in ascending order.
func (c *SnapshotCache) Dates() ([]string, error) {
	return c.f.Keys()
}
