package challenge

import (
	"context"
	"fmt"
	"html"
	"time"

	"go.uber.org/zap"
)

// Entry is one challenge prepared for a viewing user's listing. Title,
// Tags, and Description are evaluated independently; a fault in any one is
// replaced with an inert diagnostic rendering for that field only.
type Entry struct {
	CID         string
	Team        bool
	Start       time.Time
	Stop        time.Time
	SolvedAt    time.Time
	Solves      int
	Title       string
	Tags        []string
	Description string
}

// Solved reports whether the viewer (or their team) has solved the entry.
func (e Entry) Solved() bool {
	return !e.SolvedAt.IsZero()
}

// Listing assembles the challenge listing for a viewing user: every
// challenge whose window has started, joined with the viewer's solve state,
// filtered to entries that are solved or visible to the viewer. Faults in
// individual capabilities never discard sibling entries.
func (s *Set) Listing(ctx context.Context, user string) ([]Entry, error) {
	rows, err := s.env.Store.ListingRows(ctx, user, time.Now())
	if err != nil {
		return nil, fmt.Errorf("listing rows for %s: %w", user, err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		inst, ok := s.instances[row.CID]
		if !ok {
			// NewSet resolves every configured cid, so a row without an
			// instance means the window opened after startup.
			continue
		}
		logger := s.env.Logger().Named(row.CID)

		entry := Entry{
			CID:      row.CID,
			Team:     row.Team,
			Start:    row.Window.Start,
			Stop:     row.Window.Stop,
			SolvedAt: row.SolvedAt,
			Solves:   row.Solves,
		}

		if !entry.Solved() {
			visible := true
			err := capture(func() error {
				var err error
				visible, err = inst.ch.Visible(ctx, user)
				return err
			})
			if err != nil {
				// A faulting visibility check keeps the entry listed.
				logger.Error("visibility check failed", zap.Error(err))
				visible = true
			}
			if !visible {
				continue
			}
		}

		if err := capture(func() error {
			entry.Title = inst.ch.Title()
			return nil
		}); err != nil {
			logger.Error("title evaluation failed", zap.Error(err))
			entry.Title = "Title Error"
			entry.Description = diagnostic(err)
			entries = append(entries, entry)
			continue
		}

		if err := capture(func() error {
			entry.Tags = inst.ch.Tags()
			return nil
		}); err != nil {
			logger.Error("tags evaluation failed", zap.Error(err))
			entry.Tags = nil
			entry.Description = diagnostic(err)
			entries = append(entries, entry)
			continue
		}

		if err := capture(func() error {
			var err error
			entry.Description, err = inst.ch.Description(ctx, user, entry.Solved())
			return err
		}); err != nil {
			logger.Error("description evaluation failed", zap.Error(err))
			entry.Description = diagnostic(err)
		}

		entries = append(entries, entry)
	}
	return entries, nil
}

// diagnostic renders a capability fault as inert placeholder markup.
func diagnostic(err error) string {
	return "<pre>" + html.EscapeString(err.Error()) + "</pre>"
}
