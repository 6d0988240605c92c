package service

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/csg33k/remessa-generator/internal/domain"
	"github.com/csg33k/remessa-generator/internal/ports"
)

// PeriodLayout names an archive period, e.g. "2024_02".
const PeriodLayout = "2006_01"

// PreviousPeriod returns the period of the month before now, the default
// archive target.
func PreviousPeriod(now time.Time) string {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return first.AddDate(0, -1, 0).Format(PeriodLayout)
}

type Archiver struct {
	charges ports.ChargeRepository
	archive ports.Archive
	logger  *log.Logger
}

func NewArchiver(charges ports.ChargeRepository, archive ports.Archive, logger *log.Logger) *Archiver {
	return &Archiver{charges: charges, archive: archive, logger: logger}
}

// ArchiveRemitted moves every charge already carried by a remittance into the
// archive for period and deletes it from the working store. It returns the
// archive location and the number of charges moved.
func (a *Archiver) ArchiveRemitted(ctx context.Context, period string) (string, int, error) {
	if _, err := time.Parse(PeriodLayout, period); err != nil {
		return "", 0, fmt.Errorf("period %q: want YYYY_MM", period)
	}
	all, err := a.charges.ListCharges(ctx)
	if err != nil {
		return "", 0, err
	}
	var (
		remitted []domain.Charge
		ids      []int64
	)
	for _, ch := range all {
		if ch.Assigned() {
			remitted = append(remitted, ch)
			ids = append(ids, ch.ID)
		}
	}
	if len(remitted) == 0 {
		return "", 0, fmt.Errorf("archive %s: %w: no remitted charges", period, domain.ErrNotFound)
	}

	where, err := a.archive.Archive(ctx, period, remitted)
	if err != nil {
		return "", 0, fmt.Errorf("archive %s: %w", period, err)
	}
	if err := a.charges.DeleteCharges(ctx, ids); err != nil {
		return where, 0, fmt.Errorf("charges were archived to %s but not removed: %w", where, err)
	}
	a.logger.Info("charges archived", "period", period, "count", len(ids), "archive", where)
	return where, len(ids), nil
}
