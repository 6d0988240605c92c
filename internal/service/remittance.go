// Package service holds the remittance workflows: generating a REMESSA file,
// reconciling a RETORNO file, and archiving remitted charges.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/csg33k/remessa-generator/internal/domain"
	"github.com/csg33k/remessa-generator/internal/ports"
	"github.com/csg33k/remessa-generator/internal/sequence"
)

type Remittances struct {
	charges ports.ChargeRepository
	history ports.RemittanceHistory
	counter *sequence.Counter
	encoder ports.RemittanceEncoder
	sink    ports.PayloadSink
	company domain.Company
	logger  *log.Logger

	// Unresolved decides what happens to charges whose client is missing or
	// inactive. Defaults to domain.SkipUnresolved.
	Unresolved domain.UnresolvedPolicy
	Now        func() time.Time
}

func NewRemittances(
	charges ports.ChargeRepository,
	history ports.RemittanceHistory,
	counter *sequence.Counter,
	encoder ports.RemittanceEncoder,
	sink ports.PayloadSink,
	company domain.Company,
	logger *log.Logger,
) *Remittances {
	return &Remittances{
		charges: charges,
		history: history,
		counter: counter,
		encoder: encoder,
		sink:    sink,
		company: company,
		logger:  logger,
		Now:     time.Now,
	}
}

// Generate builds, delivers and commits one remittance file. With no ids every
// pending charge is included; otherwise only the listed charges, of which
// already remitted or paid ones are left out.
//
// An error matching domain.ErrSequenceCommit means the file was delivered
// but its NSA was not saved; see sequence.Counter.Resolve.
func (s *Remittances) Generate(ctx context.Context, ids ...int64) (*domain.Remittance, error) {
	charges, err := s.selectCharges(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(charges) == 0 {
		return nil, domain.ErrEmptyBatch
	}

	items, err := s.resolveClients(ctx, charges)
	if err != nil {
		return nil, err
	}

	seq, err := s.counter.PeekNext(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.checkNotDelivered(ctx, seq); err != nil {
		s.counter.Abandon(seq)
		return nil, err
	}

	rem, err := s.encoder.Encode(domain.Batch{
		Items:       items,
		Company:     s.company,
		GeneratedOn: s.Now(),
		Sequence:    seq,
		Unresolved:  s.Unresolved,
	})
	if err != nil {
		s.counter.Abandon(seq)
		return nil, err
	}
	for _, id := range rem.Skipped {
		s.logger.Warn("charge skipped: client missing or inactive", "charge", id, "nsa", seq.Number)
	}

	if err := s.sink.Deliver(ctx, rem.FileName, rem.Payload); err != nil {
		s.counter.Abandon(seq)
		return nil, fmt.Errorf("deliver %s: %w", rem.FileName, err)
	}

	entry := &domain.RemittanceLog{
		NSA:         seq.Number,
		FileName:    rem.FileName,
		DetailCount: rem.DetailCount,
		Total:       rem.Total,
		CreatedAt:   s.Now(),
	}

	if err := s.counter.Commit(ctx, seq); err != nil {
		s.logger.Error("remittance delivered but NSA was not saved; write it down and run `remessa nsa resolve` before generating another file",
			"nsa", seq.Number, "file", rem.FileName, "err", err)
		// Best effort: a history row lets the next run detect the reused NSA.
		if herr := s.history.RecordRemittance(ctx, entry); herr != nil {
			s.logger.Error("could not record remittance history", "nsa", seq.Number, "err", herr)
		}
		if aerr := s.charges.AssignCharges(ctx, rem.Included, seq.Number); aerr != nil {
			s.logger.Error("could not assign charges", "nsa", seq.Number, "err", aerr)
			return rem, errors.Join(err, fmt.Errorf("%w: %w", domain.ErrChargesNotAssigned, aerr))
		}
		return rem, err
	}

	// The file is out: its charges are assigned even when the history row
	// cannot be written, so the next file does not carry them again.
	herr := s.history.RecordRemittance(ctx, entry)
	if herr != nil {
		s.logger.Error("could not record remittance history", "nsa", seq.Number, "err", herr)
	}
	if err := s.charges.AssignCharges(ctx, rem.Included, seq.Number); err != nil {
		s.logger.Error("delivered charges are still pending; assign them before generating another file",
			"nsa", seq.Number, "charges", rem.Included, "err", err)
		return rem, fmt.Errorf("NSA %d %v: %w: %w", seq.Number, rem.Included, domain.ErrChargesNotAssigned, err)
	}
	if herr != nil {
		return rem, fmt.Errorf("record remittance %d: %w", seq.Number, herr)
	}

	s.logger.Info("remittance generated",
		"nsa", seq.FileID(), "file", rem.FileName,
		"details", rem.DetailCount, "total", rem.Total.String(), "skipped", len(rem.Skipped))
	return rem, nil
}

func (s *Remittances) selectCharges(ctx context.Context, ids []int64) ([]domain.Charge, error) {
	if len(ids) == 0 {
		return s.charges.ListPendingCharges(ctx)
	}
	out := make([]domain.Charge, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		ch, err := s.charges.GetCharge(ctx, id)
		if err != nil {
			return nil, err
		}
		switch {
		case ch.Assigned():
			s.logger.Warn("charge already remitted; excluded", "charge", id, "nsa", ch.RemittanceNSA)
			continue
		case ch.Status == domain.StatusPaid:
			s.logger.Warn("charge already paid; excluded", "charge", id)
			continue
		}
		out = append(out, *ch)
	}
	return out, nil
}

// resolveClients pairs each charge with its client. Missing and inactive
// clients leave BatchItem.Client nil; the encoder applies the policy.
func (s *Remittances) resolveClients(ctx context.Context, charges []domain.Charge) ([]domain.BatchItem, error) {
	cache := make(map[int64]*domain.Client)
	items := make([]domain.BatchItem, 0, len(charges))
	for _, ch := range charges {
		cl, cached := cache[ch.ClientID]
		if !cached {
			got, err := s.charges.GetClient(ctx, ch.ClientID)
			switch {
			case errors.Is(err, domain.ErrNotFound):
				cl = nil
			case err != nil:
				return nil, err
			case !got.Active:
				s.logger.Debug("client inactive", "client", got.ID)
				cl = nil
			default:
				cl = got
			}
			cache[ch.ClientID] = cl
		}
		items = append(items, domain.BatchItem{Charge: ch, Client: cl})
	}
	return items, nil
}

// checkNotDelivered refuses an NSA that already names a delivered file. That
// happens when a previous run failed to save the counter.
func (s *Remittances) checkNotDelivered(ctx context.Context, seq domain.FileSequence) error {
	prev, err := s.history.FindRemittance(ctx, seq.Number)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: NSA %d was already used by %s on %s",
		domain.ErrManualIntervention, seq.Number, prev.FileName, prev.CreatedAt.Format(time.DateOnly))
}

// History lists delivered remittances in NSA order.
func (s *Remittances) History(ctx context.Context) ([]domain.RemittanceLog, error) {
	return s.history.ListRemittances(ctx)
}
