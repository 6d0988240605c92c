package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/csg33k/remessa-generator/internal/domain"
	"github.com/csg33k/remessa-generator/internal/ports"
)

// Settlement links a return record to the charge it refers to.
type Settlement struct {
	Record      domain.ReturnRecord
	ChargeID    int64
	Description string
}

type ReconcileReport struct {
	File *domain.ReturnFile
	// Paid were debited by the bank; with apply they are now marked paid.
	Paid []Settlement
	// AlreadyPaid were debited but the charge was paid before this file.
	AlreadyPaid []Settlement
	Rejected    []Settlement
	Unmatched   []domain.ReturnRecord
	// Echoed counts E records, which carry no outcome.
	Echoed  int
	Applied bool
}

// Total of the amounts actually debited.
func (r *ReconcileReport) PaidTotal() domain.Cents {
	var t domain.Cents
	for _, s := range r.Paid {
		t += s.Record.Amount
	}
	return t
}

type Returns struct {
	charges ports.ChargeRepository
	decoder ports.ReturnDecoder
	logger  *log.Logger
}

func NewReturns(charges ports.ChargeRepository, decoder ports.ReturnDecoder, logger *log.Logger) *Returns {
	return &Returns{charges: charges, decoder: decoder, logger: logger}
}

type matchKey struct {
	billing string
	due     string
	amount  domain.Cents
}

// Reconcile decodes a return file and matches each record to a remitted charge
// by client billing code, due date and amount. With apply false nothing is
// written.
func (s *Returns) Reconcile(ctx context.Context, r io.Reader, apply bool) (*ReconcileReport, error) {
	rf, err := s.decoder.Decode(r)
	if err != nil {
		return nil, err
	}

	clients, err := s.charges.ListClients(ctx)
	if err != nil {
		return nil, err
	}
	billing := make(map[int64]string, len(clients))
	for _, c := range clients {
		billing[c.ID] = c.BillingCode
	}

	charges, err := s.charges.ListCharges(ctx)
	if err != nil {
		return nil, err
	}
	candidates := make(map[matchKey][]domain.Charge)
	for _, ch := range charges {
		code, ok := billing[ch.ClientID]
		if !ok || !ch.Assigned() {
			continue
		}
		k := matchKey{billing: code, due: ch.DueDate.Format(time.DateOnly), amount: ch.Amount}
		candidates[k] = append(candidates[k], ch)
	}

	report := &ReconcileReport{File: rf, Applied: apply}
	for _, rec := range rf.Records {
		if rec.OutcomeCode == "" {
			report.Echoed++
			continue
		}
		k := matchKey{billing: rec.ClientCode, due: rec.DueDate.Format(time.DateOnly), amount: rec.Amount}
		list := candidates[k]
		if len(list) == 0 {
			s.logger.Warn("return record matches no remitted charge",
				"line", rec.Line, "client", rec.ClientCode, "amount", rec.Amount.String())
			report.Unmatched = append(report.Unmatched, rec)
			continue
		}
		ch := list[0]
		candidates[k] = list[1:]

		st := Settlement{Record: rec, ChargeID: ch.ID, Description: domain.OutcomeDescription(rec.OutcomeCode)}
		switch {
		case !rec.Paid():
			report.Rejected = append(report.Rejected, st)
		case ch.Status == domain.StatusPaid:
			report.AlreadyPaid = append(report.AlreadyPaid, st)
		default:
			report.Paid = append(report.Paid, st)
		}
	}

	if apply && len(report.Paid) > 0 {
		payments := make([]domain.Payment, 0, len(report.Paid))
		for _, st := range report.Paid {
			on := st.Record.ProcessedOn
			if on.IsZero() {
				on = st.Record.DueDate
			}
			payments = append(payments, domain.Payment{ChargeID: st.ChargeID, PaidOn: on})
		}
		if err := s.charges.MarkPaid(ctx, payments); err != nil {
			report.Applied = false
			return report, fmt.Errorf("mark %d charges paid, none applied: %w", len(payments), err)
		}
	}

	s.logger.Info("return file reconciled",
		"nsa", rf.NSA, "paid", len(report.Paid), "rejected", len(report.Rejected),
		"unmatched", len(report.Unmatched), "applied", apply)
	return report, nil
}
