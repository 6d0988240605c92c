package ports

import (
	"context"
	"io"

	"github.com/csg33k/remessa-generator/internal/domain"
)

// ChargeRepository defines persistence operations for clients and charges.
type ChargeRepository interface {
	CreateClient(ctx context.Context, c *domain.Client) error
	GetClient(ctx context.Context, id int64) (*domain.Client, error)
	ListClients(ctx context.Context) ([]domain.Client, error)
	UpdateClient(ctx context.Context, c *domain.Client) error
	DeleteClient(ctx context.Context, id int64) error

	CreateCharge(ctx context.Context, c *domain.Charge) error
	GetCharge(ctx context.Context, id int64) (*domain.Charge, error)
	ListCharges(ctx context.Context) ([]domain.Charge, error)
	// ListPendingCharges returns unpaid charges not yet assigned to any NSA,
	// ordered by due date then ID.
	ListPendingCharges(ctx context.Context) ([]domain.Charge, error)
	UpdateCharge(ctx context.Context, c *domain.Charge) error
	DeleteCharge(ctx context.Context, id int64) error
	DeleteCharges(ctx context.Context, ids []int64) error

	// AssignCharges marks charges as carried by remittance nsa. Charges that
	// are already assigned must not be reassigned.
	AssignCharges(ctx context.Context, ids []int64, nsa int64) error
	// MarkPaid settles every payment or none of them.
	MarkPaid(ctx context.Context, payments []domain.Payment) error
}

// SequenceStore persists the NSA counter.
type SequenceStore interface {
	LoadSequence(ctx context.Context) (domain.SequenceState, error)
	// SaveSequence stores last as the new committed value. It must fail if the
	// stored value is already >= last.
	SaveSequence(ctx context.Context, last int64) error
}

// RemittanceHistory records every delivered remittance file.
type RemittanceHistory interface {
	RecordRemittance(ctx context.Context, l *domain.RemittanceLog) error
	// FindRemittance returns domain.ErrNotFound when nsa was never delivered.
	FindRemittance(ctx context.Context, nsa int64) (*domain.RemittanceLog, error)
	ListRemittances(ctx context.Context) ([]domain.RemittanceLog, error)
}

// PayloadSink hands a produced file to the user or the bank transport.
type PayloadSink interface {
	Deliver(ctx context.Context, name string, payload []byte) error
}

// Archive stores charges removed from the working set.
type Archive interface {
	Archive(ctx context.Context, period string, charges []domain.Charge) (string, error)
}

// RemittanceEncoder defines the remittance output port.
type RemittanceEncoder interface {
	Encode(b domain.Batch) (*domain.Remittance, error)
}

// ReturnDecoder defines the return-file input port.
type ReturnDecoder interface {
	Decode(r io.Reader) (*domain.ReturnFile, error)
}
