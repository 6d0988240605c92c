package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"

	"github.com/csg33k/remessa-generator/internal/domain"
	"github.com/csg33k/remessa-generator/internal/ports"
)

// Registry validates and stores clients and charges.
type Registry struct {
	charges  ports.ChargeRepository
	validate *validator.Validate
	logger   *log.Logger
}

func NewRegistry(charges ports.ChargeRepository, logger *log.Logger) *Registry {
	return &Registry{
		charges:  charges,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

func (r *Registry) AddClient(ctx context.Context, c *domain.Client) error {
	if err := r.check(c); err != nil {
		return fmt.Errorf("client: %w", err)
	}
	if err := r.charges.CreateClient(ctx, c); err != nil {
		return err
	}
	r.logger.Debug("client created", "id", c.ID, "billing", c.BillingCode)
	return nil
}

// AddCharge stores a new pending charge. The client must exist and have a
// billing code, otherwise the charge could never be remitted.
func (r *Registry) AddCharge(ctx context.Context, c *domain.Charge) error {
	if err := r.check(c); err != nil {
		return fmt.Errorf("charge: %w", err)
	}
	cl, err := r.charges.GetClient(ctx, c.ClientID)
	if err != nil {
		return err
	}
	if cl.BillingCode == "" {
		return fmt.Errorf("client %d has no billing code", cl.ID)
	}
	c.Status = domain.StatusPending
	c.RemittanceNSA = 0
	c.PaidOn = nil
	if err := r.charges.CreateCharge(ctx, c); err != nil {
		return err
	}
	r.logger.Debug("charge created", "id", c.ID, "client", c.ClientID, "amount", c.Amount.String())
	return nil
}

// UpdateClient replaces a client's editable fields.
func (r *Registry) UpdateClient(ctx context.Context, c *domain.Client) error {
	if err := r.check(c); err != nil {
		return fmt.Errorf("client: %w", err)
	}
	current, err := r.charges.GetClient(ctx, c.ID)
	if err != nil {
		return err
	}
	c.CreatedAt = current.CreatedAt
	if err := r.charges.UpdateClient(ctx, c); err != nil {
		return err
	}
	r.logger.Debug("client updated", "id", c.ID, "billing", c.BillingCode, "active", c.Active)
	return nil
}

// DeleteClient removes a client that no charge refers to. Clients with charges
// should be deactivated instead.
func (r *Registry) DeleteClient(ctx context.Context, id int64) error {
	charges, err := r.charges.ListCharges(ctx)
	if err != nil {
		return err
	}
	n := 0
	for _, ch := range charges {
		if ch.ClientID == id {
			n++
		}
	}
	if n > 0 {
		return fmt.Errorf("client %d has %d charge(s); deactivate it instead", id, n)
	}
	if err := r.charges.DeleteClient(ctx, id); err != nil {
		return err
	}
	r.logger.Debug("client deleted", "id", id)
	return nil
}

// editableCharge loads a charge that no remittance has carried yet.
func (r *Registry) editableCharge(ctx context.Context, id int64) (*domain.Charge, error) {
	ch, err := r.charges.GetCharge(ctx, id)
	if err != nil {
		return nil, err
	}
	if ch.Assigned() {
		return nil, fmt.Errorf("charge %d (NSA %d): %w", id, ch.RemittanceNSA, domain.ErrAlreadyAssigned)
	}
	if ch.Status == domain.StatusPaid {
		return nil, fmt.Errorf("charge %d is already paid", id)
	}
	return ch, nil
}

// UpdateCharge changes client, amount, due date or description of a pending
// charge. Status and remittance assignment are kept.
func (r *Registry) UpdateCharge(ctx context.Context, c *domain.Charge) error {
	if err := r.check(c); err != nil {
		return fmt.Errorf("charge: %w", err)
	}
	current, err := r.editableCharge(ctx, c.ID)
	if err != nil {
		return err
	}
	cl, err := r.charges.GetClient(ctx, c.ClientID)
	if err != nil {
		return err
	}
	if cl.BillingCode == "" {
		return fmt.Errorf("client %d has no billing code", cl.ID)
	}
	c.Status = current.Status
	c.RemittanceNSA = current.RemittanceNSA
	c.PaidOn = current.PaidOn
	c.CreatedAt = current.CreatedAt
	if err := r.charges.UpdateCharge(ctx, c); err != nil {
		return err
	}
	r.logger.Debug("charge updated", "id", c.ID, "amount", c.Amount.String())
	return nil
}

// DeleteCharge removes a pending charge. Remitted charges leave the store only
// through the archive.
func (r *Registry) DeleteCharge(ctx context.Context, id int64) error {
	if _, err := r.editableCharge(ctx, id); err != nil {
		return err
	}
	if err := r.charges.DeleteCharge(ctx, id); err != nil {
		return err
	}
	r.logger.Debug("charge deleted", "id", id)
	return nil
}

func (r *Registry) Clients(ctx context.Context) ([]domain.Client, error) {
	return r.charges.ListClients(ctx)
}

func (r *Registry) Charges(ctx context.Context, pendingOnly bool) ([]domain.Charge, error) {
	if pendingOnly {
		return r.charges.ListPendingCharges(ctx)
	}
	return r.charges.ListCharges(ctx)
}

// check runs struct validation and flattens the result into one error.
func (r *Registry) check(v any) error {
	err := r.validate.Struct(v)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, e.Field()+": "+validationMessage(e))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + e.Param() + " characters"
	case "len":
		return "must be exactly " + e.Param() + " characters"
	case "numeric":
		return "must be numeric"
	case "gt":
		return "must be greater than " + e.Param()
	default:
		return "is invalid"
	}
}
