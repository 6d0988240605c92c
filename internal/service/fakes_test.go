package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/csg33k/remessa-generator/internal/domain"
)

func quietLogger() *log.Logger { return log.New(io.Discard) }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// memRepo implements ports.ChargeRepository, ports.RemittanceHistory and
// ports.SequenceStore in memory.
type memRepo struct {
	mu          sync.Mutex
	nextID      int64
	clients     map[int64]domain.Client
	charges     map[int64]domain.Charge
	remittances map[int64]domain.RemittanceLog
	last        int64
	saveErr     error
	historyErr  error
	assignErr   error
	markErr     error
}

func newMemRepo() *memRepo {
	return &memRepo{
		clients:     map[int64]domain.Client{},
		charges:     map[int64]domain.Charge{},
		remittances: map[int64]domain.RemittanceLog{},
	}
}

func (m *memRepo) id() int64 { m.nextID++; return m.nextID }

func (m *memRepo) CreateClient(_ context.Context, c *domain.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.id()
	m.clients[c.ID] = *c
	return nil
}

func (m *memRepo) GetClient(_ context.Context, id int64) (*domain.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return nil, fmt.Errorf("client %d: %w", id, domain.ErrNotFound)
	}
	return &c, nil
}

func (m *memRepo) ListClients(context.Context) ([]domain.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Client
	for _, c := range m.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRepo) UpdateClient(_ context.Context, c *domain.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[c.ID] = *c
	return nil
}

func (m *memRepo) DeleteClient(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clients, id)
	return nil
}

func (m *memRepo) CreateCharge(_ context.Context, c *domain.Charge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.id()
	if c.Status == "" {
		c.Status = domain.StatusPending
	}
	m.charges[c.ID] = *c
	return nil
}

func (m *memRepo) GetCharge(_ context.Context, id int64) (*domain.Charge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.charges[id]
	if !ok {
		return nil, fmt.Errorf("charge %d: %w", id, domain.ErrNotFound)
	}
	return &c, nil
}

func (m *memRepo) list(keep func(domain.Charge) bool) []domain.Charge {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Charge
	for _, c := range m.charges {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *memRepo) ListCharges(context.Context) ([]domain.Charge, error) {
	return m.list(func(domain.Charge) bool { return true }), nil
}

func (m *memRepo) ListPendingCharges(context.Context) ([]domain.Charge, error) {
	return m.list(func(c domain.Charge) bool {
		return !c.Assigned() && c.Status == domain.StatusPending
	}), nil
}

func (m *memRepo) UpdateCharge(_ context.Context, c *domain.Charge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.charges[c.ID] = *c
	return nil
}

func (m *memRepo) DeleteCharge(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.charges, id)
	return nil
}

func (m *memRepo) DeleteCharges(_ context.Context, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.charges, id)
	}
	return nil
}

func (m *memRepo) AssignCharges(_ context.Context, ids []int64, nsa int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.assignErr != nil {
		return m.assignErr
	}
	for _, id := range ids {
		if c := m.charges[id]; c.Assigned() {
			return domain.ErrAlreadyAssigned
		}
	}
	for _, id := range ids {
		c := m.charges[id]
		c.RemittanceNSA = nsa
		m.charges[id] = c
	}
	return nil
}

func (m *memRepo) MarkPaid(_ context.Context, payments []domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	for _, p := range payments {
		if _, ok := m.charges[p.ChargeID]; !ok {
			return fmt.Errorf("charge %d: %w", p.ChargeID, domain.ErrNotFound)
		}
	}
	for _, p := range payments {
		c := m.charges[p.ChargeID]
		c.Status = domain.StatusPaid
		paidOn := p.PaidOn
		c.PaidOn = &paidOn
		m.charges[p.ChargeID] = c
	}
	return nil
}

func (m *memRepo) RecordRemittance(_ context.Context, l *domain.RemittanceLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.historyErr != nil {
		return m.historyErr
	}
	if _, dup := m.remittances[l.NSA]; dup {
		return errors.New("UNIQUE constraint failed: remittances.nsa")
	}
	l.ID = m.id()
	m.remittances[l.NSA] = *l
	return nil
}

func (m *memRepo) FindRemittance(_ context.Context, nsa int64) (*domain.RemittanceLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.remittances[nsa]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &l, nil
}

func (m *memRepo) ListRemittances(context.Context) ([]domain.RemittanceLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RemittanceLog
	for _, l := range m.remittances {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NSA < out[j].NSA })
	return out, nil
}

func (m *memRepo) LoadSequence(context.Context) (domain.SequenceState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.SequenceState{Last: m.last, Suffix: domain.DefaultNSASuffix}, nil
}

func (m *memRepo) SaveSequence(_ context.Context, last int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if last <= m.last {
		return errors.New("stale sequence")
	}
	m.last = last
	return nil
}

// memSink records delivered files.
type memSink struct {
	files map[string][]byte
	err   error
}

func (s *memSink) Deliver(_ context.Context, name string, payload []byte) error {
	if s.err != nil {
		return s.err
	}
	if s.files == nil {
		s.files = map[string][]byte{}
	}
	s.files[name] = payload
	return nil
}

// memArchive records archived charges per period.
type memArchive struct {
	periods map[string][]domain.Charge
	err     error
}

func (a *memArchive) Archive(_ context.Context, period string, charges []domain.Charge) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	if a.periods == nil {
		a.periods = map[string][]domain.Charge{}
	}
	a.periods[period] = append(a.periods[period], charges...)
	return "mem://remessa_" + period + ".json", nil
}
