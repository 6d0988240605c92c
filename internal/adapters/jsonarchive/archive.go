// Package jsonarchive keeps archived charges in one JSON file per period,
// remessa_<period>.json, appending to the file when it already exists.
package jsonarchive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/csg33k/remessa-generator/internal/domain"
)

type Record struct {
	ID            int64     `json:"id"`
	ClientID      int64     `json:"client_id"`
	Description   string    `json:"description,omitempty"`
	Amount        string    `json:"amount"`
	AmountCents   int64     `json:"amount_cents"`
	DueDate       string    `json:"due_date"`
	Status        string    `json:"status"`
	RemittanceNSA int64     `json:"remittance_nsa"`
	PaidOn        *string   `json:"paid_on,omitempty"`
	ArchivedAt    time.Time `json:"archived_at"`
}

type File struct {
	Period  string   `json:"period"`
	Charges []Record `json:"charges"`
}

type Store struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

func (s *Store) Path(period string) string {
	return filepath.Join(s.dir, "remessa_"+period+".json")
}

// Archive appends charges to the period file and returns its path.
func (s *Store) Archive(ctx context.Context, period string, charges []domain.Charge) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(period)
	f, err := s.Load(period)
	if err != nil {
		return "", err
	}
	at := s.now().UTC().Truncate(time.Second)
	for _, ch := range charges {
		f.Charges = append(f.Charges, toRecord(ch, at))
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return "", err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return path, nil
}

// Load reads the archive of period. A missing file is an empty archive.
func (s *Store) Load(period string) (*File, error) {
	data, err := os.ReadFile(s.Path(period))
	if errors.Is(err, os.ErrNotExist) {
		return &File{Period: period, Charges: []Record{}}, nil
	}
	if err != nil {
		return nil, err
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.Path(period), err)
	}
	if f.Period == "" {
		f.Period = period
	}
	return &f, nil
}

func toRecord(ch domain.Charge, at time.Time) Record {
	r := Record{
		ID:            ch.ID,
		ClientID:      ch.ClientID,
		Description:   ch.Description,
		Amount:        ch.Amount.String(),
		AmountCents:   int64(ch.Amount),
		DueDate:       ch.DueDate.Format(time.DateOnly),
		Status:        string(ch.Status),
		RemittanceNSA: ch.RemittanceNSA,
		ArchivedAt:    at,
	}
	if ch.PaidOn != nil {
		p := ch.PaidOn.Format(time.DateOnly)
		r.PaidOn = &p
	}
	return r
}
