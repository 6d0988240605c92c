package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/mattn/go-sqlite3"

	"github.com/csg33k/remessa-generator/internal/domain"
)

type Repository struct {
	db  *sql.DB
	log *log.Logger
	now func() time.Time
}

// New opens the SQLite database. Call Migrate (or run `dbmate up` with
// DBMATE_MIGRATIONS_DIR pointing at ./internal/adapters/sqlite/migrations)
// before use.
func New(dsn string, logger *log.Logger) (*Repository, error) {
	db, err := sql.Open("sqlite3", dsn+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// One writer; the NSA compare-and-set relies on serialized writes.
	db.SetMaxOpenConns(1)
	if logger == nil {
		logger = log.Default()
	}
	return &Repository{db: db, log: logger.WithPrefix("sqlite"), now: time.Now}, nil
}

func (r *Repository) Close() error { return r.db.Close() }

// ── Clients ───────────────────────────────────────────────────────────────────

func (r *Repository) CreateClient(ctx context.Context, c *domain.Client) error {
	c.CreatedAt = r.now()
	c.UpdatedAt = c.CreatedAt
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO clients (
			name, tax_document, bank_code, account_code, billing_code, active,
			created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?)`,
		c.Name, c.TaxDocument, c.BankCode, c.AccountCode, c.BillingCode,
		boolToInt(c.Active), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	c.ID = id
	return nil
}

const clientColumns = `id, name, tax_document, bank_code, account_code, billing_code, active,
	created_at, updated_at`

func scanClient(s interface{ Scan(...any) error }) (domain.Client, error) {
	var c domain.Client
	var active int
	err := s.Scan(&c.ID, &c.Name, &c.TaxDocument, &c.BankCode, &c.AccountCode, &c.BillingCode,
		&active, &c.CreatedAt, &c.UpdatedAt)
	c.Active = active == 1
	return c, err
}

func (r *Repository) GetClient(ctx context.Context, id int64) (*domain.Client, error) {
	c, err := scanClient(r.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("client %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repository) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateClient(ctx context.Context, c *domain.Client) error {
	c.UpdatedAt = r.now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE clients SET
			name=?, tax_document=?, bank_code=?, account_code=?, billing_code=?, active=?,
			updated_at=?
		WHERE id=?`,
		c.Name, c.TaxDocument, c.BankCode, c.AccountCode, c.BillingCode, boolToInt(c.Active),
		c.UpdatedAt, c.ID,
	)
	if err != nil {
		return err
	}
	return expectOne(res, "client", c.ID)
}

func (r *Repository) DeleteClient(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM clients WHERE id=?`, id)
	if err != nil {
		return err
	}
	return expectOne(res, "client", id)
}

// ── Charges ───────────────────────────────────────────────────────────────────

func (r *Repository) CreateCharge(ctx context.Context, c *domain.Charge) error {
	c.CreatedAt = r.now()
	c.UpdatedAt = c.CreatedAt
	if c.Status == "" {
		c.Status = domain.StatusPending
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO charges (
			client_id, description, amount_cents, due_date, status, remittance_nsa, paid_on,
			created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?)`,
		c.ClientID, c.Description, int64(c.Amount), c.DueDate, string(c.Status),
		c.RemittanceNSA, nullTime(c.PaidOn), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	c.ID = id
	return nil
}

const chargeColumns = `id, client_id, description, amount_cents, due_date, status, remittance_nsa,
	paid_on, created_at, updated_at`

func scanCharge(s interface{ Scan(...any) error }) (domain.Charge, error) {
	var (
		c      domain.Charge
		amount int64
		status string
		paidOn sql.NullTime
	)
	err := s.Scan(&c.ID, &c.ClientID, &c.Description, &amount, &c.DueDate, &status,
		&c.RemittanceNSA, &paidOn, &c.CreatedAt, &c.UpdatedAt)
	c.Amount = domain.Cents(amount)
	c.Status = domain.ChargeStatus(status)
	if paidOn.Valid {
		c.PaidOn = &paidOn.Time
	}
	return c, err
}

func (r *Repository) GetCharge(ctx context.Context, id int64) (*domain.Charge, error) {
	c, err := scanCharge(r.db.QueryRowContext(ctx,
		`SELECT `+chargeColumns+` FROM charges WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("charge %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repository) queryCharges(ctx context.Context, where string, args ...any) ([]domain.Charge, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+chargeColumns+` FROM charges `+where+` ORDER BY due_date, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Charge
	for rows.Next() {
		c, err := scanCharge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) ListCharges(ctx context.Context) ([]domain.Charge, error) {
	return r.queryCharges(ctx, "")
}

func (r *Repository) ListPendingCharges(ctx context.Context) ([]domain.Charge, error) {
	return r.queryCharges(ctx, `WHERE remittance_nsa=0 AND status=?`, string(domain.StatusPending))
}

func (r *Repository) UpdateCharge(ctx context.Context, c *domain.Charge) error {
	c.UpdatedAt = r.now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE charges SET
			client_id=?, description=?, amount_cents=?, due_date=?, status=?, paid_on=?,
			updated_at=?
		WHERE id=?`,
		c.ClientID, c.Description, int64(c.Amount), c.DueDate, string(c.Status),
		nullTime(c.PaidOn), c.UpdatedAt, c.ID,
	)
	if err != nil {
		return err
	}
	return expectOne(res, "charge", c.ID)
}

func (r *Repository) DeleteCharge(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM charges WHERE id=?`, id)
	if err != nil {
		return err
	}
	return expectOne(res, "charge", id)
}

// DeleteCharges removes all ids in one transaction. Unknown ids are ignored.
func (r *Repository) DeleteCharges(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM charges WHERE id IN (`+placeholders(len(ids))+`)`, int64Args(ids)...)
	return err
}

// AssignCharges sets remittance_nsa on every id. The whole call fails, and
// nothing is assigned, if any charge is missing or already carries an NSA.
func (r *Repository) AssignCharges(ctx context.Context, ids []int64, nsa int64) error {
	if nsa <= 0 {
		return fmt.Errorf("assign charges: invalid NSA %d", nsa)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := r.now()
	for _, id := range ids {
		res, err := tx.ExecContext(ctx,
			`UPDATE charges SET remittance_nsa=?, updated_at=? WHERE id=? AND remittance_nsa=0`,
			nsa, now, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			var current int64
			err := tx.QueryRowContext(ctx, `SELECT remittance_nsa FROM charges WHERE id=?`, id).Scan(&current)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("charge %d: %w", id, domain.ErrNotFound)
			}
			if err != nil {
				return err
			}
			return fmt.Errorf("charge %d (NSA %d): %w", id, current, domain.ErrAlreadyAssigned)
		}
	}
	return tx.Commit()
}

// MarkPaid settles every payment in one transaction; a missing charge rolls
// all of them back.
func (r *Repository) MarkPaid(ctx context.Context, payments []domain.Payment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := r.now()
	for _, p := range payments {
		res, err := tx.ExecContext(ctx,
			`UPDATE charges SET status=?, paid_on=?, updated_at=? WHERE id=?`,
			string(domain.StatusPaid), p.PaidOn, now, p.ChargeID)
		if err != nil {
			return err
		}
		if err := expectOne(res, "charge", p.ChargeID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ── NSA sequence ──────────────────────────────────────────────────────────────

func (r *Repository) LoadSequence(ctx context.Context) (domain.SequenceState, error) {
	var st domain.SequenceState
	err := r.db.QueryRowContext(ctx,
		`SELECT last_nsa, suffix FROM nsa_sequence WHERE id=1`).Scan(&st.Last, &st.Suffix)
	if errors.Is(err, sql.ErrNoRows) {
		return st, fmt.Errorf("nsa_sequence row missing: run migrations")
	}
	return st, err
}

// SaveSequence is a compare-and-set: it only moves the counter forward.
func (r *Repository) SaveSequence(ctx context.Context, last int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE nsa_sequence SET last_nsa=? WHERE id=1 AND last_nsa < ?`, last, last)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return fmt.Errorf("save NSA %d: stored value is already at or past it", last)
	}
	return nil
}

// SetSequenceSuffix changes the 2-char segment appended to the NSA.
func (r *Repository) SetSequenceSuffix(ctx context.Context, suffix string) error {
	if len(suffix) != 2 || !isDigits(suffix) {
		return fmt.Errorf("%w: suffix %q must be 2 digits", domain.ErrInvalidNSA, suffix)
	}
	_, err := r.db.ExecContext(ctx, `UPDATE nsa_sequence SET suffix=? WHERE id=1`, suffix)
	return err
}

// ── Remittance history ────────────────────────────────────────────────────────

func (r *Repository) RecordRemittance(ctx context.Context, l *domain.RemittanceLog) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = r.now()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO remittances (nsa, file_name, detail_count, total_cents, created_at)
		VALUES (?,?,?,?,?)`,
		l.NSA, l.FileName, l.DetailCount, int64(l.Total), l.CreatedAt,
	)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	l.ID = id
	return nil
}

func (r *Repository) FindRemittance(ctx context.Context, nsa int64) (*domain.RemittanceLog, error) {
	var (
		l     domain.RemittanceLog
		total int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, nsa, file_name, detail_count, total_cents, created_at
		FROM remittances WHERE nsa=?`, nsa).Scan(
		&l.ID, &l.NSA, &l.FileName, &l.DetailCount, &total, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("remittance NSA %d: %w", nsa, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	l.Total = domain.Cents(total)
	return &l, nil
}

func (r *Repository) ListRemittances(ctx context.Context) ([]domain.RemittanceLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, nsa, file_name, detail_count, total_cents, created_at
		FROM remittances ORDER BY nsa`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.RemittanceLog
	for rows.Next() {
		var (
			l     domain.RemittanceLog
			total int64
		)
		if err := rows.Scan(&l.ID, &l.NSA, &l.FileName, &l.DetailCount, &total, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.Total = domain.Cents(total)
		out = append(out, l)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func expectOne(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, domain.ErrNotFound)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
