package domain

import (
	"fmt"
	"time"
)

// DefaultNSASuffix is the fixed segment appended to the sequence number in the
// header NSA field. It is the layout version code expected by the bank.
const DefaultNSASuffix = "04"

// NSAWidth is the number of digits reserved for the sequence number inside the
// 8-char NSA field (6 digits + 2-char suffix).
const NSAWidth = 6

type ChargeStatus string

const (
	StatusPending ChargeStatus = "Pendente"
	StatusPaid    ChargeStatus = "Pago"
)

// Company holds the static identification written into every header record.
type Company struct {
	// Convenio is the 20-char agreement code issued by the bank for automatic debit.
	Convenio string `mapstructure:"convenio" validate:"required,max=20"`
	Name     string `mapstructure:"name" validate:"required"`
	// BankCode is the 3-digit COMPE code, e.g. "033" for Santander.
	BankCode string `mapstructure:"bank_code" validate:"required,len=3,numeric"`
	BankName string `mapstructure:"bank_name" validate:"required"`
	// SystemID identifies the submitting software to the bank.
	SystemID      string `mapstructure:"system_id"`
	LayoutVersion string `mapstructure:"layout_version"`
}

type Client struct {
	ID          int64
	Name        string `validate:"required"`
	TaxDocument string
	BankCode    string `validate:"omitempty,numeric,max=3"`
	// AccountCode is the agency/account string written to DADOS_BANCARIOS.
	AccountCode string
	Active      bool
	// BillingCode is the client identifier at the company (CODIGO_CLIENTE).
	// Only required for clients that appear in a remittance.
	BillingCode string `validate:"omitempty,max=25"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Charge struct {
	ID          int64
	ClientID    int64 `validate:"required"`
	Description string
	Amount      Cents     `validate:"gt=0"`
	DueDate     time.Time `validate:"required"`
	Status      ChargeStatus
	// RemittanceNSA is 0 while the charge is unassigned; otherwise the NSA of
	// the remittance file that carried it.
	RemittanceNSA int64
	PaidOn        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (c *Charge) Assigned() bool { return c.RemittanceNSA != 0 }

// Payment settles one remitted charge.
type Payment struct {
	ChargeID int64
	PaidOn   time.Time
}

// SequenceState is the persisted NSA counter.
type SequenceState struct {
	Last   int64
	Suffix string
}

// FileSequence is an issued (not necessarily committed) NSA.
type FileSequence struct {
	Number int64
	Suffix string
}

// FileID returns the 8-char header NSA value, e.g. 7701 → "00770104".
func (s FileSequence) FileID() string {
	return fmt.Sprintf("%0*d%s", NSAWidth, s.Number, s.Suffix)
}

// FileName returns the remittance download name, e.g. "REMESSA_NSA_7701.txt".
func (s FileSequence) FileName() string {
	return fmt.Sprintf("REMESSA_NSA_%d.txt", s.Number)
}

// Remittance is the encoded file plus the metadata needed to commit it.
type Remittance struct {
	Sequence    FileSequence
	FileName    string
	Lines       []string
	Payload     []byte // ISO-8859-1
	DetailCount int
	RecordCount int
	Total       Cents
	Included    []int64
	Skipped     []int64
}

// RemittanceLog is one row of the processed-remittance history.
type RemittanceLog struct {
	ID          int64
	NSA         int64
	FileName    string
	DetailCount int
	Total       Cents
	CreatedAt   time.Time
}

// ReturnRecord is one decoded detail line of a bank return file.
type ReturnRecord struct {
	Line        int
	Marker      string
	ClientCode  string
	AccountCode string
	DueDate     time.Time
	Amount      Cents
	OutcomeCode string
	ProcessedOn time.Time
}

// Paid reports whether the bank settled the debit.
func (r ReturnRecord) Paid() bool {
	return r.OutcomeCode == OutcomeDebited || r.OutcomeCode == OutcomeDebitedOtherDate
}

// ReturnFile is the decoded content of a return (or echoed remittance) file.
type ReturnFile struct {
	ServiceCode  string // "1" remittance, "2" return
	Convenio     string
	CompanyName  string
	BankCode     string
	BankName     string
	GeneratedOn  time.Time
	NSA          string
	Records      []ReturnRecord
	TotalRecords int
	TotalAmount  Cents
}

// ByOutcome groups detail records by outcome code for the reconciliation step.
func (f *ReturnFile) ByOutcome() map[string][]ReturnRecord {
	out := make(map[string][]ReturnRecord)
	for _, r := range f.Records {
		out[r.OutcomeCode] = append(out[r.OutcomeCode], r)
	}
	return out
}

// UnresolvedPolicy decides what happens to a charge whose client is missing.
type UnresolvedPolicy int

const (
	// SkipUnresolved drops the charge from the file and reports it in
	// Remittance.Skipped.
	SkipUnresolved UnresolvedPolicy = iota
	// FailUnresolved aborts the whole batch with ErrClientNotFound.
	FailUnresolved
)

// BatchItem pairs a charge with its resolved client. Client is nil when the
// charge's client could not be found.
type BatchItem struct {
	Charge Charge
	Client *Client
}

// Batch is the full input of one remittance encoding.
type Batch struct {
	Items       []BatchItem
	Company     Company
	GeneratedOn time.Time
	Sequence    FileSequence
	Unresolved  UnresolvedPolicy
}
