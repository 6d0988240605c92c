// Package cnab encodes automatic-debit remittance files and decodes the
// bank's return files. Both directions are pure: no I/O, no clock, no logging.
package cnab

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/csg33k/remessa-generator/internal/adapters/cnab/layout"
	"github.com/csg33k/remessa-generator/internal/domain"
)

const (
	serviceRemittance = "1"

	currencyReal     = "3"
	occurrenceDebit  = "0"
	defaultVersionID = "DEBITO AUTOMATICO"

	dateLayout = "20060102"
)

type Encoder struct {
	layout *layout.Layout
}

// NewEncoder returns an encoder for l. A nil layout selects layout.Default().
func NewEncoder(l *layout.Layout) (*Encoder, error) {
	if l == nil {
		l = layout.Default()
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &Encoder{layout: l}, nil
}

// MustNewEncoder is NewEncoder for layouts known to be valid.
func MustNewEncoder(l *layout.Layout) *Encoder {
	e, err := NewEncoder(l)
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Encoder) Layout() *layout.Layout { return e.layout }

// Encode renders header, one detail per included charge, and trailer, joined
// by "\n". Nothing is returned on error: a batch is encoded whole or not at all.
func (e *Encoder) Encode(b domain.Batch) (*domain.Remittance, error) {
	if len(b.Items) == 0 {
		return nil, domain.ErrEmptyBatch
	}
	if b.Sequence.Number <= 0 {
		return nil, fmt.Errorf("%w: sequence number %d", domain.ErrInvalidNSA, b.Sequence.Number)
	}
	if id := b.Sequence.FileID(); len(b.Sequence.Suffix) != 2 || !isDigits(id) {
		return nil, fmt.Errorf("%w: file id %q must be digits with a 2-digit suffix", domain.ErrInvalidNSA, id)
	}

	header, err := e.buildHeader(b)
	if err != nil {
		return nil, err
	}

	rem := &domain.Remittance{
		Sequence: b.Sequence,
		FileName: b.Sequence.FileName(),
	}
	lines := []string{header}

	var total domain.Cents
	for i := range b.Items {
		it := &b.Items[i]
		ch := &it.Charge
		if ch.Assigned() {
			return nil, fmt.Errorf("charge %d (NSA %d): %w", ch.ID, ch.RemittanceNSA, domain.ErrAlreadyAssigned)
		}
		if it.Client == nil {
			if b.Unresolved == domain.FailUnresolved {
				return nil, fmt.Errorf("charge %d (client %d): %w", ch.ID, ch.ClientID, domain.ErrClientNotFound)
			}
			rem.Skipped = append(rem.Skipped, ch.ID)
			continue
		}
		if strings.TrimSpace(it.Client.BillingCode) == "" {
			return nil, fmt.Errorf("charge %d (client %d): %w", ch.ID, it.Client.ID, domain.ErrMissingBillingCode)
		}
		if ch.Amount <= 0 {
			return nil, fmt.Errorf("charge %d: %w: %s", ch.ID, domain.ErrInvalidAmount, ch.Amount)
		}
		line, err := e.buildDetail(ch, it.Client)
		if err != nil {
			return nil, fmt.Errorf("charge %d: %w", ch.ID, err)
		}
		lines = append(lines, line)
		total += ch.Amount
		rem.Included = append(rem.Included, ch.ID)
	}

	details := len(lines) - 1
	if details == 0 {
		return nil, fmt.Errorf("%w: all %d charges were skipped", domain.ErrEmptyBatch, len(b.Items))
	}

	trailer, err := e.buildTrailer(details+2, total)
	if err != nil {
		return nil, err
	}
	lines = append(lines, trailer)

	for _, l := range lines {
		if n := lineLen(l); n != e.layout.LineWidth {
			return nil, fmt.Errorf("record %q is %d chars (want %d)", l[:1], n, e.layout.LineWidth)
		}
	}

	payload, err := EncodeLatin1(strings.Join(lines, "\n"))
	if err != nil {
		return nil, err
	}

	rem.Lines = lines
	rem.Payload = payload
	rem.DetailCount = details
	rem.RecordCount = details + 2
	rem.Total = total
	return rem, nil
}

// ---------------------------------------------------------------------------
// Record builders
// ---------------------------------------------------------------------------

func (e *Encoder) buildHeader(b domain.Batch) (string, error) {
	version := b.Company.LayoutVersion
	if version == "" {
		version = defaultVersionID
	}
	return BuildLine(e.layout.Record(layout.Header), map[string]string{
		"COD_REMESSA":   serviceRemittance,
		"CONVENIO":      b.Company.Convenio,
		"NOME_EMPRESA":  b.Company.Name,
		"COD_BANCO":     b.Company.BankCode,
		"NOME_BANCO":    b.Company.BankName,
		"DATA_GERACAO":  b.GeneratedOn.Format(dateLayout),
		"NSA":           b.Sequence.FileID(),
		"VERSAO_LAYOUT": version,
		"ID_SISTEMA":    b.Company.SystemID,
	})
}

func (e *Encoder) buildDetail(ch *domain.Charge, cl *domain.Client) (string, error) {
	return BuildLine(e.layout.Record(layout.Detail), map[string]string{
		"CODIGO_CLIENTE":  cl.BillingCode,
		"DADOS_BANCARIOS": cl.AccountCode,
		"DATA_VENCIMENTO": ch.DueDate.Format(dateLayout),
		"VALOR_DEBITO":    ch.Amount.Digits(),
		"COD_MOEDA":       currencyReal,
		"COD_OCORRENCIA":  occurrenceDebit,
	})
}

func (e *Encoder) buildTrailer(records int, total domain.Cents) (string, error) {
	return BuildLine(e.layout.Record(layout.Trailer), map[string]string{
		"TOTAL_REGISTROS": strconv.Itoa(records),
		"SOMA_VALORES":    total.Digits(),
	})
}
