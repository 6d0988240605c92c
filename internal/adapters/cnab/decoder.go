package cnab

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/csg33k/remessa-generator/internal/adapters/cnab/layout"
	"github.com/csg33k/remessa-generator/internal/domain"
)

type Decoder struct {
	layout *layout.Layout
}

// NewDecoder returns a decoder for l. A nil layout selects layout.Default().
func NewDecoder(l *layout.Layout) (*Decoder, error) {
	if l == nil {
		l = layout.Default()
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &Decoder{layout: l}, nil
}

func MustNewDecoder(l *layout.Layout) *Decoder {
	d, err := NewDecoder(l)
	if err != nil {
		panic(err)
	}
	return d
}

// Decode parses an ISO-8859-1 return file. Both bank result records (F) and
// echoed debit requests (E) are returned as ReturnRecords; the latter carry no
// outcome code. The whole file is rejected on the first bad line.
func (d *Decoder) Decode(r io.Reader) (*domain.ReturnFile, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read return file: %w", err)
	}
	lines := splitLines(DecodeLatin1(raw))
	if len(lines) == 0 {
		return nil, &domain.RecordError{Line: 0, Reason: "file is empty", Err: domain.ErrMalformedRecord}
	}

	out := &domain.ReturnFile{}
	var (
		sawHeader, sawTrailer bool
		sum                   domain.Cents
	)
	for i, line := range lines {
		n := i + 1
		if line == "" {
			return nil, malformed(n, "blank line")
		}
		marker := string([]rune(line)[:1])
		kind, ok := d.layout.KindForMarker(marker)
		if !ok {
			return nil, &domain.RecordError{Line: n, Reason: fmt.Sprintf("marker %q", marker), Err: domain.ErrUnknownRecordType}
		}
		if w := lineLen(line); w != d.layout.LineWidth {
			return nil, malformed(n, fmt.Sprintf("%s record is %d chars, want %d", kind, w, d.layout.LineWidth))
		}
		if sawTrailer {
			return nil, malformed(n, "record after trailer")
		}
		fields := split(d.layout.Record(kind), line)

		switch kind {
		case layout.Header:
			if i != 0 {
				return nil, malformed(n, "header is not the first record")
			}
			sawHeader = true
			if err := d.readHeader(n, fields, out); err != nil {
				return nil, err
			}
		case layout.Detail, layout.Return:
			if !sawHeader {
				return nil, malformed(n, "detail before header")
			}
			rec, err := d.readDetail(n, marker, fields)
			if err != nil {
				return nil, err
			}
			sum += rec.Amount
			out.Records = append(out.Records, rec)
		case layout.Trailer:
			if !sawHeader {
				return nil, malformed(n, "trailer before header")
			}
			sawTrailer = true
			if err := d.readTrailer(n, fields, out); err != nil {
				return nil, err
			}
		}
	}
	if !sawTrailer {
		return nil, malformed(len(lines), "missing trailer")
	}
	if want := len(out.Records) + 2; out.TotalRecords != want {
		return nil, fmt.Errorf("%w: trailer says %d records, file has %d", domain.ErrTotalsMismatch, out.TotalRecords, want)
	}
	if out.TotalAmount != sum {
		return nil, fmt.Errorf("%w: trailer sum %s, details sum %s", domain.ErrTotalsMismatch, out.TotalAmount, sum)
	}
	return out, nil
}

func (d *Decoder) readHeader(n int, f map[string]string, out *domain.ReturnFile) error {
	on, err := parseDate(f["DATA_GERACAO"])
	if err != nil {
		return malformed(n, "DATA_GERACAO: "+err.Error())
	}
	out.ServiceCode = f["COD_REMESSA"]
	out.Convenio = strings.TrimRight(f["CONVENIO"], " ")
	out.CompanyName = strings.TrimRight(f["NOME_EMPRESA"], " ")
	out.BankCode = f["COD_BANCO"]
	out.BankName = strings.TrimRight(f["NOME_BANCO"], " ")
	out.GeneratedOn = on
	out.NSA = f["NSA"]
	return nil
}

func (d *Decoder) readDetail(n int, marker string, f map[string]string) (domain.ReturnRecord, error) {
	due, err := parseDate(f["DATA_VENCIMENTO"])
	if err != nil {
		return domain.ReturnRecord{}, malformed(n, "DATA_VENCIMENTO: "+err.Error())
	}
	amount, err := parseCents(f["VALOR_DEBITO"])
	if err != nil {
		return domain.ReturnRecord{}, malformed(n, "VALOR_DEBITO: "+err.Error())
	}
	rec := domain.ReturnRecord{
		Line:        n,
		Marker:      marker,
		ClientCode:  strings.TrimRight(f["CODIGO_CLIENTE"], " "),
		AccountCode: strings.TrimRight(f["DADOS_BANCARIOS"], " "),
		DueDate:     due,
		Amount:      amount,
	}
	if code, ok := f["COD_RETORNO"]; ok {
		if !isDigits(code) {
			return domain.ReturnRecord{}, malformed(n, fmt.Sprintf("COD_RETORNO %q is not numeric", code))
		}
		rec.OutcomeCode = code
	}
	if v, ok := f["DATA_PROCESSAMENTO"]; ok {
		on, err := parseDate(v)
		if err != nil {
			return domain.ReturnRecord{}, malformed(n, "DATA_PROCESSAMENTO: "+err.Error())
		}
		rec.ProcessedOn = on
	}
	return rec, nil
}

func (d *Decoder) readTrailer(n int, f map[string]string, out *domain.ReturnFile) error {
	v := f["TOTAL_REGISTROS"]
	if !isDigits(v) {
		return malformed(n, fmt.Sprintf("TOTAL_REGISTROS %q is not numeric", v))
	}
	count, _ := strconv.Atoi(v)
	total, err := parseCents(f["SOMA_VALORES"])
	if err != nil {
		return malformed(n, "SOMA_VALORES: "+err.Error())
	}
	out.TotalRecords = count
	out.TotalAmount = total
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// split cuts a line into its fields by position.
func split(rec layout.Record, line string) map[string]string {
	runes := []rune(line)
	out := make(map[string]string, len(rec.Fields))
	pos := 0
	for _, f := range rec.Fields {
		out[f.Name] = string(runes[pos : pos+f.Width])
		pos += f.Width
	}
	return out
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\r\n")
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// parseDate reads YYYYMMDD. All zeros or all blanks means "no date".
func parseDate(s string) (time.Time, error) {
	if strings.Trim(s, "0 ") == "" {
		return time.Time{}, nil
	}
	if !isDigits(s) {
		return time.Time{}, fmt.Errorf("%q is not numeric", s)
	}
	return time.Parse(dateLayout, s)
}

func parseCents(s string) (domain.Cents, error) {
	if !isDigits(s) {
		return 0, fmt.Errorf("%q is not numeric", s)
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return domain.Cents(v), nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func malformed(line int, reason string) error {
	return &domain.RecordError{Line: line, Reason: reason, Err: domain.ErrMalformedRecord}
}
