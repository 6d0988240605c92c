// Package layout defines the positional record layouts of the automatic-debit
// remittance (REMESSA) and return (RETORNO) files.
//
// The built-in layout is 150 columns per record. Revisions of the bank manual
// disagree on the header filler widths, so the layout is configuration: a YAML
// file with the same shape as Default() replaces it without code changes, and
// Validate must pass before a layout is used.
package layout

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LineWidth is the record length of the built-in layout.
const LineWidth = 150

// RecordTypeField is the 1-char discriminator every record starts with.
const RecordTypeField = "TIPO_REGISTRO"

type FieldKind int

const (
	Text    FieldKind = iota // left-justified, space-filled
	Numeric                  // right-justified, zero-filled digits only
)

func (k FieldKind) String() string {
	if k == Numeric {
		return "numeric"
	}
	return "text"
}

func (k *FieldKind) UnmarshalYAML(node *yaml.Node) error {
	switch strings.ToLower(strings.TrimSpace(node.Value)) {
	case "text", "alpha", "x":
		*k = Text
	case "numeric", "num", "9":
		*k = Numeric
	default:
		return fmt.Errorf("line %d: unknown field kind %q", node.Line, node.Value)
	}
	return nil
}

type Field struct {
	Name        string    `yaml:"name"`
	Width       int       `yaml:"width"`
	Kind        FieldKind `yaml:"kind"`
	Description string    `yaml:"description,omitempty"`
}

type RecordKind string

const (
	Header  RecordKind = "header"
	Detail  RecordKind = "detail"
	Trailer RecordKind = "trailer"
	Return  RecordKind = "return"
)

// Kinds lists every record kind a layout must define, in file order.
func Kinds() []RecordKind { return []RecordKind{Header, Detail, Trailer, Return} }

type Record struct {
	Kind   RecordKind `yaml:"-"`
	Marker string     `yaml:"marker"`
	Fields []Field    `yaml:"fields"`
}

// Width is the sum of all field widths.
func (r Record) Width() int {
	n := 0
	for _, f := range r.Fields {
		n += f.Width
	}
	return n
}

// Offset returns the 0-based start column of a field and the field itself.
func (r Record) Offset(name string) (int, Field, bool) {
	pos := 0
	for _, f := range r.Fields {
		if f.Name == name {
			return pos, f, true
		}
		pos += f.Width
	}
	return 0, Field{}, false
}

type Layout struct {
	Name      string                `yaml:"name"`
	LineWidth int                   `yaml:"line_width"`
	Records   map[RecordKind]Record `yaml:"records"`
}

// Record returns the record definition for kind. Panics on an unknown kind:
// a validated layout defines all of Kinds().
func (l *Layout) Record(kind RecordKind) Record {
	r, ok := l.Records[kind]
	if !ok {
		panic(fmt.Sprintf("layout %q: record kind %q not defined", l.Name, kind))
	}
	return r
}

// KindForMarker maps the first character of a line to its record kind.
func (l *Layout) KindForMarker(marker string) (RecordKind, bool) {
	for _, k := range Kinds() {
		if r, ok := l.Records[k]; ok && r.Marker == marker {
			return k, true
		}
	}
	return "", false
}

// Validate checks that every record kind is present, starts with a 1-char
// TIPO_REGISTRO field, has unique field names and positive widths, and sums to
// exactly LineWidth. Markers must be distinct single characters.
func (l *Layout) Validate() error {
	if l.LineWidth <= 0 {
		return fmt.Errorf("layout %q: line_width must be positive", l.Name)
	}
	var errs []error
	markers := make(map[string]RecordKind)
	for _, kind := range Kinds() {
		r, ok := l.Records[kind]
		if !ok {
			errs = append(errs, fmt.Errorf("record %q missing", kind))
			continue
		}
		if len(r.Marker) != 1 {
			errs = append(errs, fmt.Errorf("record %q: marker %q must be one character", kind, r.Marker))
		} else if other, dup := markers[r.Marker]; dup {
			errs = append(errs, fmt.Errorf("record %q: marker %q already used by %q", kind, r.Marker, other))
		} else {
			markers[r.Marker] = kind
		}
		if len(r.Fields) == 0 || r.Fields[0].Name != RecordTypeField || r.Fields[0].Width != 1 {
			errs = append(errs, fmt.Errorf("record %q: first field must be %s with width 1", kind, RecordTypeField))
		}
		seen := make(map[string]bool, len(r.Fields))
		for _, f := range r.Fields {
			if f.Width <= 0 {
				errs = append(errs, fmt.Errorf("record %q: field %q has width %d", kind, f.Name, f.Width))
			}
			if seen[f.Name] {
				errs = append(errs, fmt.Errorf("record %q: duplicate field %q", kind, f.Name))
			}
			seen[f.Name] = true
		}
		if w := r.Width(); w != l.LineWidth {
			errs = append(errs, fmt.Errorf("record %q: fields sum to %d, want %d", kind, w, l.LineWidth))
		}
	}
	for k := range l.Records {
		if !knownKind(k) {
			errs = append(errs, fmt.Errorf("unknown record kind %q", k))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("layout %q: %w", l.Name, errors.Join(errs...))
	}
	return nil
}

func knownKind(k RecordKind) bool {
	for _, kk := range Kinds() {
		if k == kk {
			return true
		}
	}
	return false
}

// Parse reads a YAML layout and validates it.
func Parse(data []byte) (*Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	for k, r := range l.Records {
		r.Kind = k
		l.Records[k] = r
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// Load reads a layout file. An empty path returns Default().
func Load(path string) (*Layout, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	return Parse(data)
}

// Default returns the built-in 150-column debit-authorization layout.
//
//	A header   1 TIPO_REGISTRO | 1 COD_REMESSA | 20 CONVENIO | 20 NOME_EMPRESA | 3 COD_BANCO
//	           20 NOME_BANCO | 8 DATA_GERACAO | 8 NSA | 40 VERSAO_LAYOUT | 29 ID_SISTEMA
//	E detail   1 TIPO_REGISTRO | 25 CODIGO_CLIENTE | 20 DADOS_BANCARIOS | 8 DATA_VENCIMENTO
//	           15 VALOR_DEBITO | 1 COD_MOEDA | 79 BRANCOS | 1 COD_OCORRENCIA
//	Z trailer  1 TIPO_REGISTRO | 6 TOTAL_REGISTROS | 15 SOMA_VALORES | 128 BRANCOS
//	F return   1 TIPO_REGISTRO | 25 CODIGO_CLIENTE | 20 DADOS_BANCARIOS | 8 DATA_VENCIMENTO
//	           15 VALOR_DEBITO | 2 COD_RETORNO | 8 DATA_PROCESSAMENTO | 70 BRANCOS | 1 COD_MOVIMENTO
func Default() *Layout {
	return &Layout{
		Name:      "debito-automatico-150",
		LineWidth: LineWidth,
		Records: map[RecordKind]Record{
			// ── A (Header) ───────────────────────────────────────────────────
			Header: {
				Kind:   Header,
				Marker: "A",
				Fields: []Field{
					{Name: RecordTypeField, Width: 1, Kind: Text, Description: "Constant 'A'"},
					{Name: "COD_REMESSA", Width: 1, Kind: Numeric, Description: "1=remessa 2=retorno"},
					{Name: "CONVENIO", Width: 20, Kind: Text, Description: "Agreement code assigned by the bank"},
					{Name: "NOME_EMPRESA", Width: 20, Kind: Text},
					{Name: "COD_BANCO", Width: 3, Kind: Numeric, Description: "COMPE bank code"},
					{Name: "NOME_BANCO", Width: 20, Kind: Text},
					{Name: "DATA_GERACAO", Width: 8, Kind: Numeric, Description: "YYYYMMDD"},
					{Name: "NSA", Width: 8, Kind: Numeric, Description: "6-digit sequence + 2-char suffix"},
					{Name: "VERSAO_LAYOUT", Width: 40, Kind: Text, Description: "Service identification"},
					{Name: "ID_SISTEMA", Width: 29, Kind: Text},
				},
			},

			// ── E (Debit request) ────────────────────────────────────────────
			Detail: {
				Kind:   Detail,
				Marker: "E",
				Fields: []Field{
					{Name: RecordTypeField, Width: 1, Kind: Text, Description: "Constant 'E'"},
					{Name: "CODIGO_CLIENTE", Width: 25, Kind: Text, Description: "Client billing code at the company"},
					{Name: "DADOS_BANCARIOS", Width: 20, Kind: Text, Description: "Agency + account"},
					{Name: "DATA_VENCIMENTO", Width: 8, Kind: Numeric, Description: "YYYYMMDD"},
					{Name: "VALOR_DEBITO", Width: 15, Kind: Numeric, Description: "Cents, no decimal point"},
					{Name: "COD_MOEDA", Width: 1, Kind: Numeric, Description: "3=Real"},
					{Name: "BRANCOS", Width: 79, Kind: Text},
					{Name: "COD_OCORRENCIA", Width: 1, Kind: Numeric, Description: "0=debit 1=cancel"},
				},
			},

			// ── Z (Trailer) ──────────────────────────────────────────────────
			Trailer: {
				Kind:   Trailer,
				Marker: "Z",
				Fields: []Field{
					{Name: RecordTypeField, Width: 1, Kind: Text, Description: "Constant 'Z'"},
					{Name: "TOTAL_REGISTROS", Width: 6, Kind: Numeric, Description: "All records incl. header and trailer"},
					{Name: "SOMA_VALORES", Width: 15, Kind: Numeric, Description: "Sum of detail amounts in cents"},
					{Name: "BRANCOS", Width: 128, Kind: Text},
				},
			},

			// ── F (Debit result) ─────────────────────────────────────────────
			Return: {
				Kind:   Return,
				Marker: "F",
				Fields: []Field{
					{Name: RecordTypeField, Width: 1, Kind: Text, Description: "Constant 'F'"},
					{Name: "CODIGO_CLIENTE", Width: 25, Kind: Text},
					{Name: "DADOS_BANCARIOS", Width: 20, Kind: Text},
					{Name: "DATA_VENCIMENTO", Width: 8, Kind: Numeric},
					{Name: "VALOR_DEBITO", Width: 15, Kind: Numeric},
					{Name: "COD_RETORNO", Width: 2, Kind: Numeric, Description: "00=debited, see outcome table"},
					{Name: "DATA_PROCESSAMENTO", Width: 8, Kind: Numeric, Description: "YYYYMMDD"},
					{Name: "BRANCOS", Width: 70, Kind: Text},
					{Name: "COD_MOVIMENTO", Width: 1, Kind: Numeric},
				},
			},
		},
	}
}
