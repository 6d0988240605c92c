package cnab

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/csg33k/remessa-generator/internal/adapters/cnab/layout"
	"github.com/csg33k/remessa-generator/internal/domain"
)

// BuildLine renders one record. Fields are written in declared order with no
// delimiters; a field missing from values is blank (text) or zero (numeric),
// except TIPO_REGISTRO which defaults to the record marker. Text values may
// not hold control characters: a line break would split the record.
func BuildLine(rec layout.Record, values map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(rec.Width())
	for _, f := range rec.Fields {
		v, ok := values[f.Name]
		if !ok && f.Name == layout.RecordTypeField {
			v = rec.Marker
		}
		switch f.Kind {
		case layout.Numeric:
			s, err := FormatNumeric(v, f.Width)
			if err != nil {
				var ov *domain.FieldOverflowError
				if errors.As(err, &ov) {
					ov.Record = string(rec.Kind)
					ov.Field = f.Name
				}
				return "", err
			}
			b.WriteString(s)
		default:
			if strings.IndexFunc(v, unicode.IsControl) >= 0 {
				return "", fmt.Errorf("%s.%s %q: %w", rec.Kind, f.Name, v, domain.ErrControlCharacter)
			}
			b.WriteString(FormatText(v, f.Width))
		}
	}
	return b.String(), nil
}

// lineLen counts characters, which equals bytes once transcoded to ISO-8859-1.
func lineLen(s string) int { return utf8.RuneCountInString(s) }

// EncodeLatin1 transcodes UTF-8 text to ISO-8859-1 bytes.
func EncodeLatin1(s string) ([]byte, error) {
	out, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCharset, err)
	}
	return out, nil
}

// DecodeLatin1 transcodes ISO-8859-1 bytes to UTF-8 text. Every byte maps to
// a character so this cannot fail.
func DecodeLatin1(b []byte) string {
	out, _ := charmap.ISO8859_1.NewDecoder().Bytes(b)
	return string(out)
}
