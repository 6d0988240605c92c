package service

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csg33k/remessa-generator/internal/adapters/cnab"
	"github.com/csg33k/remessa-generator/internal/adapters/cnab/layout"
	"github.com/csg33k/remessa-generator/internal/domain"
)

type returnEntry struct {
	billing string
	due     time.Time
	amount  domain.Cents
	outcome string
}

// buildReturn renders a bank return file with one F record per entry.
func buildReturn(t *testing.T, entries ...returnEntry) []byte {
	t.Helper()
	l := layout.Default()
	header, err := cnab.BuildLine(l.Record(layout.Header), map[string]string{
		"COD_REMESSA":  "2",
		"CONVENIO":     company().Convenio,
		"NOME_EMPRESA": company().Name,
		"COD_BANCO":    company().BankCode,
		"NOME_BANCO":   company().BankName,
		"DATA_GERACAO": "20240322",
		"NSA":          "00770104",
	})
	require.NoError(t, err)

	lines := []string{header}
	var total domain.Cents
	for _, e := range entries {
		line, err := cnab.BuildLine(l.Record(layout.Return), map[string]string{
			"CODIGO_CLIENTE":     e.billing,
			"DATA_VENCIMENTO":    e.due.Format("20060102"),
			"VALOR_DEBITO":       e.amount.Digits(),
			"COD_RETORNO":        e.outcome,
			"DATA_PROCESSAMENTO": "20240321",
		})
		require.NoError(t, err)
		lines = append(lines, line)
		total += e.amount
	}
	trailer, err := cnab.BuildLine(l.Record(layout.Trailer), map[string]string{
		"TOTAL_REGISTROS": strconv.Itoa(len(entries) + 2),
		"SOMA_VALORES":    total.Digits(),
	})
	require.NoError(t, err)
	lines = append(lines, trailer)

	payload, err := cnab.EncodeLatin1(strings.Join(lines, "\r\n"))
	require.NoError(t, err)
	return payload
}

func remitted(t *testing.T) (*fixture, domain.Charge, domain.Charge) {
	t.Helper()
	f := newFixture(t)
	a := f.charge(t, f.ana.ID, 15050, day(2024, time.March, 15))
	b := f.charge(t, f.bruno.ID, 7500, day(2024, time.March, 20))
	_, err := f.svc.Generate(context.Background())
	require.NoError(t, err)
	return f, a, b
}

func TestReconcile_Apply(t *testing.T) {
	ctx := context.Background()
	f, a, b := remitted(t)
	svc := NewReturns(f.repo, cnab.MustNewDecoder(nil), quietLogger())

	payload := buildReturn(t,
		returnEntry{"000123", day(2024, time.March, 15), 15050, domain.OutcomeDebited},
		returnEntry{"000456", day(2024, time.March, 20), 7500, "01"},
		returnEntry{"000789", day(2024, time.March, 20), 1000, domain.OutcomeDebited},
	)
	report, err := svc.Reconcile(ctx, bytes.NewReader(payload), true)
	require.NoError(t, err)

	assert.True(t, report.Applied)
	assert.Equal(t, "00770104", report.File.NSA)
	require.Len(t, report.Paid, 1)
	assert.Equal(t, a.ID, report.Paid[0].ChargeID)
	assert.Equal(t, domain.Cents(15050), report.PaidTotal())

	require.Len(t, report.Rejected, 1)
	assert.Equal(t, b.ID, report.Rejected[0].ChargeID)
	assert.Equal(t, "Insuficiência de fundos", report.Rejected[0].Description)

	require.Len(t, report.Unmatched, 1)
	assert.Equal(t, "000789", report.Unmatched[0].ClientCode)

	ch, err := f.repo.GetCharge(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, ch.Status)
	require.NotNil(t, ch.PaidOn)
	assert.True(t, ch.PaidOn.Equal(day(2024, time.March, 21)))

	ch, err = f.repo.GetCharge(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, ch.Status)

	// Processing the same file again reports the debit as already paid.
	report, err = svc.Reconcile(ctx, bytes.NewReader(payload), true)
	require.NoError(t, err)
	assert.Empty(t, report.Paid)
	assert.Len(t, report.AlreadyPaid, 1)
}

func TestReconcile_ApplyIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	f, a, b := remitted(t)
	svc := NewReturns(f.repo, cnab.MustNewDecoder(nil), quietLogger())
	f.repo.markErr = errors.New("database is locked")

	payload := buildReturn(t,
		returnEntry{"000123", day(2024, time.March, 15), 15050, domain.OutcomeDebited},
		returnEntry{"000456", day(2024, time.March, 20), 7500, domain.OutcomeDebited},
	)
	report, err := svc.Reconcile(ctx, bytes.NewReader(payload), true)
	require.Error(t, err)
	assert.ErrorContains(t, err, "none applied")
	require.NotNil(t, report)
	assert.False(t, report.Applied)
	assert.Len(t, report.Paid, 2)

	for _, id := range []int64{a.ID, b.ID} {
		ch, err := f.repo.GetCharge(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, ch.Status)
	}

	// Once the store recovers the same file applies cleanly.
	f.repo.markErr = nil
	report, err = svc.Reconcile(ctx, bytes.NewReader(payload), true)
	require.NoError(t, err)
	assert.Len(t, report.Paid, 2)
}

func TestReconcile_DryRun(t *testing.T) {
	ctx := context.Background()
	f, a, _ := remitted(t)
	svc := NewReturns(f.repo, cnab.MustNewDecoder(nil), quietLogger())

	payload := buildReturn(t, returnEntry{"000123", day(2024, time.March, 15), 15050, domain.OutcomeDebitedOtherDate})
	report, err := svc.Reconcile(ctx, bytes.NewReader(payload), false)
	require.NoError(t, err)
	assert.False(t, report.Applied)
	assert.Len(t, report.Paid, 1)

	ch, err := f.repo.GetCharge(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, ch.Status, "dry run writes nothing")
}

func TestReconcile_OnlyRemittedCharges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.charge(t, f.ana.ID, 15050, day(2024, time.March, 15)) // never remitted
	svc := NewReturns(f.repo, cnab.MustNewDecoder(nil), quietLogger())

	payload := buildReturn(t, returnEntry{"000123", day(2024, time.March, 15), 15050, domain.OutcomeDebited})
	report, err := svc.Reconcile(ctx, bytes.NewReader(payload), true)
	require.NoError(t, err)
	assert.Empty(t, report.Paid)
	assert.Len(t, report.Unmatched, 1)
}

func TestReconcile_EchoedRemittance(t *testing.T) {
	ctx := context.Background()
	f, _, _ := remitted(t)
	svc := NewReturns(f.repo, cnab.MustNewDecoder(nil), quietLogger())

	report, err := svc.Reconcile(ctx, bytes.NewReader(f.sink.files["REMESSA_NSA_7701.txt"]), true)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Echoed)
	assert.Empty(t, report.Paid)
	assert.Empty(t, report.Unmatched)
}

func TestReconcile_MalformedFile(t *testing.T) {
	f := newFixture(t)
	svc := NewReturns(f.repo, cnab.MustNewDecoder(nil), quietLogger())
	_, err := svc.Reconcile(context.Background(), strings.NewReader("garbage"), true)
	assert.ErrorIs(t, err, domain.ErrUnknownRecordType)
}
