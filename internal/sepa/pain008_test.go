package sepa

import (
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/duespay/duespay/internal/domain/batch"
	"github.com/duespay/duespay/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCreditor() Creditor {
	return Creditor{
		Name:       "Test Association e.V.",
		IBAN:       "DE89370400440532013000",
		BIC:        "COBADEFFXXX",
		CreditorID: "DE98ZZZ09999999999",
	}
}

func testBatch() *batch.Batch {
	b := &batch.Batch{
		ID:                 "batch_01HTEST",
		BatchReference:     "DD-TEST1",
		ExecutionDate:      time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC),
		SubmissionDeadline: time.Date(2025, 4, 8, 0, 0, 0, 0, time.UTC),
		BatchStatus:        types.BatchStatusOpen,
		TotalAmount:        decimal.NewFromFloat(75.50),
		Currency:           "EUR",
	}
	b.CreatedAt = time.Date(2025, 4, 1, 9, 30, 0, 0, time.UTC)

	b.Transactions = []*batch.Transaction{
		{
			ID:               "txn_1",
			BatchID:          b.ID,
			LineIndex:        0,
			InvoiceID:        "inv_1",
			MandateReference: "MND-001",
			MandateSignDate:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			MemberName:       "Erika Mustermann",
			IBAN:             "DE02120300000000202051",
			BIC:              "BYLADEM1001",
			Amount:           decimal.NewFromFloat(25),
			Currency:         "EUR",
			SequenceType:     types.SequenceTypeRecurring,
			Description:      "Membership dues 2025-03-15 to 2025-04-14",
		},
		{
			ID:               "txn_2",
			BatchID:          b.ID,
			LineIndex:        1,
			InvoiceID:        "inv_2",
			MandateReference: "MND-002",
			MandateSignDate:  time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
			MemberName:       "Max Mustermann",
			IBAN:             "DE02500105170137075030",
			BIC:              "INGDDEFFXXX",
			Amount:           decimal.NewFromFloat(50.50),
			Currency:         "EUR",
			SequenceType:     types.SequenceTypeFirst,
			Description:      "Membership dues 2025-03-01 to 2025-03-31",
		},
	}
	return b
}

func TestNewGeneratorRejectsIncompleteCreditor(t *testing.T) {
	_, err := NewGenerator(Creditor{Name: "No Bank Details"})
	assert.Error(t, err)
}

func TestGenerateStructure(t *testing.T) {
	g, err := NewGenerator(testCreditor())
	require.NoError(t, err)

	out, err := g.Generate(testBatch())
	require.NoError(t, err)

	var doc Document
	require.NoError(t, xml.Unmarshal(out, &doc))

	assert.Equal(t, "urn:iso:std:iso:20022:tech:xsd:pain.008.001.08", doc.Xmlns)
	assert.Equal(t, "batch_01HTEST", doc.Initn.GroupHeader.MessageID)
	assert.Equal(t, 2, doc.Initn.GroupHeader.TxCount)
	assert.Equal(t, "75.50", doc.Initn.GroupHeader.ControlSum)
	assert.Equal(t, "2025-04-01T09:30:00", doc.Initn.GroupHeader.CreatedAt)

	// One payment block per sequence type, FRST before RCUR
	require.Len(t, doc.Initn.PaymentInfos, 2)
	frst, rcur := doc.Initn.PaymentInfos[0], doc.Initn.PaymentInfos[1]

	assert.Equal(t, "FRST", frst.SequenceType)
	assert.Equal(t, "batch_01HTEST-FRST", frst.PaymentInfoID)
	assert.Equal(t, 1, frst.TxCount)
	assert.Equal(t, "50.50", frst.ControlSum)
	assert.Equal(t, "DD", frst.Method)
	assert.Equal(t, "SEPA", frst.ServiceLevel)
	assert.Equal(t, "CORE", frst.LocalInstrument)
	assert.Equal(t, "2025-04-15", frst.CollectionDate)
	assert.Equal(t, "DE98ZZZ09999999999", frst.CreditorScheme.ID)

	assert.Equal(t, "RCUR", rcur.SequenceType)
	require.Len(t, rcur.Transactions, 1)
	line := rcur.Transactions[0]
	assert.Equal(t, "batch_01HTEST-0", line.EndToEndID)
	assert.Equal(t, "MND-001", line.MandateID)
	assert.Equal(t, "2025-01-01", line.MandateSignDate)
	assert.Equal(t, "25.00", line.Amount.Value)
	assert.Equal(t, "EUR", line.Amount.Currency)
	assert.Equal(t, "Erika Mustermann", line.DebtorName)
}

func TestGenerateIsDeterministic(t *testing.T) {
	g, err := NewGenerator(testCreditor())
	require.NoError(t, err)

	first, err := g.Generate(testBatch())
	require.NoError(t, err)
	second, err := g.Generate(testBatch())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(string(first), xml.Header))
}

func TestGenerateRejectsEmptyBatch(t *testing.T) {
	g, err := NewGenerator(testCreditor())
	require.NoError(t, err)

	b := testBatch()
	b.Transactions = nil
	_, err = g.Generate(b)
	assert.Error(t, err)
}
