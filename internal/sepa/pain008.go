package sepa

import (
	"encoding/xml"
	"sort"
	"time"

	"github.com/duespay/duespay/internal/domain/batch"
	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/types"
	"github.com/shopspring/decimal"
)

// Creditor identifies the collecting organization in the bank file
type Creditor struct {
	Name       string
	IBAN       string
	BIC        string
	CreditorID string
}

// Validate fails fast on an incomplete creditor identity; a batch is never
// emitted with placeholder creditor data.
func (c Creditor) Validate() error {
	if c.Name == "" || c.IBAN == "" || c.BIC == "" || c.CreditorID == "" {
		return ierr.NewError("incomplete creditor configuration").
			WithHint("Creditor name, IBAN, BIC and creditor ID must all be configured").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Document is the pain.008.001.08 customer direct debit initiation
type Document struct {
	XMLName xml.Name   `xml:"Document"`
	Xmlns   string     `xml:"xmlns,attr"`
	Initn   Initiation `xml:"CstmrDrctDbtInitn"`
}

type Initiation struct {
	GroupHeader  GroupHeader   `xml:"GrpHdr"`
	PaymentInfos []PaymentInfo `xml:"PmtInf"`
}

type GroupHeader struct {
	MessageID      string `xml:"MsgId"`
	CreatedAt      string `xml:"CreDtTm"`
	TxCount        int    `xml:"NbOfTxs"`
	ControlSum     string `xml:"CtrlSum"`
	InitiatingName string `xml:"InitgPty>Nm"`
}

// PaymentInfo is one collection block; the file carries one block per
// sequence type so FRST and RCUR lines are never mixed
type PaymentInfo struct {
	PaymentInfoID   string        `xml:"PmtInfId"`
	Method          string        `xml:"PmtMtd"`
	BatchBooking    bool          `xml:"BtchBookg"`
	TxCount         int           `xml:"NbOfTxs"`
	ControlSum      string        `xml:"CtrlSum"`
	ServiceLevel    string        `xml:"PmtTpInf>SvcLvl>Cd"`
	LocalInstrument string        `xml:"PmtTpInf>LclInstrm>Cd"`
	SequenceType    string        `xml:"PmtTpInf>SeqTp"`
	CollectionDate  string        `xml:"ReqdColltnDt"`
	CreditorName    string        `xml:"Cdtr>Nm"`
	CreditorIBAN    string        `xml:"CdtrAcct>Id>IBAN"`
	CreditorBIC     string        `xml:"CdtrAgt>FinInstnId>BIC"`
	CreditorScheme  SchemeID      `xml:"CdtrSchmeId>Id>PrvtId>Othr"`
	Transactions    []DirectDebit `xml:"DrctDbtTxInf"`
}

type SchemeID struct {
	ID         string `xml:"Id"`
	SchemeName string `xml:"SchmeNm>Prtry"`
}

type DirectDebit struct {
	EndToEndID      string         `xml:"PmtId>EndToEndId"`
	Amount          InstrAmount    `xml:"InstdAmt"`
	MandateID       string         `xml:"DrctDbtTx>MndtRltdInf>MndtId"`
	MandateSignDate string         `xml:"DrctDbtTx>MndtRltdInf>DtOfSgntr"`
	DebtorBIC       string         `xml:"DbtrAgt>FinInstnId>BIC"`
	DebtorName      string         `xml:"Dbtr>Nm"`
	DebtorIBAN      string         `xml:"DbtrAcct>Id>IBAN"`
	Description     string         `xml:"RmtInf>Ustrd"`
}

type InstrAmount struct {
	Currency string `xml:"Ccy,attr"`
	Value    string `xml:",chardata"`
}

// Generator writes deterministic collection files: same batch in, byte-equal
// file out. Timestamps come from the batch, never from the wall clock.
type Generator struct {
	creditor Creditor
}

// NewGenerator creates a collection-file generator for the configured creditor
func NewGenerator(creditor Creditor) (*Generator, error) {
	if err := creditor.Validate(); err != nil {
		return nil, err
	}
	return &Generator{creditor: creditor}, nil
}

// Generate renders the batch as a pain.008.001.08 document
func (g *Generator) Generate(b *batch.Batch) ([]byte, error) {
	if len(b.Transactions) == 0 {
		return nil, ierr.NewError("batch has no transactions").
			WithHint("A collection file requires at least one transaction").
			WithReportableDetails(map[string]any{"batch_id": b.ID}).
			Mark(ierr.ErrInvalidOperation)
	}

	blocks := groupBySequenceType(b.Transactions)

	doc := Document{
		Xmlns: "urn:iso:std:iso:20022:tech:xsd:pain.008.001.08",
		Initn: Initiation{
			GroupHeader: GroupHeader{
				MessageID:      b.ID,
				CreatedAt:      b.CreatedAt.UTC().Format("2006-01-02T15:04:05"),
				TxCount:        len(b.Transactions),
				ControlSum:     b.TotalAmount.StringFixed(2),
				InitiatingName: g.creditor.Name,
			},
		},
	}

	for _, seqType := range orderedSequenceTypes(blocks) {
		txns := blocks[seqType]
		total := decimal.Zero
		lines := make([]DirectDebit, 0, len(txns))
		for _, t := range txns {
			total = total.Add(t.Amount)
			lines = append(lines, DirectDebit{
				EndToEndID: t.EndToEndID(),
				Amount: InstrAmount{
					Currency: t.Currency,
					Value:    t.Amount.StringFixed(2),
				},
				MandateID:       t.MandateReference,
				MandateSignDate: t.MandateSignDate.Format(time.DateOnly),
				DebtorBIC:       t.BIC,
				DebtorName:      t.MemberName,
				DebtorIBAN:      t.IBAN,
				Description:     t.Description,
			})
		}

		doc.Initn.PaymentInfos = append(doc.Initn.PaymentInfos, PaymentInfo{
			PaymentInfoID:   b.ID + "-" + seqType.String(),
			Method:          "DD",
			BatchBooking:    true,
			TxCount:         len(txns),
			ControlSum:      total.StringFixed(2),
			ServiceLevel:    "SEPA",
			LocalInstrument: "CORE",
			SequenceType:    seqType.String(),
			CollectionDate:  b.ExecutionDate.Format(time.DateOnly),
			CreditorName:    g.creditor.Name,
			CreditorIBAN:    g.creditor.IBAN,
			CreditorBIC:     g.creditor.BIC,
			CreditorScheme: SchemeID{
				ID:         g.creditor.CreditorID,
				SchemeName: "SEPA",
			},
			Transactions: lines,
		})
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to render collection file").
			Mark(ierr.ErrSystem)
	}
	return append([]byte(xml.Header), out...), nil
}

// groupBySequenceType splits lines into per-sequence-type blocks preserving
// line order inside each block
func groupBySequenceType(txns []*batch.Transaction) map[types.SequenceType][]*batch.Transaction {
	out := make(map[types.SequenceType][]*batch.Transaction)
	for _, t := range txns {
		out[t.SequenceType] = append(out[t.SequenceType], t)
	}
	for _, block := range out {
		sort.SliceStable(block, func(i, j int) bool {
			return block[i].LineIndex < block[j].LineIndex
		})
	}
	return out
}

// orderedSequenceTypes yields FRST before RCUR so the file layout is stable
func orderedSequenceTypes(blocks map[types.SequenceType][]*batch.Transaction) []types.SequenceType {
	order := []types.SequenceType{types.SequenceTypeFirst, types.SequenceTypeRecurring}
	out := make([]types.SequenceType, 0, len(blocks))
	for _, s := range order {
		if _, ok := blocks[s]; ok {
			out = append(out, s)
		}
	}
	return out
}
