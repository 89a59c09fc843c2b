package pdf

import (
	"time"
)

// AuditRecord is printed on the page appended after the signed content.
type AuditRecord struct {
	ContractID   string
	Token        string
	SignerName   string
	SignedAt     time.Time
	OriginIP     string
	Verification string
}

// AuditPage renders rec as a single-page PDF.
func AuditPage(rec AuditRecord, fontPath string) ([]byte, error) {
	doc, err := newDocument(fontPath)
	if err != nil {
		return nil, err
	}
	doc.pdf.SetCreationDate(rec.SignedAt)
	doc.pdf.SetTitle("Signing audit record", true)
	doc.pdf.AddPage()

	doc.setFont("B", 14)
	doc.pdf.CellFormat(0, 10, doc.tr("Signing audit record"), "", 1, "L", false, 0, "")
	doc.pdf.Ln(4)

	rows := [][2]string{
		{"Contract", rec.ContractID},
		{"Signing token", rec.Token},
		{"Signer", rec.SignerName},
		{"Signed at", rec.SignedAt.UTC().Format(time.RFC3339)},
		{"Origin IP", rec.OriginIP},
		{"Verification", rec.Verification},
	}
	for _, r := range rows {
		value := r[1]
		if value == "" {
			value = "-"
		}
		doc.setFont("B", 10)
		doc.pdf.CellFormat(40, 8, doc.tr(r[0]), "1", 0, "L", false, 0, "")
		doc.setFont("", 9)
		doc.pdf.MultiCell(0, 8, doc.tr(value), "1", "L", false)
	}
	return doc.bytes()
}
