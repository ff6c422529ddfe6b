package qrlabel

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"orchardtrace/models"
)

// renderBatchLabelPDF produces the printable A4 label attached to an
// exported batch: code and facts up top, the scannable QR below.
func renderBatchLabelPDF(target models.Batch, record models.QRRecord) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Batch Label", false)
	pdf.AddPage()

	market := strings.TrimSpace(target.TargetMarket)
	if market == "" {
		market = "Domestic"
	}

	pdf.SetFont("Helvetica", "B", 40)
	pdf.CellFormat(0, 20, target.Code, "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 14)
	pdf.CellFormat(0, 8, fmt.Sprintf("Total weight: %.2f kg", target.TotalWeight), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 8, "Quality grade: "+target.QualityGrade, "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 8, "Target market: "+market, "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 8, "Issued: "+record.GeneratedAt.Format("02/01/2006"), "", 1, "C", false, 0, "")

	opt := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	imageName := fmt.Sprintf("batch-qr-%d", target.ID)
	pdf.RegisterImageOptionsReader(imageName, opt, bytes.NewReader(record.ImagePNG))
	pageW, _ := pdf.GetPageSize()
	imgSide := 110.0
	x := (pageW - imgSide) / 2
	y := 80.0
	pdf.ImageOptions(imageName, x, y, imgSide, imgSide, false, opt, 0, "")

	pdf.SetY(y + imgSide + 8)
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, record.Payload, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "I", 10)
	pdf.CellFormat(0, 6, "Scan to view the full cultivation history", "", 1, "C", false, 0, "")

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
