package report

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
	"github.com/yeremiapane/restaurant-dispatch/services"
	"github.com/yeremiapane/restaurant-dispatch/utils"
)

var columns = []struct {
	title string
	width float64
	align string
}{
	{"Ticket", 18, "L"},
	{"Customer", 44, "L"},
	{"Type", 22, "L"},
	{"Status", 24, "L"},
	{"Items", 14, "R"},
	{"Total", 34, "R"},
	{"Courier", 34, "R"},
}

// PDFExporter renders a daily report as an A4 table.
type PDFExporter struct {
	Title string
}

func NewPDFExporter(title string) *PDFExporter {
	if title == "" {
		title = "Daily report"
	}
	return &PDFExporter{Title: title}
}

func (e *PDFExporter) Write(w io.Writer, r *services.DailyReport) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(fmt.Sprintf("%s %s", e.Title, r.Date), true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, tr(fmt.Sprintf("%s - %s", e.Title, r.Date)), "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	summary := []string{
		fmt.Sprintf("Orders: %d   Completed: %d   Cancelled: %d", r.Orders, r.Completed, r.Cancelled),
		fmt.Sprintf("Revenue: %s", utils.FormatSom(r.Revenue)),
		fmt.Sprintf("Cashback: %s", utils.FormatSom(r.Cashback)),
	}
	for _, line := range summary {
		pdf.CellFormat(0, 6, tr(line), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for _, c := range columns {
		pdf.CellFormat(c.width, 7, c.title, "1", 0, c.align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range r.Rows {
		cells := []string{
			fmt.Sprintf("#%d", row.TicketNo),
			row.CustomerName,
			string(row.OrderType),
			string(row.Status),
			fmt.Sprintf("%d", row.Items),
			utils.FormatSom(row.TotalAmount),
			utils.FormatSom(row.CourierPrice),
		}
		for i, c := range columns {
			pdf.CellFormat(c.width, 6, tr(cells[i]), "1", 0, c.align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	if len(r.Rows) == 0 {
		pdf.CellFormat(0, 6, "No orders", "1", 1, "C", false, 0, "")
	}

	return pdf.Output(w)
}
