package approval

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

const pdfDateLayout = "2006-01-02 15:04"

// ExportPDF renders the document header, payload summary and the approval
// line stamps to w. viewerID must take part in the document.
func (s *Service) ExportPDF(ctx context.Context, docID, viewerID string, w io.Writer) error {
	doc, err := s.GetDocumentFor(ctx, docID, viewerID)
	if err != nil {
		return err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(doc.DocNumber, false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, doc.Title)
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Document: %s (%s)", doc.DocNumber, doc.Type))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Drafter: %s", s.displayName(ctx, doc.DrafterID)))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Status: %s   Urgency: %s", doc.Status, doc.Urgency))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Drafted: %s   Completed: %s", formatStamp(doc.DraftedAt), formatStamp(doc.CompletedAt)))
	pdf.Ln(10)

	if lines := payloadSummary(doc.Payload); len(lines) > 0 {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 8, "Details")
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "", 11)
		for _, l := range lines {
			pdf.Cell(0, 6, l)
			pdf.Ln(6)
		}
		pdf.Ln(4)
	}

	if doc.Content != "" {
		pdf.MultiCell(0, 6, doc.Content, "", "L", false)
		pdf.Ln(4)
	}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Approval line")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "B", 10)
	for _, h := range []struct {
		title string
		width float64
	}{{"#", 10}, {"Approver", 55}, {"Type", 30}, {"Status", 30}, {"Date", 55}} {
		pdf.CellFormat(h.width, 7, h.title, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 10)
	for _, l := range doc.Lines {
		approver := s.displayName(ctx, l.ApproverID)
		if l.DelegatedTo != "" {
			approver += " -> " + s.displayName(ctx, l.DelegatedTo)
		}
		pdf.CellFormat(10, 7, fmt.Sprint(l.Seq), "1", 0, "C", false, 0, "")
		pdf.CellFormat(55, 7, approver, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, string(l.Type), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 7, string(l.Status), "1", 0, "C", false, 0, "")
		pdf.CellFormat(55, 7, formatStamp(l.ApprovedAt), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		if l.Comment != "" {
			pdf.SetFont("Helvetica", "I", 9)
			pdf.CellFormat(180, 6, "  "+l.Comment, "LRB", 0, "L", false, 0, "")
			pdf.Ln(-1)
			pdf.SetFont("Helvetica", "", 10)
		}
	}

	return pdf.Output(w)
}

func (s *Service) displayName(ctx context.Context, userID string) string {
	user, err := s.users.Resolve(ctx, userID)
	if err != nil || user.Name == "" {
		return userID
	}
	return user.Name
}

func payloadSummary(p Payload) []string {
	switch d := p.(type) {
	case *LeaveDetail:
		return []string{
			fmt.Sprintf("Leave type: %s", d.LeaveType),
			fmt.Sprintf("Period: %s - %s", d.StartAt.Format(pdfDateLayout), d.EndAt.Format(pdfDateLayout)),
			fmt.Sprintf("Hours: %s (%s days)", d.Hours.String(), d.Days.String()),
		}
	case *OvertimeDetail:
		return []string{
			fmt.Sprintf("Work date: %s", d.WorkDate.Format("2006-01-02")),
			fmt.Sprintf("Period: %s - %s", d.StartAt.Format(pdfDateLayout), d.EndAt.Format(pdfDateLayout)),
			fmt.Sprintf("Hours: %s", d.Hours.String()),
		}
	case *ExpenseDetail:
		return []string{
			fmt.Sprintf("Category: %s", d.Category),
			fmt.Sprintf("Amount: %s %s", d.Amount.StringFixed(2), d.Currency),
			fmt.Sprintf("Spent on: %s", d.SpentOn.Format("2006-01-02")),
		}
	}
	return nil
}

func formatStamp(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(pdfDateLayout)
}
