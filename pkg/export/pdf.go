package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"geogli-chatbot-be/internal/entity"

	"github.com/jung-kurt/gofpdf"
)

// WriteConversationPDF renders a conversation transcript as a PDF
// document. Messages are expected in chronological order.
func WriteConversationPDF(w io.Writer, sessionId string, messages []entity.ConversationMessage) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "UNCCD GeoGLI Chatbot Conversation", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Session ID: %s", sessionId), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Exported: %s", time.Now().Format("2006-01-02 15:04:05")), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	for _, msg := range messages {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetTextColor(0, 0, 0)
		header := fmt.Sprintf("%s (%s)", strings.ToUpper(msg.Role), msg.CreatedAt.Format("2006-01-02 15:04:05"))
		pdf.CellFormat(0, 6, header, "", 1, "L", false, 0, "")

		if msg.Role == "user" {
			pdf.SetFont("Helvetica", "B", 10)
			pdf.SetTextColor(0, 0, 200)
		} else {
			pdf.SetFont("Helvetica", "", 10)
			pdf.SetTextColor(0, 100, 0)
		}
		// gofpdf's core fonts are cp1252 only; translate what we can.
		tr := pdf.UnicodeTranslatorFromDescriptor("")
		pdf.SetX(25)
		pdf.MultiCell(0, 5, tr(msg.Content), "", "L", false)
		pdf.Ln(3)
	}

	pdf.SetTextColor(0, 0, 0)
	return pdf.Output(w)
}
