// Package ticket renders e-tickets for confirmed bookings: a QR code that
// encodes the ticket code and a one-page PDF embedding it.
package ticket

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"
)

// QRSize is the default QR edge length in pixels.
const QRSize = 300

// Ticket holds what is printed on an e-ticket.
type Ticket struct {
	BookingID   uint64
	ShowID      uint64
	SeatID      uint64
	ShowTitle   string
	TheaterName string
	Location    string
	SeatLabel   string
	Category    string
	StartsAt    time.Time // already in the display zone
	PriceCents  int64
	Currency    string
}

// Code is the value scanned at the entrance.
func (t Ticket) Code() string {
	return fmt.Sprintf("TKT-%d-%d-%d", t.BookingID, t.ShowID, t.SeatID)
}

// QRCode returns the ticket code as a PNG QR image of size pixels.
func QRCode(t Ticket, size int) ([]byte, error) {
	if size <= 0 {
		size = QRSize
	}
	// Medium error correction (15% recovery)
	qr, err := qrcode.New(t.Code(), qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}
	png, err := qr.PNG(size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR to PNG: %w", err)
	}
	return png, nil
}

// PDF renders the ticket as an A4 page with the QR code on top.
func PDF(t Ticket) ([]byte, error) {
	qr, err := QRCode(t, QRSize)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Ticket "+t.Code(), false)
	pdf.AddPage()

	imgOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	imgName := "qr_" + t.Code()
	pdf.RegisterImageOptionsReader(imgName, imgOpts, bytes.NewReader(qr))
	qrX := (210.0 - 90.0) / 2
	pdf.ImageOptions(imgName, qrX, 20, 90, 90, false, imgOpts, 0, "")
	pdf.SetY(115)

	pdf.SetDrawColor(200, 200, 200)
	pdf.SetLineWidth(0.5)
	pdf.Line(20, pdf.GetY(), 190, pdf.GetY())
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 20)
	pdf.MultiCell(0, 9, truncate(t.ShowTitle, 60), "", "C", false)
	pdf.Ln(4)

	rows := [][2]string{
		{"Theater:", truncate(t.TheaterName, 50)},
		{"Location:", truncate(t.Location, 50)},
		{"Show time:", t.StartsAt.Format("Mon, 2 Jan 2006 3:04 PM MST")},
		{"Seat:", t.SeatLabel},
		{"Category:", t.Category},
		{"Price:", FormatPrice(t.PriceCents, t.Currency)},
	}
	for _, row := range rows {
		pdf.SetX(30)
		pdf.SetFont("Arial", "", 14)
		pdf.CellFormat(40, 10, row[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, row[1], "", 1, "L", false, 0, "")
	}
	pdf.Ln(8)

	pdf.SetFont("Arial", "I", 12)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 8, "Ticket Code: "+t.Code(), "", 1, "C", false, 0, "")
	pdf.MultiCell(0, 6, "Show this ticket at the entrance.\nScan the QR code to check in.", "", "C", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// FormatPrice renders minor units as "250.00 INR".
func FormatPrice(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, upper(currency))
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'a' <= c && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

// truncate keeps the core fonts from overflowing the page.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
