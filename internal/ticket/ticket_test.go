package ticket

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() Ticket {
	ist := time.FixedZone("IST", 5*3600+1800)
	return Ticket{
		BookingID: 12, ShowID: 3, SeatID: 40,
		ShowTitle: "Night Train", TheaterName: "Screen 1", Location: "Pune",
		SeatLabel: "A1", Category: "PREMIUM",
		StartsAt:   time.Date(2026, 11, 2, 19, 30, 0, 0, ist),
		PriceCents: 25000, Currency: "inr",
	}
}

func TestCode(t *testing.T) {
	assert.Equal(t, "TKT-12-3-40", sample().Code())
}

func TestQRCodeIsPNG(t *testing.T) {
	data, err := QRCode(sample(), 128)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
}

func TestPDF(t *testing.T) {
	data, err := PDF(sample())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
	assert.Greater(t, len(data), 1000)
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "250.00 INR", FormatPrice(25000, "inr"))
	assert.Equal(t, "0.05 USD", FormatPrice(5, "usd"))
	assert.Equal(t, "-1.50 INR", FormatPrice(-150, "INR"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
