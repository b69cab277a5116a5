// Package receipt renders booking confirmations as single-page PDFs with
// a QR code carrying the booking reference.
package receipt

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

const timeLayout = "2006-01-02 15:04"

// Data is everything printed on a receipt.  Times are rendered in Loc.
type Data struct {
	BookingID     uint64
	Holder        string
	VehicleNumber string
	FloorName     string
	SlotNumber    string
	Category      string
	StartTime     time.Time
	EndTime       time.Time
	PriceCents    int64
	Status        string
	IssuedAt      time.Time
	Loc           *time.Location
}

// Reference is the human readable booking reference, e.g. PK-000042.
func Reference(id uint64) string {
	return fmt.Sprintf("PK-%06d", id)
}

// Payload builds the QR content: reference|slot|start unix|signature.
// The signature is an HMAC-SHA256 over the first three fields keyed by
// secret; with an empty secret it is omitted.
func Payload(d Data, secret string) string {
	data := fmt.Sprintf("%s|%s|%d", Reference(d.BookingID), d.SlotNumber, d.StartTime.Unix())
	if secret == "" {
		return data
	}
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return data + "|" + base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// Verify reports whether payload was produced by Payload with secret.
func Verify(payload, secret string) bool {
	i := strings.LastIndexByte(payload, '|')
	if i < 0 || secret == "" {
		return false
	}
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(payload[:i]))
	want := base64.RawURLEncoding.EncodeToString(h.Sum(nil))
	return hmac.Equal([]byte(want), []byte(payload[i+1:]))
}

// Render writes the PDF receipt for d to w.
func Render(w io.Writer, d Data, secret string) error {
	loc := d.Loc
	if loc == nil {
		loc = time.UTC
	}
	qrPNG, err := qrcode.Encode(Payload(d, secret), qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("encode qr: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetTitle("Parking receipt "+Reference(d.BookingID), false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, "Parking Reservation")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 11)
	rows := [][2]string{
		{"Reference", Reference(d.BookingID)},
		{"Holder", d.Holder},
		{"Vehicle", d.VehicleNumber},
		{"Floor", d.FloorName},
		{"Slot", fmt.Sprintf("%s (%s)", d.SlotNumber, d.Category)},
		{"From", d.StartTime.In(loc).Format(timeLayout)},
		{"Until", d.EndTime.In(loc).Format(timeLayout)},
		{"Price", FormatCents(d.PriceCents)},
		{"Status", d.Status},
	}
	for _, r := range rows {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(30, 8, r[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(0, 8, r[1], "", 1, "L", false, 0, "")
	}

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 95, 20, 40, 40, false, opts, 0, "")

	if !d.IssuedAt.IsZero() {
		pdf.SetY(-20)
		pdf.SetFont("Arial", "I", 8)
		pdf.Cell(0, 6, "Issued "+d.IssuedAt.In(loc).Format(timeLayout))
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

// FormatCents renders an amount like 150.00.
func FormatCents(c int64) string {
	sign := ""
	if c < 0 {
		sign, c = "-", -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}
