package booking

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/loiphan2202/BAT/access"
	"github.com/loiphan2202/BAT/apperr"
	"github.com/loiphan2202/BAT/models"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

// VoucherCheck is the result of scanning a voucher at the counter.
type VoucherCheck struct {
	Booking models.Booking `json:"booking"`
	Valid   bool           `json:"valid"`
}

func (s *Service) sign(data string) string {
	h := hmac.New(sha256.New, s.voucherSecret)
	h.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// VoucherPayload returns the QR payload bookingID|userID|signature.
func (s *Service) VoucherPayload(bookingID, userID string) string {
	data := bookingID + "|" + userID
	return data + "|" + s.sign(data)
}

// VerifyVoucher checks a scanned payload and returns the booking it names.
func (s *Service) VerifyVoucher(ctx context.Context, actor access.Actor, payload string) (*VoucherCheck, error) {
	if err := access.RequireAdmin(actor); err != nil {
		return nil, err
	}
	parts := strings.Split(strings.TrimSpace(payload), "|")
	if len(parts) != 3 {
		return nil, apperr.Field("payload", "malformed voucher")
	}
	want := s.sign(parts[0] + "|" + parts[1])
	if !hmac.Equal([]byte(want), []byte(parts[2])) {
		return nil, apperr.Field("payload", "signature mismatch")
	}

	b, err := s.store.FindBooking(ctx, parts[0])
	if err != nil {
		return nil, translate(err, "booking not found")
	}
	if b.UserID != parts[1] {
		return nil, apperr.Field("payload", "voucher does not match booking owner")
	}
	return &VoucherCheck{Booking: *b, Valid: b.Status != models.BookingCancelled}, nil
}

// Voucher renders a PDF voucher with a signed QR code for the booking's
// owner or an administrator.
func (s *Service) Voucher(ctx context.Context, actor access.Actor, id string) ([]byte, error) {
	b, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	destName := b.DestinationID
	if d, err := s.store.FindDestination(ctx, b.DestinationID); err == nil {
		destName = d.Name
	}
	holder := actor.Username
	if u, err := s.store.FindUser(ctx, b.UserID); err == nil {
		holder = u.DisplayName()
	}

	qrPNG, err := qrcode.Encode(s.VoucherPayload(b.ID, b.UserID), qrcode.Medium, 256)
	if err != nil {
		return nil, apperr.Internal("generate QR code", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Travel Voucher")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 12)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	for _, line := range []string{
		"Booking ID: " + b.ID,
		"Traveller: " + holder,
		"Destination: " + destName,
		"Package: " + b.PackageName,
		"Travel Date: " + b.TravelDate.Format("02 Jan 2006"),
		fmt.Sprintf("Travelers: %d", b.Travelers),
		// core fonts have no rupee sign
		fmt.Sprintf("Total Amount: INR %.2f", b.TotalAmount),
		fmt.Sprintf("Status: %s / Payment: %s", b.Status, b.PaymentStatus),
	} {
		pdf.Cell(0, 10, tr(line))
		pdf.Ln(8)
	}

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 150, 20, 40, 40, false, imageOpts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, apperr.Internal("render voucher", err)
	}
	return buf.Bytes(), nil
}
