package services

import (
	"bytes"
	"fmt"
	"image/png"
	"net/url"

	"github.com/skip2/go-qrcode"
)

// QRCodeService handles QR code generation for payment requests and job
// deep links.
type QRCodeService struct {
	linkBase string
}

// NewQRCodeService creates a new QR code service. linkBase is the frontend
// origin used for job deep links, e.g. "https://openwork.example".
func NewQRCodeService(linkBase string) *QRCodeService {
	return &QRCodeService{linkBase: linkBase}
}

// GeneratePaymentQR generates a QR code for paying amount to address.
func (s *QRCodeService) GeneratePaymentQR(address, amount string) ([]byte, error) {
	if address == "" {
		return nil, fmt.Errorf("missing address")
	}
	payload := address
	if amount != "" {
		payload += "?amount=" + url.QueryEscape(amount)
	}
	return s.encode(payload)
}

// GenerateJobLinkQR generates a QR code linking to a job's conversation page.
func (s *QRCodeService) GenerateJobLinkQR(jobID string) ([]byte, error) {
	if jobID == "" {
		return nil, fmt.Errorf("missing job id")
	}
	return s.encode(fmt.Sprintf("%s/jobs/%s", s.linkBase, url.PathEscape(jobID)))
}

func (s *QRCodeService) encode(payload string) ([]byte, error) {
	qr, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}

	buf := new(bytes.Buffer)
	if err := png.Encode(buf, qr.Image(256)); err != nil {
		return nil, fmt.Errorf("failed to encode QR code to PNG: %w", err)
	}
	return buf.Bytes(), nil
}
