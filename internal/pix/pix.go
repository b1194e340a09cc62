// Package pix builds static PIX charges ("BR Code", EMV QRCPS merchant
// presented mode) and renders them as QR codes.
package pix

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	gui = "br.gov.bcb.pix"

	maxNameLen = 25
	maxCityLen = 15
	maxTxIDLen = 25
	maxDescLen = 72

	// DefaultQRSize is the PNG edge length in pixels.
	DefaultQRSize = 256
)

// EMV field ids.
const (
	idPayloadFormat   = "00"
	idMerchantAccount = "26"
	idMerchantGUI     = "00"
	idMerchantKey     = "01"
	idMerchantDesc    = "02"
	idCategoryCode    = "52"
	idCurrency        = "53"
	idAmount          = "54"
	idCountry         = "58"
	idMerchantName    = "59"
	idMerchantCity    = "60"
	idAdditionalData  = "62"
	idTxID            = "05"
	idCRC             = "63"
)

var (
	ErrMissingKey    = errors.New("pix key not configured")
	ErrInvalidAmount = errors.New("pix amount must be positive")
)

// Charge is a single static PIX charge.
type Charge struct {
	Key          string
	MerchantName string
	MerchantCity string
	Amount       decimal.Decimal
	TxID         string
	Description  string
}

// Payload returns the BR Code string, CRC included.
func (c Charge) Payload() (string, error) {
	if strings.TrimSpace(c.Key) == "" {
		return "", ErrMissingKey
	}
	if !c.Amount.IsPositive() {
		return "", ErrInvalidAmount
	}

	account := field(idMerchantGUI, gui) + field(idMerchantKey, c.Key)
	if desc := truncate(ascii(c.Description), maxDescLen); desc != "" {
		account += field(idMerchantDesc, desc)
	}

	txid := sanitizeTxID(c.TxID)

	var b strings.Builder
	b.WriteString(field(idPayloadFormat, "01"))
	b.WriteString(field(idMerchantAccount, account))
	b.WriteString(field(idCategoryCode, "0000"))
	b.WriteString(field(idCurrency, "986"))
	b.WriteString(field(idAmount, c.Amount.StringFixed(2)))
	b.WriteString(field(idCountry, "BR"))
	b.WriteString(field(idMerchantName, truncate(strings.ToUpper(ascii(c.MerchantName)), maxNameLen)))
	b.WriteString(field(idMerchantCity, truncate(strings.ToUpper(ascii(c.MerchantCity)), maxCityLen)))
	b.WriteString(field(idAdditionalData, field(idTxID, txid)))
	b.WriteString(idCRC + "04")

	payload := b.String()
	return payload + fmt.Sprintf("%04X", CRC16([]byte(payload))), nil
}

// QRCode renders the charge payload as a PNG.
func (c Charge) QRCode(size int) ([]byte, error) {
	payload, err := c.Payload()
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = DefaultQRSize
	}
	return qrcode.Encode(payload, qrcode.Medium, size)
}

// CRC16 is CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF), as required by
// the BR Code checksum field.
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func field(id, value string) string {
	return fmt.Sprintf("%s%02d%s", id, len(value), value)
}

// ascii strips diacritics ("São" becomes "Sao") and drops any rune left
// outside printable ASCII, so field lengths count characters.
func ascii(s string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	for _, r := range folded {
		if r >= ' ' && r <= '~' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[:n]
	}
	return s
}

// sanitizeTxID keeps ASCII letters and digits; an empty result becomes "***".
func sanitizeTxID(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "" {
		return "***"
	}
	return truncate(out, maxTxIDLen)
}
