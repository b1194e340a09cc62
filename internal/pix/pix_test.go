package pix

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRC16_CheckValue(t *testing.T) {
	assert.Equal(t, uint16(0x29B1), CRC16([]byte("123456789")))
}

func testCharge() Charge {
	return Charge{
		Key:          "pix@deliverytech.com",
		MerchantName: "DeliveryTech",
		MerchantCity: "Sao Paulo",
		Amount:       decimal.RequireFromString("64.8"),
		TxID:         "ORDER-42",
	}
}

func TestPayload_Fields(t *testing.T) {
	payload, err := testCharge().Payload()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(payload, "000201"))
	assert.Contains(t, payload, "0014br.gov.bcb.pix0120pix@deliverytech.com")
	assert.Contains(t, payload, "5303986")
	assert.Contains(t, payload, "540564.80")
	assert.Contains(t, payload, "5802BR")
	assert.Contains(t, payload, "5912DELIVERYTECH")
	assert.Contains(t, payload, "6009SAO PAULO")
	assert.Contains(t, payload, "62110507ORDER42")
}

func TestPayload_CRCVerifies(t *testing.T) {
	payload, err := testCharge().Payload()
	require.NoError(t, err)

	body, crc := payload[:len(payload)-4], payload[len(payload)-4:]
	assert.True(t, strings.HasSuffix(body, "6304"))
	assert.Equal(t, fmt.Sprintf("%04X", CRC16([]byte(body))), crc)
}

func TestPayload_Truncation(t *testing.T) {
	c := testCharge()
	c.MerchantName = strings.Repeat("x", 40)
	c.MerchantCity = strings.Repeat("y", 40)
	c.TxID = ""

	payload, err := c.Payload()
	require.NoError(t, err)
	assert.Contains(t, payload, "5925"+strings.Repeat("X", 25))
	assert.Contains(t, payload, "6015"+strings.Repeat("Y", 15))
	assert.Contains(t, payload, "62070503***")
}

func TestPayload_AccentsFolded(t *testing.T) {
	c := testCharge()
	c.MerchantName = "Açaí da Praça Ltda. São João"
	c.MerchantCity = "São Paulo"
	c.Description = "Pedido nº 42"

	payload, err := c.Payload()
	require.NoError(t, err)

	assert.True(t, utf8.ValidString(payload))
	for _, r := range payload {
		require.Less(t, r, rune(0x80), "non-ASCII rune %q in payload", r)
	}
	assert.Contains(t, payload, "5925ACAI DA PRACA LTDA. SAO J")
	assert.Contains(t, payload, "6009SAO PAULO")
	assert.Contains(t, payload, "0211Pedido n 42")

	body, crc := payload[:len(payload)-4], payload[len(payload)-4:]
	assert.Equal(t, fmt.Sprintf("%04X", CRC16([]byte(body))), crc)
}

func TestPayload_Errors(t *testing.T) {
	c := testCharge()
	c.Key = " "
	_, err := c.Payload()
	assert.ErrorIs(t, err, ErrMissingKey)

	c = testCharge()
	c.Amount = decimal.Zero
	_, err = c.Payload()
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestQRCode_PNG(t *testing.T) {
	png, err := testCharge().QRCode(0)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}
