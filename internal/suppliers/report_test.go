package suppliers

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleReport = `
                         DELIVERY REPORT                    2026-08-18
Customer: FooBar Kiosk                           Order no: 118293

Art.no      Description                              Qty      Price
101176      LOKA CITRON 50CL PET                       4     239,20
400522      KEXCHOKLAD 60G                             2     156.00
990011      PANT 50CL                                  4      12,00

            Freight                                            0,00
Total ex VAT                                                 407,20
`

func TestParseReportText(t *testing.T) {
	rows, err := parseReportText(sampleReport)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "101176", rows[0].SKU)
	assert.Equal(t, "LOKA CITRON 50CL PET", rows[0].Name)
	assert.Equal(t, int64(4), rows[0].Qty)
	assert.True(t, rows[0].Price.Equal(decimal.RequireFromString("239.20")))

	// Decimal point and decimal comma both parse.
	assert.True(t, rows[1].Price.Equal(decimal.RequireFromString("156.00")))

	assert.Equal(t, "990011", rows[2].SKU)
}

func TestParseReportTextSkipsNoise(t *testing.T) {
	rows, err := parseReportText("Some header\n\nTotal ex VAT   407,20\n")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestParseReportTextEmpty(t *testing.T) {
	rows, err := parseReportText("")
	require.NoError(t, err)
	assert.Empty(t, rows)
}
