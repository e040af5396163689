package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/warp/benefit-engine/vr"
)

func TestFold(t *testing.T) {
	assert.Equal(t, "DIAS DE FERIAS", fold("  Dias de  Férias "))
	assert.Equal(t, "DATA DEMISSAO", fold("DATA DEMISSÃO"))
	assert.Equal(t, "ADMISSAO", fold("Admissão"))
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"35", "35", true},
		{"37.5", "37.5", true},
		{"R$ 37,50", "37.5", true},
		{"R$ 1.234,56", "1234.56", true},
		{"1234,5", "1234.5", true},
		{"", "0", false},
		{"abc", "0", false},
	}
	for _, tt := range tests {
		got, ok := parseDecimal(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		assert.Equal(t, tt.want, got.String(), "input %q", tt.in)
	}
}

func TestParseInt(t *testing.T) {
	n, ok := parseInt("34941")
	assert.True(t, ok)
	assert.Equal(t, int64(34941), n)

	n, ok = parseInt("22.0")
	assert.True(t, ok)
	assert.Equal(t, int64(22), n)

	_, ok = parseInt("22.5")
	assert.False(t, ok)
	_, ok = parseInt("")
	assert.False(t, ok)
}

func TestParseDate(t *testing.T) {
	want := time.Date(2025, time.May, 10, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"45787", "2025-05-10", "10/05/2025", "2025-05-10 00:00:00"} {
		got, ok := parseDate(in)
		assert.True(t, ok, "input %q", in)
		assert.Equal(t, want, got, "input %q", in)
	}

	_, ok := parseDate("tomorrow")
	assert.False(t, ok)
	_, ok = parseDate("0")
	assert.False(t, ok)
}

func TestLocate_BannerAndPositionalColumns(t *testing.T) {
	// GIVEN: A workdays sheet with a banner row and an unnamed day column
	// WHEN: Locating columns
	// THEN: The header is the row after the banner and days come from column B

	rows := [][]string{
		{"BASE DIAS UTEIS DE 15/04 a 15/05"},
		{},
		{"SINDICADO"},
		{"SINDPD SP", "22"},
	}

	sh, err := locate(vr.CategoryWorkdays, rows)

	if assert.NoError(t, err) {
		assert.Equal(t, 0, sh.index[colWorkUnion])
		assert.Equal(t, 1, sh.index[colWorkdays])
		assert.Len(t, sh.rows, 1)
	}
}

func TestLocate_StateColumnMatchedBySubstring(t *testing.T) {
	sh, err := locate(vr.CategoryRates, [][]string{{"VALOR", "ESTADO (UF)  "}, {"35", "SP"}})

	if assert.NoError(t, err) {
		assert.Equal(t, 1, sh.index[colState])
		assert.Equal(t, 0, sh.index[colValue])
	}
}
