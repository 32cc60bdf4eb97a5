package trsp

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordBlock(t *testing.T) {
	cases := []struct {
		name string
		rec  Record
		want string
	}{
		{
			name: "full",
			rec: Record{
				Description: "Mode U/V", UplinkLow: 435030000, UplinkHigh: 435050000,
				DownlinkLow: 145950000, DownlinkHigh: 145970000, Mode: "LSB", Baud: 1200, Invert: true,
			},
			want: "\n[Mode U/V]\nUP_LOW=435030000\nUP_HIGH=435050000\nDOWN_LOW=145950000\nDOWN_HIGH=145970000\nMODE=LSB\nBAUD=1200\nINVERT=true\n",
		},
		{
			name: "bare",
			rec:  Record{Mode: "7"},
			want: "\n[]\nMODE=7\n",
		},
		{
			name: "rounded baud",
			rec:  Record{Description: "GMSK", Mode: "GMSK", Baud: 9599.6},
			want: "\n[GMSK]\nMODE=GMSK\nBAUD=9600\n",
		},
		{
			name: "negative values dropped",
			rec:  Record{Description: "x", Mode: "FM", UplinkLow: -1, Baud: -2},
			want: "\n[x]\nMODE=FM\n",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, string(tc.rec.Block()))
		})
	}
}

func TestDecodeRecord(t *testing.T) {
	r, err := decodeRecord([]byte(`{"description":"APRS\n digi","norad_cat_id":25544,"uplink_low":145825000,
		"downlink_low":145825000,"mode_id":4,"invert":null,"baud":1200.0,"alive":true,"service":"Amateur"}`))
	require.NoError(t, err)

	assert.Equal(t, int32(25544), r.CatalogNumber)
	assert.Equal(t, "APRS  digi", r.Description)
	assert.Equal(t, int64(145825000), r.UplinkLow)
	assert.Zero(t, r.UplinkHigh)
	assert.Equal(t, int32(4), r.ModeID)
	assert.Equal(t, 1200.0, r.Baud)
	assert.False(t, r.Invert)
	assert.True(t, r.Alive)
}

func TestDecodeRecord_Errors(t *testing.T) {
	_, err := decodeRecord([]byte(`{"norad_cat_id":`))
	assert.ErrorIs(t, err, errMalformedItem)

	_, err = decodeRecord([]byte(`{"norad_cat_id":1}`))
	assert.ErrorIs(t, err, errMissingField)

	_, err = decodeRecord([]byte(`{"norad_cat_id":-4,"mode_id":1}`))
	assert.ErrorIs(t, err, errMissingField)
}

func TestClipText(t *testing.T) {
	short := "Mode V/U"
	assert.Equal(t, short, clipText(short))

	long := strings.Repeat("a", 100)
	assert.Len(t, clipText(long), maxTextLen)

	// 78 ASCII bytes then a 3-byte rune straddling the limit.
	mixed := strings.Repeat("b", 78) + "€tail"
	got := clipText(mixed)
	assert.Equal(t, strings.Repeat("b", 78), got)
	assert.True(t, utf8.ValidString(got))
}
