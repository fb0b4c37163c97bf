package dump_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/effective-range/picicsp/dump"
	"github.com/effective-range/picicsp/firmware"
	"github.com/effective-range/picicsp/region"
)

func TestRegionRendersBannerAndLine(t *testing.T) {
	r, err := region.PIC18FQ20.ByName(region.EEPROM)
	require.NoError(t, err)

	ri := &firmware.RegionImage{Region: r, BaseAddr: r.Start}
	require.NoError(t, ri.AddElement(0x380000, []byte("Hello, W")))

	var buf strings.Builder
	w := dump.New(&buf, false)
	require.NoError(t, w.Region(ri))

	out := buf.String()
	assert.Contains(t, out, "Region name:EEPROM")
	assert.Contains(t, out, "0x380000 |")
	assert.Contains(t, out, "48 65 6c 6c 6f 2c 20 57")
	assert.Contains(t, out, "Hello, W")
}

func TestLinePadsShortTrailingRow(t *testing.T) {
	r, err := region.PIC18FQ20.ByName(region.CONFIG)
	require.NoError(t, err)

	ri := &firmware.RegionImage{Region: r, BaseAddr: r.Start}
	require.NoError(t, ri.AddElement(r.Start, []byte{0x01, 0x02, 0x03}))

	var buf strings.Builder
	require.NoError(t, dump.New(&buf, false).Region(ri))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "01 02 03")
	assert.True(t, strings.HasSuffix(lines[1], "|"))
}
