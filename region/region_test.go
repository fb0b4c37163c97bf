package region

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameString(t *testing.T) {
	assert.Equal(t, "PROGRAM", PROGRAM.String())
	assert.Equal(t, "PROGRAM|CONFIG", (PROGRAM | CONFIG).String())
	assert.Equal(t, "NONE", Name(0).String())
}

func TestNameHas(t *testing.T) {
	union := PROGRAM | CONFIG
	assert.True(t, union.Has(PROGRAM))
	assert.True(t, union.Has(CONFIG))
	assert.False(t, union.Has(EEPROM))
	assert.True(t, union.Has(PROGRAM|CONFIG))
}

func TestParseName(t *testing.T) {
	n, err := ParseName("CONFIG")
	require.NoError(t, err)
	assert.Equal(t, CONFIG, n)

	_, err = ParseName("BOGUS")
	require.Error(t, err)
}

func TestParseNames(t *testing.T) {
	n, err := ParseNames("PROGRAM|CONFIG")
	require.NoError(t, err)
	assert.Equal(t, PROGRAM|CONFIG, n)

	n, err = ParseNames("")
	require.NoError(t, err)
	assert.Equal(t, Name(0), n)

	_, err = ParseNames("PROGRAM|BOGUS")
	require.Error(t, err)
}

func TestRegionValidate(t *testing.T) {
	cases := []struct {
		name    string
		region  Region
		wantErr bool
	}{
		{"valid", Region{Name: PROGRAM, Start: 0, End: 0x10000, WordSize: 2}, false},
		{"start>=end", Region{Name: PROGRAM, Start: 0x10000, End: 0x10000, WordSize: 2}, true},
		{"bad word size", Region{Name: PROGRAM, Start: 0, End: 0x10000, WordSize: 3}, true},
		{"size not multiple of word size", Region{Name: PROGRAM, Start: 0, End: 5, WordSize: 2}, true},
		{"start not aligned", Region{Name: PROGRAM, Start: 1, End: 5, WordSize: 2}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.region.validate()
			if c.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestRegionRelAddr(t *testing.T) {
	r := Region{Name: EEPROM, Start: 0x380000, End: 0x380100, WordSize: 1}
	rel, err := r.RelAddr(0x380010)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x10), rel)

	_, err = r.RelAddr(0x380100)
	require.Error(t, err)
}

func TestRegionString(t *testing.T) {
	r := Region{Name: PROGRAM, Start: 0, End: 0x10000, WordSize: 2}
	assert.Equal(t, "Region name:PROGRAM address:[000000h,010000h)  word size: 2", r.String())
}

func TestPIC18FQ20Map(t *testing.T) {
	r, err := PIC18FQ20.ByName(EEPROM)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x380000), r.Start)
	assert.Equal(t, uint32(0x380100), r.End)
	assert.Equal(t, 11*time.Millisecond, r.ProgDelay)
	assert.True(t, r.Writable)
	assert.True(t, r.AutoIncrement)

	r, err = PIC18FQ20.ByName(CONFIG)
	require.NoError(t, err)
	assert.False(t, r.AutoIncrement)

	found, err := PIC18FQ20.Lookup(0x3FFFFD)
	require.NoError(t, err)
	assert.Equal(t, ID, found.Name)

	_, err = PIC18FQ20.Lookup(0x100000)
	require.Error(t, err)
}

func TestNewMapRejectsOverlap(t *testing.T) {
	_, err := NewMap(
		Region{Name: PROGRAM, Start: 0, End: 0x100, WordSize: 1},
		Region{Name: USER, Start: 0x80, End: 0x200, WordSize: 1},
	)
	require.Error(t, err)
}

func TestNewMapRejectsDuplicateName(t *testing.T) {
	_, err := NewMap(
		Region{Name: PROGRAM, Start: 0, End: 0x100, WordSize: 1},
		Region{Name: PROGRAM, Start: 0x100, End: 0x200, WordSize: 1},
	)
	require.Error(t, err)
}

func TestNewMapRejectsOutOfOrder(t *testing.T) {
	_, err := NewMap(
		Region{Name: USER, Start: 0x100, End: 0x200, WordSize: 1},
		Region{Name: PROGRAM, Start: 0, End: 0x100, WordSize: 1},
	)
	require.Error(t, err)
}
