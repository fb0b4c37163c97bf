package programmer_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/effective-range/picicsp/firmware"
	"github.com/effective-range/picicsp/gpio/mockgpio"
	"github.com/effective-range/picicsp/icsp"
	"github.com/effective-range/picicsp/programmer"
	"github.com/effective-range/picicsp/region"
)

func newProgrammer(t *testing.T, mock *mockgpio.GPIO) *programmer.Programmer {
	t.Helper()
	progEn := 4
	eng := icsp.New(mock, icsp.Pins{CLK: 0, DATA: 1, MCLR: 2, ProgEn: &progEn})
	sess, err := eng.EnterProgramming()
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, sess.Close()) })
	return programmer.New(sess, region.PIC18FQ20)
}

func newMock() *mockgpio.GPIO {
	progEn := 4
	return mockgpio.New(mockgpio.Pins{CLK: 0, DATA: 1, MCLR: 2, ProgEn: &progEn}, region.PIC18FQ20)
}

func TestReadDeviceID(t *testing.T) {
	mock := newMock()
	// revisionId at offset 0 (0x00A3), deviceId at offset 2 (0x7A40 -> PIC18F16Q20).
	mock.SetBytes(0x3FFFFC, []byte{0xA3, 0x00, 0x40, 0x7A})

	p := newProgrammer(t, mock)
	id, err := p.ReadDeviceID()
	require.NoError(t, err)

	assert.Equal(t, uint16(0x7A40), id.DeviceID)
	assert.Equal(t, uint16(0x00A3), id.RevisionID)
	assert.Equal(t, "PIC18F16Q20", id.Model())
	assert.Equal(t, "C35", id.Revision())
}

func TestReadDeviceIDUnknownModel(t *testing.T) {
	mock := newMock()
	mock.SetBytes(0x3FFFFC, []byte{0x00, 0x00, 0xFF, 0xFF})

	p := newProgrammer(t, mock)
	id, err := p.ReadDeviceID()
	require.NoError(t, err)
	assert.Equal(t, "Unknown", id.Model())
}

func TestReadDCI(t *testing.T) {
	mock := newMock()
	mock.SetBytes(0x3C0000, []byte{
		0x00, 0x08, // erase page size = 0x0800
		0xFF, 0xFF, // reserved
		0x40, 0x00, // num erasable pages = 0x0040
		0x00, 0x01, // eeprom size = 0x0100
		0x28, 0x00, // pin count = 40
	})

	p := newProgrammer(t, mock)
	dci, err := p.ReadDCI()
	require.NoError(t, err)

	assert.Equal(t, uint16(0x0800), dci.ErasePageSize)
	assert.Equal(t, uint16(0x0040), dci.NumErasablePages)
	assert.Equal(t, uint16(0x0100), dci.EEPROMSize)
	assert.Equal(t, uint16(40), dci.PinCount)
}

func TestReadDIA(t *testing.T) {
	mock := newMock()
	var dia [60]byte
	for i := 0; i < 9; i++ {
		dia[i*2], dia[i*2+1] = byte(i), 0x10
	}
	for i := 0; i < 8; i++ {
		dia[20+i*2], dia[20+i*2+1] = byte(i), 0x20
	}
	// low temp coeffs at 36,38,40; high at 42,44,46.
	dia[36], dia[37] = 0x10, 0x00 // gain = 16
	dia[38], dia[39] = 0x34, 0x12
	dia[40], dia[41] = 0x78, 0x56
	dia[42], dia[43] = 0x20, 0x00 // gain = 32
	// fvr_ref at 48,50,52; fvr_comp at 54,56,58.
	dia[48], dia[49] = 0x01, 0x00
	dia[54], dia[55] = 0x02, 0x00
	mock.SetBytes(0x2C0000, dia[:])

	p := newProgrammer(t, mock)
	got, err := p.ReadDIA()
	require.NoError(t, err)

	assert.Equal(t, uint16(0x1000), got.MchpUID[0])
	assert.Equal(t, uint16(0x2000), got.ExtUID[0])
	assert.Equal(t, uint16(16), got.LowTempCoeffs.Gain)
	assert.InDelta(t, 256*0.1/16, got.LowTempCoeffs.GainVal(), 1e-9)
	assert.Equal(t, uint16(32), got.HighTempCoeffs.Gain)
	assert.Equal(t, uint16(1), got.FixedVoltageRef[0])
	assert.Equal(t, uint16(2), got.FixedVoltageComp[0])
}

func TestProgramVerifyWritesEveryRegionAfterBulkErase(t *testing.T) {
	mock := newMock()
	mock.SetBytes(0x000000, []byte{0xAA, 0xAA}) // stale PROGRAM content, should be erased

	fw := firmware.New()
	prog := fw.OpenRegion(mustRegion(t, region.PROGRAM))
	require.NoError(t, prog.AddElement(0x0000, []byte{0x01, 0x02}))
	user := fw.OpenRegion(mustRegion(t, region.USER))
	require.NoError(t, user.AddElement(0x200000, []byte{0x03, 0x04}))
	cfg := fw.OpenRegion(mustRegion(t, region.CONFIG))
	require.NoError(t, cfg.AddElement(0x300000, []byte{0x05}))

	p := newProgrammer(t, mock)
	require.NoError(t, p.ProgramVerify(fw, 0, nil))

	assert.Equal(t, []byte{0x01, 0x02}, mock.GetBytes(0x0000, 2))
	assert.Equal(t, []byte{0x03, 0x04}, mock.GetBytes(0x200000, 2))
	assert.Equal(t, byte(0x05), mock.GetByte(0x300000))
}

func TestProgramVerifyRejectsReadOnlyRegion(t *testing.T) {
	mock := newMock()
	fw := firmware.New()
	dia := fw.OpenRegion(mustRegion(t, region.DIA))
	require.NoError(t, dia.AddElement(0x2C0000, []byte{0x00, 0x00}))

	p := newProgrammer(t, mock)
	err := p.ProgramVerify(fw, 0, nil)
	require.ErrorIs(t, err, icsp.ErrNotWritable)
}

func TestDumpRegionRoundTrips(t *testing.T) {
	mock := newMock()
	mock.SetBytes(0x380000, []byte{0x11, 0x22, 0x33})

	p := newProgrammer(t, mock)
	ri, err := p.DumpRegion(region.EEPROM)
	require.NoError(t, err)
	require.Len(t, ri.Elements, 1)
	assert.Equal(t, byte(0x11), ri.Elements[0].Bytes[0])
	assert.Equal(t, byte(0x22), ri.Elements[0].Bytes[1])
	assert.Equal(t, byte(0x33), ri.Elements[0].Bytes[2])
}

func TestReadRegionToHexEmitsData(t *testing.T) {
	mock := newMock()
	mock.SetBytes(0x300000, []byte{0x18})

	p := newProgrammer(t, mock)
	var buf strings.Builder
	require.NoError(t, p.ReadRegionToHex(region.CONFIG, &buf))

	assert.Contains(t, buf.String(), ":020000040030CA\n")
	assert.Contains(t, buf.String(), ":10000000")
	assert.Contains(t, buf.String(), ":00000001FF")
}

func mustRegion(t *testing.T, name region.Name) region.Region {
	t.Helper()
	r, err := region.PIC18FQ20.ByName(name)
	require.NoError(t, err)
	return r
}
