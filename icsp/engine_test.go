package icsp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/effective-range/picicsp/gpio/mockgpio"
	"github.com/effective-range/picicsp/icsp"
	"github.com/effective-range/picicsp/region"
)

func newSession(t *testing.T, gpio icsp.GPIO) (*icsp.Engine, *icsp.Session) {
	t.Helper()
	progEn := 4
	eng := icsp.New(gpio, icsp.Pins{CLK: 0, DATA: 1, MCLR: 2, ProgEn: &progEn})
	sess, err := eng.EnterProgramming()
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, sess.Close()) })
	return eng, sess
}

func newMock() *mockgpio.GPIO {
	progEn := 4
	return mockgpio.New(mockgpio.Pins{CLK: 0, DATA: 1, MCLR: 2, ProgEn: &progEn}, region.PIC18FQ20)
}

func TestReadDeviceIDScenario(t *testing.T) {
	mock := newMock()
	mock.SetBytes(0x3FFFFC, []byte{0xDE, 0xAD, 0xBE, 0xEF})

	eng, _ := newSession(t, mock)
	data, err := eng.ReadN(region.PIC18FQ20, 0x3FFFFC, 4, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, data)
}

func TestWriteEEPROMScenario(t *testing.T) {
	mock := newMock()
	eng, _ := newSession(t, mock)

	require.NoError(t, eng.Write(region.PIC18FQ20, 0x380000, []byte{0xDE, 0xAD, 0xBE, 0xEF}, nil))

	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, mock.GetBytes(0x380000, 4))
	assert.Equal(t, byte(0xFF), mock.GetByte(0x380004))
}

func TestWriteVerifyPaddingScenario(t *testing.T) {
	mock := newMock()
	eng, _ := newSession(t, mock)

	require.NoError(t, eng.WriteVerify(region.PIC18FQ20, 0x1580, []byte{0xF0, 0x0B, 0x50}, nil))

	assert.Equal(t, []byte{0xF0, 0x0B, 0x50, 0xFF}, mock.GetBytes(0x1580, 4))
}

func TestBulkEraseScenario(t *testing.T) {
	mock := newMock()
	mock.SetBytes(0x000000, []byte{1, 2, 3, 4})
	mock.SetBytes(0x200000, []byte{5, 6, 7, 8})
	mock.SetBytes(0x380000, []byte{9, 10, 11, 12})
	mock.SetBytes(0x300000, []byte{13, 14, 15, 16})

	eng, _ := newSession(t, mock)
	require.NoError(t, eng.BulkErase(region.PROGRAM | region.CONFIG))

	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, mock.GetBytes(0x000000, 4))
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, mock.GetBytes(0x300000, 4))
	assert.Equal(t, []byte{5, 6, 7, 8}, mock.GetBytes(0x200000, 4))
	assert.Equal(t, []byte{9, 10, 11, 12}, mock.GetBytes(0x380000, 4))
}

func TestSessionReleaseLeavesPinsInIdleState(t *testing.T) {
	mock := newMock()
	progEn := 4
	eng := icsp.New(mock, icsp.Pins{CLK: 0, DATA: 1, MCLR: 2, ProgEn: &progEn})

	sess, err := eng.EnterProgramming()
	require.NoError(t, err)
	assert.Equal(t, "Programming", mock.TargetState())

	require.NoError(t, sess.Close())
	assert.Equal(t, 1, mock.MCLRLevel())
	assert.Equal(t, 0, mock.ProgEnLevel())
	assert.Equal(t, 0, mock.CLKLevel())
	assert.Equal(t, 0, mock.DATALevel())
	assert.Equal(t, "Idle", mock.TargetState())

	// Close is idempotent.
	require.NoError(t, sess.Close())
}

func TestInterruptedWriteStillReleasesSession(t *testing.T) {
	mock := newMock()
	progEn := 4
	eng := icsp.New(mock, icsp.Pins{CLK: 0, DATA: 1, MCLR: 2, ProgEn: &progEn})

	sess, err := eng.EnterProgramming()
	require.NoError(t, err)

	mock.Interrupt()
	_, err = eng.ReadN(region.PIC18FQ20, 0x3FFFFC, 2, nil)
	require.ErrorIs(t, err, icsp.ErrInterrupted)

	require.NoError(t, sess.Close())
	assert.Equal(t, 1, mock.MCLRLevel())
	assert.Equal(t, 0, mock.ProgEnLevel())
	assert.Equal(t, "Idle", mock.TargetState())
}

func TestVerifyMismatchReported(t *testing.T) {
	mock := newMock()
	// Simulate a stuck memory cell: every write to this byte lands as
	// 0x99 no matter what the host programs, so the readback inside
	// WriteVerify disagrees with what was just written.
	mock.StickByte(0x0000, 0x99)
	eng, _ := newSession(t, mock)

	err := eng.WriteVerify(region.PIC18FQ20, 0x0000, []byte{0x01, 0x02}, nil)
	var mismatch *icsp.VerifyMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, region.PROGRAM, mismatch.Region)
}

func TestReadNUnalignedAddress(t *testing.T) {
	mock := newMock()
	eng, _ := newSession(t, mock)

	_, err := eng.ReadN(region.PIC18FQ20, 0x000001, 2, nil)
	require.ErrorIs(t, err, icsp.ErrUnaligned)
}

func TestWriteRejectsNonWritableRegion(t *testing.T) {
	mock := newMock()
	eng, _ := newSession(t, mock)

	err := eng.Write(region.PIC18FQ20, 0x3FFFFC, []byte{0, 0}, nil)
	require.ErrorIs(t, err, icsp.ErrNotWritable)
}

func TestLoadPCRejectsOutOfRange(t *testing.T) {
	mock := newMock()
	eng, _ := newSession(t, mock)

	err := eng.LoadPC(0x400000)
	require.ErrorIs(t, err, icsp.ErrOutOfRange)
}
