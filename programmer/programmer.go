// Package programmer builds the device-level read/program/verify workflows
// on top of the icsp package's wire primitives: device identification, the
// device characteristics areas (DCI/DIA), and whole-firmware program+verify
// against a bulk erase.
package programmer

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/effective-range/picicsp/firmware"
	"github.com/effective-range/picicsp/icsp"
	"github.com/effective-range/picicsp/intelhex"
	"github.com/effective-range/picicsp/internal/pkglog"
	"github.com/effective-range/picicsp/region"
)

// Programmer wraps an active icsp.Session with the region-aware, device-
// specific operations: reading identification and characterization data,
// and programming a Firmware image with bulk erase and verify.
type Programmer struct {
	session *icsp.Session
	regions *region.Map
}

// New returns a Programmer driving sess against regions. sess must already
// be in an active programming session.
func New(sess *icsp.Session, regions *region.Map) *Programmer {
	return &Programmer{session: sess, regions: regions}
}

func (p *Programmer) log() pkglog.Logger { return pkglog.Get() }

// deviceModels maps the 16-bit device ID word to the marketing part number,
// per the PIC18F-Q20 family's device ID table.
var deviceModels = map[uint16]string{
	0x7ae0: "PIC18F04Q20",
	0x7AA0: "PIC18F05Q20",
	0x7A60: "PIC18F06Q20",
	0x7AC0: "PIC18F14Q20",
	0x7A80: "PIC18F15Q20",
	0x7A40: "PIC18F16Q20",
}

// DeviceID identifies the silicon and its revision.
type DeviceID struct {
	DeviceID   uint16
	RevisionID uint16
}

// Model returns the part number for d.DeviceID, or "Unknown" if unrecognized.
func (d DeviceID) Model() string {
	if m, ok := deviceModels[d.DeviceID]; ok {
		return m
	}
	return "Unknown"
}

// Revision renders the revision ID as a letter-major, decimal-minor silicon
// revision, e.g. "A3": major is bits [11:6], minor is bits [5:0].
func (d DeviceID) Revision() string {
	major := (d.RevisionID & 0xFC0) >> 6
	minor := d.RevisionID & 0x3F
	return fmt.Sprintf("%c%d", 'A'+byte(major), minor)
}

func (d DeviceID) String() string {
	return fmt.Sprintf("%s rev %s (id %#04x)", d.Model(), d.Revision(), d.DeviceID)
}

// ReadDeviceID reads the ID region and decodes the device and revision
// words. The region stores revisionId at offset 0 and deviceId at offset 2,
// both little-endian.
func (p *Programmer) ReadDeviceID() (DeviceID, error) {
	r, err := p.regions.ByName(region.ID)
	if err != nil {
		return DeviceID{}, err
	}
	data, err := p.session.Engine().ReadN(p.regions, r.Start, 4, nil)
	if err != nil {
		return DeviceID{}, errors.Wrap(err, "programmer: read device id")
	}
	id := DeviceID{
		RevisionID: le16(data, 0),
		DeviceID:   le16(data, 2),
	}
	p.log().Debugf("programmer: device id %s", id)
	return id, nil
}

// DCI carries the device characteristics the target reports over ICSP:
// flash erase granularity, EEPROM size and pin count.
type DCI struct {
	ErasePageSize    uint16
	NumErasablePages uint16
	EEPROMSize       uint16
	PinCount         uint16
}

// ReadDCI reads and decodes the DCI region.
func (p *Programmer) ReadDCI() (DCI, error) {
	r, err := p.regions.ByName(region.DCI)
	if err != nil {
		return DCI{}, err
	}
	data, err := p.session.Engine().ReadN(p.regions, r.Start, int(r.Size()), nil)
	if err != nil {
		return DCI{}, errors.Wrap(err, "programmer: read dci")
	}
	return DCI{
		ErasePageSize:    le16(data, 0),
		NumErasablePages: le16(data, 4),
		EEPROMSize:       le16(data, 6),
		PinCount:         le16(data, 8),
	}, nil
}

// TempCoeffs is one of the DIA's two temperature-indicator coefficient
// triples, used to convert a raw ADC reading into degrees.
type TempCoeffs struct {
	Gain   uint16
	ADC90  uint16
	Offset uint16
}

// GainVal returns the gain coefficient as the floating-point multiplier the
// datasheet's temperature formula expects.
func (t TempCoeffs) GainVal() float64 { return 256 * 0.1 / float64(t.Gain) }

// DIA is the Device Information Area: factory-programmed identification and
// calibration data read back, never written.
type DIA struct {
	MchpUID          [9]uint16
	ExtUID           [8]uint16
	LowTempCoeffs    TempCoeffs
	HighTempCoeffs   TempCoeffs
	FixedVoltageRef  [3]uint16
	FixedVoltageComp [3]uint16
}

// ReadDIA reads and decodes the DIA region.
func (p *Programmer) ReadDIA() (DIA, error) {
	r, err := p.regions.ByName(region.DIA)
	if err != nil {
		return DIA{}, err
	}
	data, err := p.session.Engine().ReadN(p.regions, r.Start, int(r.Size()), nil)
	if err != nil {
		return DIA{}, errors.Wrap(err, "programmer: read dia")
	}

	var dia DIA
	for i := range dia.MchpUID {
		dia.MchpUID[i] = le16(data, i*2)
	}
	for i := range dia.ExtUID {
		dia.ExtUID[i] = le16(data, 20+i*2)
	}
	dia.LowTempCoeffs = TempCoeffs{Gain: le16(data, 36), ADC90: le16(data, 38), Offset: le16(data, 40)}
	dia.HighTempCoeffs = TempCoeffs{Gain: le16(data, 42), ADC90: le16(data, 44), Offset: le16(data, 46)}
	for i := range dia.FixedVoltageRef {
		dia.FixedVoltageRef[i] = le16(data, 48+i*2)
	}
	for i := range dia.FixedVoltageComp {
		dia.FixedVoltageComp[i] = le16(data, 54+i*2)
	}
	return dia, nil
}

// readOnlyRegions is the set of region names a Firmware must never target
// for programming: they are read-only device data, not flash.
const readOnlyRegions = region.DIA | region.DCI | region.ID

// ProgramVerify bulk-erases the union of fw's region names and extraErase,
// then writes and verifies every element of fw, region by region, in the
// fixed order PROGRAM, EEPROM, USER, CONFIG — mirroring the source
// implementation's program_verify, which never reorders by file order.
// It fails with icsp.ErrNotWritable if fw targets DIA, DCI or ID.
func (p *Programmer) ProgramVerify(fw *firmware.Firmware, extraErase region.Name, progress icsp.ProgressFunc) error {
	for _, ri := range fw.Images {
		if ri.Region.Name&readOnlyRegions != 0 {
			return errors.Wrapf(icsp.ErrNotWritable, "firmware targets read-only region %s", ri.Region.Name)
		}
	}

	mask := fw.NameUnion() | extraErase
	p.log().Infof("programmer: bulk erase %s", mask)
	if err := p.session.Engine().BulkErase(mask); err != nil {
		return errors.Wrap(err, "programmer: bulk erase")
	}

	order := []region.Name{region.PROGRAM, region.EEPROM, region.USER, region.CONFIG}
	for _, name := range order {
		for _, ri := range fw.ImagesByName(name) {
			for _, elem := range ri.Elements {
				p.log().Debugf("programmer: write_verify %s %#06x (%d bytes)", name, elem.BaseAddr, len(elem.Bytes))
				if err := p.session.Engine().WriteVerify(p.regions, elem.BaseAddr, elem.Bytes, progress); err != nil {
					return errors.Wrapf(err, "programmer: region %s element at %#06x", name, elem.BaseAddr)
				}
			}
		}
	}
	return nil
}

// DumpRegion reads an entire named region back into a RegionImage, for
// display or round-tripping through the intelhex encoder.
func (p *Programmer) DumpRegion(name region.Name) (*firmware.RegionImage, error) {
	r, err := p.regions.ByName(name)
	if err != nil {
		return nil, err
	}
	data, err := p.session.Engine().ReadN(p.regions, r.Start, int(r.Size()), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "programmer: dump %s", name)
	}
	ri := &firmware.RegionImage{Region: r, BaseAddr: r.Start}
	if err := ri.AddElement(r.Start, data); err != nil {
		return nil, err
	}
	return ri, nil
}

// ReadRegionToHex reads an entire named region back from the target and
// emits it as an Intel HEX stream to w — the inverse of programming: capture
// silicon state as a file that can be re-programmed later.
func (p *Programmer) ReadRegionToHex(name region.Name, w io.Writer) error {
	ri, err := p.DumpRegion(name)
	if err != nil {
		return err
	}
	fw := firmware.New()
	dst := fw.OpenRegion(ri.Region)
	for _, elem := range ri.Elements {
		if err := dst.AddElement(elem.BaseAddr, elem.Bytes); err != nil {
			return err
		}
	}
	return intelhex.NewEncoder(w).Encode(fw)
}

func le16(data []byte, offset int) uint16 {
	return uint16(data[offset]) | uint16(data[offset+1])<<8
}
