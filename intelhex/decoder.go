// Package intelhex implements the Intel HEX subset used to ship PIC18F-Q20
// firmware images: a line-oriented stream of DATA, EXTENDED_LINEAR_ADDRESS
// and EOF records that Decode lifts into a region-aware firmware.Firmware,
// and Encode lowers back into a stream.
package intelhex

import (
	"bufio"
	"encoding/hex"
	"io"
	"regexp"

	"github.com/pkg/errors"

	"github.com/effective-range/picicsp/firmware"
	"github.com/effective-range/picicsp/region"
)

const (
	recordData          = 0x00
	recordEOF           = 0x01
	recordExtLinearAddr = 0x04
)

var lineHexPattern = regexp.MustCompile(`^:[0-9A-F]+$`)

// Decoder reads an Intel HEX stream and assembles a firmware.Firmware
// against a region.Map.
type Decoder struct {
	// BigEndian selects per-word byte-swapping on ingest for any region
	// whose WordSize is greater than 1. Firmware is always stored
	// little-endian internally; this flag only affects how multi-byte
	// source bytes are interpreted.
	BigEndian bool

	r       *bufio.Scanner
	regions *region.Map
}

// NewDecoder returns a Decoder that will resolve DATA record addresses
// against regions.
func NewDecoder(r io.Reader, regions *region.Map) *Decoder {
	return &Decoder{r: bufio.NewScanner(r), regions: regions}
}

// Decode consumes the entire stream and returns the assembled firmware.
func (d *Decoder) Decode() (*firmware.Firmware, error) {
	fw := firmware.New()

	var (
		baseAddr  uint32
		cur       *firmware.RegionImage
		fresh     = true
		sawEOF    bool
		lineNum   int
	)

	for d.r.Scan() {
		lineNum++
		line := d.r.Text()
		if line == "" {
			continue
		}

		length, addr, rtype, payload, err := parseLine(line)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNum)
		}
		_ = length

		switch rtype {
		case recordEOF:
			sawEOF = true

		case recordExtLinearAddr:
			if len(payload) != 2 {
				return nil, errors.Wrapf(ErrInvalidLine, "line %d: extended linear address payload must be 2 bytes", lineNum)
			}
			baseAddr = uint32(payload[0])<<24 | uint32(payload[1])<<16
			fresh = true

		case recordData:
			linear := baseAddr + uint32(addr)
			if fresh {
				r, lerr := d.regions.Lookup(linear)
				if lerr != nil {
					return nil, errors.Wrapf(ErrOutOfBounds, "line %d: address %#06x", lineNum, linear)
				}
				cur = fw.OpenRegion(r)
				fresh = false
			}
			converted := convertEndianness(payload, cur.Region.WordSize, d.BigEndian)
			if err := cur.AddElement(linear, converted); err != nil {
				if errors.Is(err, firmware.ErrOutOfBounds) {
					err = ErrOutOfBounds
				}
				return nil, errors.Wrapf(err, "line %d", lineNum)
			}

		default:
			return nil, errors.Wrapf(ErrUnknownRecordType, "line %d: type %#02x", lineNum, rtype)
		}

		if sawEOF {
			break
		}
	}
	if err := d.r.Err(); err != nil {
		return nil, err
	}
	if !sawEOF {
		return nil, ErrTruncatedFile
	}
	return fw, nil
}

// Decode is a convenience wrapper around NewDecoder(r, regions).Decode().
func Decode(r io.Reader, regions *region.Map) (*firmware.Firmware, error) {
	return NewDecoder(r, regions).Decode()
}

// parseLine decodes one Intel HEX line (sans terminator) into its fields.
func parseLine(line string) (length int, addr uint16, rtype byte, payload []byte, err error) {
	if len(line) == 0 || line[0] != ':' {
		return 0, 0, 0, nil, errors.Wrap(ErrInvalidLine, "missing leading ':'")
	}
	if !lineHexPattern.MatchString(line) {
		return 0, 0, 0, nil, errors.Wrap(ErrInvalidLine, "not uppercase hex")
	}

	raw, derr := hex.DecodeString(line[1:])
	if derr != nil || len(raw) < 5 {
		return 0, 0, 0, nil, errors.Wrap(ErrInvalidLine, "malformed record")
	}

	length = int(raw[0])
	addr = uint16(raw[1])<<8 | uint16(raw[2])
	rtype = raw[3]

	if len(raw) != 5+length {
		return 0, 0, 0, nil, errors.Wrapf(ErrInvalidLine, "length field %d does not match payload", length)
	}
	payload = raw[4 : 4+length]
	checksum := raw[4+length]

	sum := byte(0)
	for _, b := range raw[:len(raw)-1] {
		sum += b
	}
	if byte(sum+checksum) != 0 {
		return 0, 0, 0, nil, errors.Wrap(ErrBadChecksum, line)
	}

	return length, addr, rtype, payload, nil
}

// convertEndianness reverses each word-sized chunk of payload when
// bigEndian is set and wordSize > 1, leaving little-endian payloads
// (wordSize == 1, or bigEndian == false) untouched.
func convertEndianness(payload []byte, wordSize uint32, bigEndian bool) []byte {
	if !bigEndian || wordSize <= 1 {
		return append([]byte(nil), payload...)
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	for i := 0; i+int(wordSize) <= len(out); i += int(wordSize) {
		chunk := out[i : i+int(wordSize)]
		for l, h := 0, len(chunk)-1; l < h; l, h = l+1, h-1 {
			chunk[l], chunk[h] = chunk[h], chunk[l]
		}
	}
	return out
}
