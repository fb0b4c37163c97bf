package intelhex

import (
	"fmt"
	"io"

	"github.com/effective-range/picicsp/firmware"
)

const maxLineBytes = 16

// Encoder writes Intel HEX records to an underlying writer.
type Encoder struct {
	w        io.Writer
	lastHigh uint32
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode emits every element of every region image in fw, followed by the
// terminating EOF record.
func (e *Encoder) Encode(fw *firmware.Firmware) error {
	for _, ri := range fw.Images {
		for _, el := range ri.Elements {
			if err := e.EmitElement(el.BaseAddr, el.Bytes); err != nil {
				return err
			}
		}
	}
	return e.Close()
}

// EmitElement writes one (baseAddr, bytes) pair: an EXTENDED_LINEAR_ADDRESS
// record when baseAddr's high 16 bits differ from the last one emitted (the
// implicit starting state is high word 0, so an element based below 0x10000
// needs no record up front), followed by 16-byte DATA records.
func (e *Encoder) EmitElement(baseAddr uint32, data []byte) error {
	high := baseAddr >> 16
	if high != e.lastHigh {
		if err := e.writeRecord(0, recordExtLinearAddr, []byte{byte(high >> 8), byte(high)}); err != nil {
			return err
		}
		e.lastHigh = high
	}

	addr := baseAddr & 0xFFFF
	for off := 0; off < len(data); off += maxLineBytes {
		end := off + maxLineBytes
		if end > len(data) {
			end = len(data)
		}
		chunk := data[off:end]
		if err := e.writeRecord(uint16(addr)+uint16(off), recordData, chunk); err != nil {
			return err
		}
	}
	return nil
}

// Close emits the terminating EOF record. Safe to call once, after the last
// EmitElement.
func (e *Encoder) Close() error {
	return e.writeRecord(0, recordEOF, nil)
}

func (e *Encoder) writeRecord(addr uint16, rtype byte, payload []byte) error {
	sum := byte(len(payload)) + byte(addr>>8) + byte(addr) + rtype
	for _, b := range payload {
		sum += b
	}
	checksum := byte(0x100 - int(sum)&0xFF)

	line := fmt.Sprintf(":%02X%04X%02X%s%02X\n", len(payload), addr, rtype, hexUpper(payload), checksum)
	_, err := io.WriteString(e.w, line)
	return err
}

func hexUpper(b []byte) string {
	const digits = "0123456789ABCDEF"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = digits[v>>4]
		out[i*2+1] = digits[v&0xF]
	}
	return string(out)
}
