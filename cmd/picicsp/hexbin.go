package main

import (
	"os"

	"github.com/marcinbor85/gohex"
	"github.com/pkg/errors"
)

// hexToBin and binToHex are flat, region-unaware conversions between Intel
// HEX and raw binary, offered as a convenience alongside the region-aware
// programming workflow: a flat binary has no region boundaries to respect,
// so gohex's plain Memory model fits it better than the intelhex package's
// region-validating decoder.

func hexToBin(inPath, outPath string) error {
	in, err := os.Open(inPath)
	if err != nil {
		return errors.Wrap(err, "open hex file")
	}
	defer in.Close()

	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(in); err != nil {
		return errors.Wrap(err, "parse hex file")
	}

	segments := mem.GetDataSegments()
	if len(segments) == 0 {
		return errors.New("hex file has no data")
	}

	start := segments[0].Address
	end := start
	for _, s := range segments {
		if e := s.Address + uint32(len(s.Data)); e > end {
			end = e
		}
	}

	buf := make([]byte, end-start)
	for i := range buf {
		buf[i] = 0xFF
	}
	for _, s := range segments {
		copy(buf[s.Address-start:], s.Data)
	}

	return os.WriteFile(outPath, buf, 0644)
}

func binToHex(inPath, outPath string, baseAddr uint32) error {
	data, err := os.ReadFile(inPath)
	if err != nil {
		return errors.Wrap(err, "read binary file")
	}

	mem := gohex.NewMemory()
	mem.AddBinary(baseAddr, data)

	out, err := os.Create(outPath)
	if err != nil {
		return errors.Wrap(err, "create hex file")
	}
	defer out.Close()

	return mem.DumpIntelHex(out, 16)
}
