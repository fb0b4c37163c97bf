// Package firmware holds the in-memory representation of an intended flash
// image: an ordered, per-region, possibly-sparse set of byte runs. Firmware
// values are produced by the intelhex package or built programmatically, and
// are treated as immutable once handed to a programmer.
package firmware

import (
	"github.com/pkg/errors"

	"github.com/effective-range/picicsp/region"
)

// ErrOutOfBounds is returned when an element would fall outside its region.
var ErrOutOfBounds = errors.New("firmware: address out of bounds for region")

// ErrOverlapping is returned when an element would overwrite already
// written bytes of the same region image.
var ErrOverlapping = errors.New("firmware: overlapping element")

// Element is a contiguous run of bytes starting at BaseAddr. Multi-byte
// words are always stored little-endian, regardless of source file
// endianness.
type Element struct {
	BaseAddr uint32
	Bytes    []byte
}

// End returns the address one past the element's last byte.
func (e Element) End() uint32 { return e.BaseAddr + uint32(len(e.Bytes)) }

// RegionImage is one contiguous programming session against a single
// Region: its descriptor, base address, and the ordered, non-overlapping
// elements written into it.
type RegionImage struct {
	Region   region.Region
	BaseAddr uint32
	Elements []Element
}

func newRegionImage(r region.Region) *RegionImage {
	return &RegionImage{Region: r, BaseAddr: r.Start}
}

// AddElement appends addr/data to the image, coalescing it into the
// preceding element when addr is immediately contiguous. addr and
// addr+len(data) must lie within the image's region.
func (ri *RegionImage) AddElement(addr uint32, data []byte) error {
	if addr < ri.Region.Start || addr+uint32(len(data)) > ri.Region.End {
		return errors.Wrapf(ErrOutOfBounds, "%#06x..%#06x not within %s", addr, addr+uint32(len(data)), ri.Region.Name)
	}
	if n := len(ri.Elements); n > 0 {
		last := &ri.Elements[n-1]
		if addr < last.End() {
			return errors.Wrapf(ErrOverlapping, "address %#06x precedes end of prior element %#06x", addr, last.End())
		}
		if addr == last.End() {
			last.Bytes = append(last.Bytes, data...)
			return nil
		}
	}
	ri.Elements = append(ri.Elements, Element{BaseAddr: addr, Bytes: append([]byte(nil), data...)})
	return nil
}

// TotalBytes returns the sum of every element's byte length.
func (ri *RegionImage) TotalBytes() int {
	n := 0
	for _, e := range ri.Elements {
		n += len(e.Bytes)
	}
	return n
}

// Firmware is an ordered sequence of RegionImages.
type Firmware struct {
	Images []*RegionImage
}

// New returns an empty Firmware.
func New() *Firmware {
	return &Firmware{}
}

// OpenRegion appends and returns a fresh, empty RegionImage for r. Firmware
// may hold more than one image for the same region name, mirroring the HEX
// decoder's behaviour of opening a new image at every extended-linear-address
// record.
func (f *Firmware) OpenRegion(r region.Region) *RegionImage {
	ri := newRegionImage(r)
	f.Images = append(f.Images, ri)
	return ri
}

// ImagesByName returns every RegionImage whose Region.Name matches name, in
// encounter order.
func (f *Firmware) ImagesByName(name region.Name) []*RegionImage {
	var out []*RegionImage
	for _, ri := range f.Images {
		if ri.Region.Name == name {
			out = append(out, ri)
		}
	}
	return out
}

// NameUnion returns the bitwise union of every distinct region name present
// in the firmware.
func (f *Firmware) NameUnion() region.Name {
	var u region.Name
	for _, ri := range f.Images {
		u |= ri.Region.Name
	}
	return u
}
