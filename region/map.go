package region

import (
	"sort"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by Map lookups that cannot locate a region.
var ErrNotFound = errors.New("region: no matching region")

// Map is an ordered, non-overlapping collection of Regions.
type Map struct {
	regions []Region
}

// NewMap validates and builds a Map from regions. Regions must already be in
// ascending Start order, non-overlapping, and carry unique Names; NewMap does
// not sort them, matching the compile-time-ordered RegionMap of the source
// this package is modelled on.
func NewMap(regions ...Region) (*Map, error) {
	seen := make(map[Name]bool, len(regions))
	for i, r := range regions {
		if err := r.validate(); err != nil {
			return nil, err
		}
		if seen[r.Name] {
			return nil, errors.Errorf("region map: duplicate region name %s", r.Name)
		}
		seen[r.Name] = true
		if i > 0 && regions[i-1].End > r.Start {
			return nil, errors.Errorf("region map: %s [%#06x,%#06x) overlaps preceding %s [%#06x,%#06x)",
				r.Name, r.Start, r.End, regions[i-1].Name, regions[i-1].Start, regions[i-1].End)
		}
	}
	if !sort.SliceIsSorted(regions, func(i, j int) bool { return regions[i].Start < regions[j].Start }) {
		return nil, errors.New("region map: regions must be ordered by ascending start address")
	}
	m := &Map{regions: append([]Region(nil), regions...)}
	return m, nil
}

// MustNewMap is NewMap, panicking on error. Intended for package-level
// variable initialisation of well-known device maps.
func MustNewMap(regions ...Region) *Map {
	m, err := NewMap(regions...)
	if err != nil {
		panic(err)
	}
	return m
}

// Lookup returns the unique region containing addr, via binary search.
func (m *Map) Lookup(addr uint32) (Region, error) {
	i := sort.Search(len(m.regions), func(i int) bool { return m.regions[i].End > addr })
	if i < len(m.regions) && m.regions[i].Contains(addr) {
		return m.regions[i], nil
	}
	return Region{}, errors.Wrapf(ErrNotFound, "address %#06x", addr)
}

// ByName returns the first region with the exact given Name.
func (m *Map) ByName(name Name) (Region, error) {
	for _, r := range m.regions {
		if r.Name == name {
			return r, nil
		}
	}
	return Region{}, errors.Wrapf(ErrNotFound, "name %s", name)
}

// All returns the regions in ascending-address order. The slice is a copy.
func (m *Map) All() []Region {
	return append([]Region(nil), m.regions...)
}
