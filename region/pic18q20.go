package region

import "time"

// PIC18FQ20 is the address-space partition of the PIC18F-Q20 family, per the
// device's programming specification.
var PIC18FQ20 = MustNewMap(
	Region{Name: PROGRAM, Start: 0x000000, End: 0x010000, WordSize: 2, ProgDelay: 75 * time.Microsecond, Writable: true, AutoIncrement: true},
	Region{Name: USER, Start: 0x200000, End: 0x200040, WordSize: 2, ProgDelay: 75 * time.Microsecond, Writable: true, AutoIncrement: true},
	Region{Name: DIA, Start: 0x2C0000, End: 0x2C0100, WordSize: 2, AutoIncrement: true},
	Region{Name: CONFIG, Start: 0x300000, End: 0x300020, WordSize: 1, ProgDelay: 11 * time.Millisecond, Writable: true, AutoIncrement: false},
	Region{Name: EEPROM, Start: 0x380000, End: 0x380100, WordSize: 1, ProgDelay: 11 * time.Millisecond, Writable: true, AutoIncrement: true},
	Region{Name: DCI, Start: 0x3C0000, End: 0x3C000A, WordSize: 2, AutoIncrement: true},
	Region{Name: ID, Start: 0x3FFFFC, End: 0x400000, WordSize: 2, AutoIncrement: true},
)
