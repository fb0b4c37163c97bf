package icsp

// Opcodes of the ICSP command set.
const (
	opLoadPC    byte = 0x80
	opReadInc   byte = 0xFE
	opRead      byte = 0xFC
	opWriteInc  byte = 0xE0
	opWrite     byte = 0xC0
	opBulkErase byte = 0x18
	opIncPC     byte = 0xF8
)

// bulkEraseBit maps the BULK_ERASE payload's region select bits to the
// regions they erase: {0:EEPROM, 1:PROGRAM, 2:USER, 3:CONFIG}.
const (
	bulkEraseBitEEPROM  = 1 << 0
	bulkEraseBitPROGRAM = 1 << 1
	bulkEraseBitUSER    = 1 << 2
	bulkEraseBitCONFIG  = 1 << 3
)
