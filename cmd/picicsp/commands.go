package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"

	"github.com/effective-range/picicsp/dump"
	"github.com/effective-range/picicsp/gpio/linuxgpio"
	"github.com/effective-range/picicsp/icsp"
	"github.com/effective-range/picicsp/intelhex"
	"github.com/effective-range/picicsp/programmer"
	"github.com/effective-range/picicsp/region"
)

// openSession loads the pin profile named by the global --profile flag,
// opens the Linux GPIO chip it names, and enters an ICSP programming
// session. The caller must Close the returned session and Close the gpio.
func openSession() (*icsp.Session, *linuxgpio.GPIO, error) {
	profile, err := loadPinProfile(cli.Profile)
	if err != nil {
		return nil, nil, err
	}

	gp, err := linuxgpio.Open(profile.Chip)
	if err != nil {
		return nil, nil, err
	}

	eng := icsp.New(gp, profile.pins())
	sess, err := eng.EnterProgramming()
	if err != nil {
		gp.Close()
		return nil, nil, errors.Wrap(err, "enter programming mode")
	}
	return sess, gp, nil
}

type programCmd struct {
	File       string `arg:"" help:"Intel HEX firmware file to program."`
	EraseExtra string `optional:"" help:"Extra region names to bulk-erase beyond those present in the firmware (e.g. EEPROM)."`
}

func (c *programCmd) Run() error {
	sess, gp, err := openSession()
	if err != nil {
		return err
	}
	defer gp.Close()
	defer sess.Close()

	f, err := os.Open(c.File)
	if err != nil {
		return errors.Wrap(err, "open firmware file")
	}
	defer f.Close()

	fw, err := intelhex.Decode(f, region.PIC18FQ20)
	if err != nil {
		return errors.Wrap(err, "decode firmware file")
	}

	extra, err := region.ParseNames(c.EraseExtra)
	if err != nil {
		return err
	}

	prog := programmer.New(sess, region.PIC18FQ20)

	total := 0
	for _, ri := range fw.Images {
		total += ri.TotalBytes()
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("programming"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	progress := func(done, total int) { bar.Set(done) }

	if err := prog.ProgramVerify(fw, extra, progress); err != nil {
		return errors.Wrap(err, "program and verify")
	}
	fmt.Println("programmed and verified successfully")
	return nil
}

type dumpCmd struct {
	Region string `arg:"" help:"Region name to dump (PROGRAM, USER, DIA, CONFIG, EEPROM, DCI, ID)."`
	Color  bool   `optional:"" help:"Highlight non-erased bytes."`
}

func (c *dumpCmd) Run() error {
	sess, gp, err := openSession()
	if err != nil {
		return err
	}
	defer gp.Close()
	defer sess.Close()

	name, err := region.ParseName(c.Region)
	if err != nil {
		return err
	}

	prog := programmer.New(sess, region.PIC18FQ20)
	ri, err := prog.DumpRegion(name)
	if err != nil {
		return err
	}
	return dump.New(os.Stdout, c.Color).Region(ri)
}

type idCmd struct{}

func (c *idCmd) Run() error {
	sess, gp, err := openSession()
	if err != nil {
		return err
	}
	defer gp.Close()
	defer sess.Close()

	prog := programmer.New(sess, region.PIC18FQ20)
	id, err := prog.ReadDeviceID()
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

type diaCmd struct{}

func (c *diaCmd) Run() error {
	sess, gp, err := openSession()
	if err != nil {
		return err
	}
	defer gp.Close()
	defer sess.Close()

	prog := programmer.New(sess, region.PIC18FQ20)
	dia, err := prog.ReadDIA()
	if err != nil {
		return err
	}
	fmt.Printf("MCHP UID:    %04x\n", dia.MchpUID)
	fmt.Printf("Ext UID:     %04x\n", dia.ExtUID)
	fmt.Printf("Low temp:    gain=%d adc90=%d offset=%d (%.4f)\n",
		dia.LowTempCoeffs.Gain, dia.LowTempCoeffs.ADC90, dia.LowTempCoeffs.Offset, dia.LowTempCoeffs.GainVal())
	fmt.Printf("High temp:   gain=%d adc90=%d offset=%d (%.4f)\n",
		dia.HighTempCoeffs.Gain, dia.HighTempCoeffs.ADC90, dia.HighTempCoeffs.Offset, dia.HighTempCoeffs.GainVal())
	fmt.Printf("FVR ref:     %v\n", dia.FixedVoltageRef)
	fmt.Printf("FVR comp:    %v\n", dia.FixedVoltageComp)
	return nil
}

type dciCmd struct{}

func (c *dciCmd) Run() error {
	sess, gp, err := openSession()
	if err != nil {
		return err
	}
	defer gp.Close()
	defer sess.Close()

	prog := programmer.New(sess, region.PIC18FQ20)
	dci, err := prog.ReadDCI()
	if err != nil {
		return err
	}
	fmt.Printf("erase page size:    %d\n", dci.ErasePageSize)
	fmt.Printf("num erasable pages: %d\n", dci.NumErasablePages)
	fmt.Printf("eeprom size:        %d\n", dci.EEPROMSize)
	fmt.Printf("pin count:          %d\n", dci.PinCount)
	return nil
}

type eraseCmd struct {
	Regions string `arg:"" help:"'|'-separated region names to bulk-erase, e.g. PROGRAM|CONFIG."`
}

func (c *eraseCmd) Run() error {
	sess, gp, err := openSession()
	if err != nil {
		return err
	}
	defer gp.Close()
	defer sess.Close()

	names, err := region.ParseNames(c.Regions)
	if err != nil {
		return err
	}
	if err := sess.Engine().BulkErase(names); err != nil {
		return err
	}
	fmt.Println("erased", names)
	return nil
}

type hex2binCmd struct {
	In  string `arg:"" help:"Input Intel HEX file."`
	Out string `arg:"" help:"Output flat binary file."`
}

func (c *hex2binCmd) Run() error {
	return hexToBin(c.In, c.Out)
}

type bin2hexCmd struct {
	In   string `arg:"" help:"Input flat binary file."`
	Out  string `arg:"" help:"Output Intel HEX file."`
	Addr uint32 `optional:"" help:"Base address of the binary's first byte." default:"0"`
}

func (c *bin2hexCmd) Run() error {
	return binToHex(c.In, c.Out, c.Addr)
}
