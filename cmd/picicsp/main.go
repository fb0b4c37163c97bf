// Command picicsp drives a PIC18F-Q20 over bit-banged ICSP from a Linux
// GPIO character device: programming and verifying firmware images,
// reading back device identification and characterization data, and
// dumping or converting firmware files.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	log "github.com/sirupsen/logrus"

	"github.com/effective-range/picicsp/internal/pkglog"
)

const appVersion = "0.1.0"

var cli struct {
	Version bool   `optional:"" help:"Print the program version and exit."`
	Verbose bool   `optional:"" short:"v" help:"Enable debug logging."`
	Profile string `optional:"" short:"p" default:"picicsp.yaml" help:"Pin profile YAML file."`

	Program programCmd `cmd:"" help:"Program and verify a firmware image."`
	Dump    dumpCmd    `cmd:"" help:"Read back and display a memory region."`
	ID      idCmd      `cmd:"" help:"Read and print the device ID and revision."`
	DIA     diaCmd     `cmd:"" help:"Read and print the Device Information Area."`
	DCI     dciCmd     `cmd:"" help:"Read and print the Device Configuration Information."`
	Erase   eraseCmd   `cmd:"" help:"Bulk erase one or more regions."`

	Hex2Bin hex2binCmd `cmd:"" name:"hex2bin" help:"Convert an Intel HEX file to flat binary."`
	Bin2Hex bin2hexCmd `cmd:"" name:"bin2hex" help:"Convert a flat binary file to Intel HEX."`
}

func main() {
	k := kong.Parse(&cli, kong.Name("picicsp"), kong.Description("PIC18F-Q20 ICSP programmer"))

	if cli.Version {
		fmt.Println(appVersion)
		return
	}

	if cli.Verbose {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.StandardLogger()
	pkglog.Set(logger)

	err := k.Run()
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}
