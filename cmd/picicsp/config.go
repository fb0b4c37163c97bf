package main

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/effective-range/picicsp/icsp"
)

// pinProfile is the YAML-configurable board wiring: which chip and line
// offsets the CLK/DATA/MCLR/PROG_EN signals sit on. ProgEn is a pointer so
// boards without an enable buffer can omit it entirely.
type pinProfile struct {
	Chip   string `yaml:"chip"`
	CLK    int    `yaml:"clk"`
	Data   int    `yaml:"data"`
	MCLR   int    `yaml:"mclr"`
	ProgEn *int   `yaml:"prog_en,omitempty"`
}

func (p pinProfile) pins() icsp.Pins {
	return icsp.Pins{CLK: p.CLK, DATA: p.Data, MCLR: p.MCLR, ProgEn: p.ProgEn}
}

func loadPinProfile(path string) (pinProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pinProfile{}, errors.Wrapf(err, "read profile %s", path)
	}
	var p pinProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return pinProfile{}, errors.Wrapf(err, "parse profile %s", path)
	}
	if p.Chip == "" {
		p.Chip = "/dev/gpiochip0"
	}
	return p, nil
}
