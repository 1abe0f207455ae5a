package validator

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/moffa90/go-daplink/image"
	"github.com/moffa90/go-daplink/protocol"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Plan is a list of scenarios read from YAML.
//
// Example:
//
//	scenarios:
//	  - name: Load interface
//	    file: build/interface.hex
//	    mode: bootloader
//	    expected_mode: interface
//	    expect:
//	      success:
//	        check: crc
//	  - name: Load with flushes
//	    file: build/app.bin
//	    strategy: chunked
//	    flush_size: 4096
//	    delay: 50ms
//	    expect:
//	      success:
//	        start: 0x00000000
type Plan struct {
	Scenarios []PlanScenario `yaml:"scenarios"`
}

// PlanScenario is the YAML form of a Scenario.
type PlanScenario struct {
	Name string `yaml:"name"`

	// File is the host file sent to the device
	File string `yaml:"file"`

	// Target is the file name on the drive, for every strategy. Default is
	// the base name of File.
	Target string `yaml:"target"`

	// Strategy is one of write, copy or chunked. Default is write.
	Strategy  string        `yaml:"strategy"`
	FlushSize int           `yaml:"flush_size"`
	Delay     time.Duration `yaml:"delay"`

	Mode         string `yaml:"mode"`
	ExpectedMode string `yaml:"expected_mode"`

	// Mocks adds the standard mock files around the transfer
	Mocks bool `yaml:"mocks"`

	Expect PlanExpect `yaml:"expect"`
}

// PlanExpect holds exactly one of Success or Failure.
type PlanExpect struct {
	Success *PlanSuccess `yaml:"success"`
	Failure *Failure     `yaml:"failure"`
}

// PlanSuccess is the YAML form of Success.
type PlanSuccess struct {
	// Data is a host file with the expected content. Default is the
	// decoded scenario file.
	Data string `yaml:"data"`

	// Start overrides the address of the expected content
	Start *uint32 `yaml:"start"`

	// Check is memory or crc. Default is memory.
	Check string `yaml:"check"`

	// CRCKey is the details key of a crc check
	CRCKey string `yaml:"crc_key"`
}

// LoadPlan decodes a plan. Unknown keys are rejected.
func LoadPlan(r io.Reader) (*Plan, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var p Plan
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return &p, nil
		}
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	return &p, nil
}

// LoadPlanFile decodes the plan at path.
func LoadPlanFile(fs afero.Fs, path string) (*Plan, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadPlan(f)
}

// Build resolves the plan files on fs and returns the scenarios.
func (p *Plan) Build(fs afero.Fs) ([]Scenario, error) {
	scenarios := make([]Scenario, 0, len(p.Scenarios))
	for i, ps := range p.Scenarios {
		sc, err := ps.build(fs)
		if err != nil {
			name := ps.Name
			if name == "" {
				name = fmt.Sprintf("#%d", i)
			}
			return nil, fmt.Errorf("scenario %s: %w", name, err)
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

func (ps PlanScenario) build(fs afero.Fs) (Scenario, error) {
	if ps.File == "" {
		return Scenario{}, errors.New("file is required")
	}
	data, err := afero.ReadFile(fs, ps.File)
	if err != nil {
		return Scenario{}, err
	}

	sc := Scenario{
		Name:     ps.Name,
		FileName: ps.Target,
	}
	if sc.Name == "" {
		sc.Name = filepath.Base(ps.File)
	}
	if sc.FileName == "" {
		sc.FileName = filepath.Base(ps.File)
	}

	switch ps.Strategy {
	case "", "write":
		sc.Source = data
		sc.Strategy = Write{}
	case "copy":
		sc.Strategy = Copy{Path: ps.File}
	case "chunked":
		if ps.FlushSize <= 0 {
			return Scenario{}, errors.New("chunked strategy needs a positive flush_size")
		}
		sc.Source = data
		sc.Strategy = Chunked{FlushSize: ps.FlushSize, Delay: ps.Delay}
	default:
		return Scenario{}, fmt.Errorf("unknown strategy %q", ps.Strategy)
	}

	if ps.Mode != "" {
		if sc.Mode, err = protocol.ParseMode(ps.Mode); err != nil {
			return Scenario{}, err
		}
	}
	if ps.ExpectedMode != "" {
		if sc.ExpectedMode, err = protocol.ParseMode(ps.ExpectedMode); err != nil {
			return Scenario{}, err
		}
	}

	if ps.Mocks {
		sc.MockDirs, sc.MockFiles = MockDirs, MockFiles
		sc.MockDirsAfter, sc.MockFilesAfter = MockDirsAfter, MockFilesAfter
	}

	switch e := ps.Expect; {
	case e.Success != nil && e.Failure != nil:
		return Scenario{}, errors.New("expect has both success and failure")
	case e.Failure != nil:
		sc.Expect = *e.Failure
	case e.Success != nil:
		s, err := e.Success.build(fs, ps.File, data)
		if err != nil {
			return Scenario{}, err
		}
		sc.Expect = s
	}
	return sc, nil
}

func (ps *PlanSuccess) build(fs afero.Fs, file string, content []byte) (Success, error) {
	var s Success
	switch ps.Check {
	case "", "memory":
		s.Check = CheckMemory{}
	case "crc":
		s.Check = CheckCRC{Key: ps.CRCKey}
	default:
		return s, fmt.Errorf("unknown check %q", ps.Check)
	}

	if ps.Data != "" {
		file = ps.Data
		var err error
		if content, err = afero.ReadFile(fs, file); err != nil {
			return s, err
		}
	}
	img, err := image.ParseReader(bytes.NewReader(content), image.FormatFromPath(file), 0)
	if err != nil {
		return s, fmt.Errorf("expected data: %w", err)
	}
	s.Data, s.Start = img.Data, img.Start
	if ps.Start != nil {
		s.Start = *ps.Start
	}
	return s, nil
}
