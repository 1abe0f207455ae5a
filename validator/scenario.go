package validator

import (
	"fmt"
	"time"

	"github.com/moffa90/go-daplink/protocol"
)

// MockFile is a file created on the drive around a transfer.
type MockFile struct {
	Name     string `yaml:"name"`
	Contents string `yaml:"contents"`
}

// Files and directories a host typically leaves on the drive. They are
// written before the transfer and the After variants right after it, so
// the firmware has to cope with unrelated writes interleaved with an
// update.
var (
	MockDirs = []string{
		"test",
		"blarg",
		"very_long_directory_name",
		"very_long_directory_name/and_subdirectory_name",
	}

	MockFiles = []MockFile{
		{Name: ".test", Contents: "blarg"},
		{Name: "test/file1", Contents: "asdofahweaw"},
		{Name: "file.jpg", Contents: "file contents here"},
	}

	MockDirsAfter = []string{
		"test2",
		"blarg2",
		"very_long_directory_name2",
		"very_long_directory_name2/and_subdirectory_name",
	}

	MockFilesAfter = []MockFile{
		{Name: ".test2", Contents: "blarg"},
		{Name: "test2/file12", Contents: "asdofahweaw"},
		{Name: "file2.jpg", Contents: "file contents here"},
	}
)

// Scenario describes one update attempt and its expected outcome.
type Scenario struct {
	// Name identifies the scenario in reports
	Name string

	// Source is the file content written to the drive. Ignored by Copy.
	Source []byte

	// FileName is the name of the file on the drive. Copy defaults it to
	// the base name of the source.
	FileName string

	// Strategy selects how the file is written. Default is Write.
	Strategy Strategy

	MockDirs       []string
	MockFiles      []MockFile
	MockDirsAfter  []string
	MockFilesAfter []MockFile

	// Mode is the mode the device is switched to before the transfer.
	// Empty leaves the device in its current mode.
	Mode protocol.Mode

	// ExpectedMode is the mode the device must be in after the scenario.
	// Empty skips the check.
	ExpectedMode protocol.Mode

	// Expect is the expected outcome. Nil only checks that the device
	// did not report a failure.
	Expect Expect
}

// Expect is either Success or Failure.
type Expect interface {
	isExpect()
}

// Success expects the update to be accepted. When Data is set the update
// is verified with Check.
type Success struct {
	// Data is the expected content at Start
	Data []byte

	// Start is the address Data is expected at
	Start uint32

	// Check selects the verification. Default is CheckMemory.
	Check Check
}

// Failure expects the device to reject the update with a FAIL.TXT matching
// Message and Category.
type Failure struct {
	Message  string `yaml:"message"`
	Category string `yaml:"category"`
}

func (Success) isExpect() {}
func (Failure) isExpect() {}

// Check is either CheckMemory or CheckCRC.
type Check interface {
	isCheck()
}

// CheckMemory reads the target memory back through the MemoryReader.
type CheckMemory struct{}

// CheckCRC compares the CRC published in DETAILS.TXT with the CRC of the
// expected data.
type CheckCRC struct {
	// Key is the details key holding the CRC. Empty selects the key of the
	// firmware the scenario mode updates.
	Key string
}

func (CheckMemory) isCheck() {}
func (CheckCRC) isCheck()    {}

// Strategy is one of Copy, Write or Chunked.
type Strategy interface {
	fmt.Stringer
	isStrategy()
}

// Copy copies a host file to the drive under the scenario FileName, or
// under its base name when FileName is empty.
type Copy struct {
	Path string
}

// Write writes the whole source in one call.
type Write struct{}

// Chunked writes the source in FlushSize pieces, closing and reopening the
// file in append mode between pieces.
type Chunked struct {
	FlushSize int

	// Delay between two pieces. Zero uses the validator default.
	Delay time.Duration
}

func (Copy) isStrategy()    {}
func (Write) isStrategy()   {}
func (Chunked) isStrategy() {}

func (s Copy) String() string    { return "copy " + s.Path }
func (Write) String() string     { return "write" }
func (s Chunked) String() string { return fmt.Sprintf("chunked 0x%x", s.FlushSize) }
