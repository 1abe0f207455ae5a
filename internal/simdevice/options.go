package simdevice

import "github.com/moffa90/go-daplink/protocol"

// Region is a flash address range.
type Region struct {
	Start uint32
	Size  int
}

// End returns the first address after the region.
func (r Region) End() uint64 {
	return uint64(r.Start) + uint64(r.Size)
}

func (r Region) contains(addr uint32) bool {
	return addr >= r.Start && uint64(addr) < r.End()
}

// Config holds the simulated device configuration.
type Config struct {
	BoardID           uint16
	HostID            string
	HICID             string
	SerialPort        string
	GitSHA            string
	BootloaderVersion string
	InterfaceVersion  string

	// Mode is the mode the device starts in
	Mode protocol.Mode

	// Bootloader and Interface are the firmware regions. An update must
	// cover the whole region to be accepted.
	Bootloader Region
	Interface  Region

	// Target is the flash of the target MCU programmed in interface mode
	Target Region

	// BootloaderImage and InterfaceImage are the installed firmware
	BootloaderImage []byte
	InterfaceImage  []byte

	// DismountTicks is the number of discovery calls for which the drive
	// stays absent during a remount
	DismountTicks int

	// Files are published on the drive at every mount, by name
	Files map[string][]byte
}

func defaultConfig() Config {
	return Config{
		BoardID:           0x0240,
		HostID:            "32044e4500257009997b003867810000",
		HICID:             "97969900",
		SerialPort:        "/dev/ttyACM0",
		GitSHA:            "b403a07e3696cee1e116d44cbdd64446e056ce38",
		BootloaderVersion: "0244",
		InterfaceVersion:  "0254",
		Mode:              protocol.ModeInterface,
		Bootloader:        Region{Start: 0x08000000, Size: 0xC000},
		Interface:         Region{Start: 0x0800C000, Size: 0x34000},
		Target:            Region{Start: 0x00000000, Size: 0x40000},
		DismountTicks:     2,
	}
}

// Option is a functional option for configuring a Device.
type Option func(*Config)

// WithBoardID sets the board id reported in the unique id.
func WithBoardID(id uint16) Option {
	return func(c *Config) { c.BoardID = id }
}

// WithMode sets the initial mode.
func WithMode(mode protocol.Mode) Option {
	return func(c *Config) { c.Mode = mode }
}

// WithBootloader sets the bootloader region and installed image.
func WithBootloader(start uint32, img []byte) Option {
	return func(c *Config) {
		c.Bootloader = Region{Start: start, Size: len(img)}
		c.BootloaderImage = append([]byte(nil), img...)
	}
}

// WithInterface sets the interface region and installed image.
func WithInterface(start uint32, img []byte) Option {
	return func(c *Config) {
		c.Interface = Region{Start: start, Size: len(img)}
		c.InterfaceImage = append([]byte(nil), img...)
	}
}

// WithTarget sets the target flash region.
func WithTarget(start uint32, size int) Option {
	return func(c *Config) { c.Target = Region{Start: start, Size: size} }
}

// WithFile publishes an extra file on the drive at every mount.
func WithFile(name string, data []byte) Option {
	return func(c *Config) {
		if c.Files == nil {
			c.Files = make(map[string][]byte)
		}
		c.Files[name] = append([]byte(nil), data...)
	}
}

// WithDismountTicks sets how many discovery calls a remount lasts.
func WithDismountTicks(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.DismountTicks = n
		}
	}
}
