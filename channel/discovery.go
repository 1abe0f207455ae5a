package channel

import (
	"context"

	"github.com/spf13/afero"

	"github.com/moffa90/go-daplink/protocol"
)

// Endpoint is a device as listed by a Discovery.
type Endpoint struct {
	UniqueID   string
	SerialPort string

	// MountPoint is empty while the drive is not mounted
	MountPoint string
}

// Discovery lists attached DAPLink devices.
type Discovery interface {
	Endpoints(ctx context.Context) ([]Endpoint, error)
}

// Lookup returns the endpoint of the device with the same host id as
// uniqueID, or nil if it is not listed.
func Lookup(ctx context.Context, disc Discovery, uniqueID string) (*Endpoint, error) {
	eps, err := disc.Endpoints(ctx)
	if err != nil {
		return nil, err
	}
	hostID := protocol.HostID(uniqueID)
	for i := range eps {
		if protocol.HostID(eps[i].UniqueID) == hostID {
			return &eps[i], nil
		}
	}
	return nil, nil
}

// MountDiscovery lists a single device whose drive is mounted at a known
// path. The unique id is taken from DETAILS.TXT when the drive is present,
// since it changes between modes.
type MountDiscovery struct {
	fs         afero.Fs
	uniqueID   string
	serialPort string
	mountPoint string
}

// NewMountDiscovery returns a Discovery for the drive at mountPoint.
func NewMountDiscovery(fs afero.Fs, uniqueID, mountPoint string) *MountDiscovery {
	return &MountDiscovery{fs: fs, uniqueID: uniqueID, mountPoint: mountPoint}
}

// WithSerialPort sets the serial port reported for the device.
func (d *MountDiscovery) WithSerialPort(port string) *MountDiscovery {
	d.serialPort = port
	return d
}

// Endpoints implements Discovery. The device is always listed; its mount
// point is empty while the drive is absent.
func (d *MountDiscovery) Endpoints(ctx context.Context) ([]Endpoint, error) {
	ep := Endpoint{UniqueID: d.uniqueID, SerialPort: d.serialPort}
	if ok, _ := afero.DirExists(d.fs, d.mountPoint); !ok {
		return []Endpoint{ep}, nil
	}
	ep.MountPoint = d.mountPoint

	path, ok := findFile(d.fs, d.mountPoint, protocol.FileDetails)
	if !ok {
		return []Endpoint{ep}, nil
	}
	f, err := d.fs.Open(path)
	if err != nil {
		return []Endpoint{ep}, nil
	}
	defer f.Close()
	kvp, _, err := protocol.ParseKVP(f, protocol.FileDetails)
	if err == nil {
		if uid, ok := kvp[protocol.KeyUniqueID]; ok && protocol.HostID(uid) == protocol.HostID(d.uniqueID) {
			ep.UniqueID = uid
		}
	}
	return []Endpoint{ep}, nil
}
