package simdevice

import (
	"encoding/binary"

	"github.com/moffa90/go-daplink/image"
)

// Firmware returns a deterministic firmware image of size bytes linked at
// start: a vector table whose reset handler lies inside the image, a byte
// pattern, and a valid trailing CRC.
func Firmware(start uint32, size int) []byte {
	img := image.New(start, make([]byte, size))
	for i := range img.Data {
		img.Data[i] = byte(i*7 + 3)
	}
	binary.LittleEndian.PutUint32(img.Data[0:], 0x20001000)
	binary.LittleEndian.PutUint32(img.Data[4:], start+0x101)
	if _, err := img.SealCRC(); err != nil {
		panic(err)
	}
	return img.Data
}
