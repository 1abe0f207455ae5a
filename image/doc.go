// Package image loads, encodes and checksums linked firmware images.
//
// # Image Model
//
// A linked image is a single contiguous byte range at an absolute address:
//
//	[Start, Start+len(Data))
//
// Images with more than one region are rejected when loading Intel HEX
// input. Raw binary input has no address information and is placed at a
// caller supplied offset.
//
// # File Formats
//
// Two formats are supported, selected by Format:
//
//	FormatHex    - Intel HEX (any extension other than .bin)
//	FormatBinary - raw binary (.bin)
//
// Example:
//
//	img, err := image.Parse("interface.hex")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("start=0x%08X end=0x%08X\n", img.Start, img.End())
//
// Load a binary at a given address:
//
//	img, err := image.ParseFile("bootloader.bin", image.FormatBinary, 0x08000000)
//
// # Checksums
//
// Every DAPLink update artifact carries a little-endian CRC-32 (IEEE) of
// the whole image in its last four bytes:
//
//	CRC32(Data[:len-4]) == le32(Data[len-4:])
//
// VerifyCRC checks this invariant. VectorChecksum computes the two's
// complement checksum of the first seven vector table entries that some
// target families check before booting.
package image
