// Package builder turns a linked firmware image into a DAPLink update
// artifact.
//
// Assemble applies, in order:
//
//  1. the vector table checksum at offset 0x1C,
//  2. the board and family identity fields of the target record,
//  3. an optional flash algorithm blob with its program-target and
//     target-config descriptors, placed just before the CRC field,
//  4. the whole image CRC in the last four bytes.
//
// Images starting at one of the legacy offsets additionally produce a
// legacy variant with a zeroed compatibility field and a padded binary for
// bootloaders expecting an older flash origin.
//
// Example:
//
//	img, err := image.Parse("k20dx_if.hex")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := builder.Assemble(img,
//	    builder.WithBoardID(0x0240),
//	    builder.WithFamilyID(0x0001),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	paths, err := res.Write("build", builder.OutputBase("k20dx_if", "0240", "0001", ""))
//
// # Target Record
//
// The word at image offset 13*4 points at the target record:
//
//	record+2  family id   u16
//	record+4  board id    4 ASCII hex digits
//	record+12 flags       u32 (1 = page erase supported)
//	record+16 target cfg  u32 (address of the target-config descriptor)
//
// The last two fields are only written when a flash algorithm is embedded.
package builder
