// Package flashalgo extracts flash programming algorithms from compiled
// driver objects.
//
// A flash algorithm is a small position independent ELF object providing
// the functions Init, UnInit, EraseSector and ProgramPage (and optionally
// BlankCheck, EraseChip and Verify) together with a FlashDevice record
// describing the flash geometry. The object carries three sections:
//
//	PrgCode (PROGBITS) - code, linked at address 0   (RO)
//	PrgData (PROGBITS) - initialized data after code (RW)
//	PrgData (NOBITS)   - zero-initialized data       (ZI)
//
// Extract validates this layout and produces an Algo whose Blob can be
// copied to target RAM and executed from there.
//
// Example:
//
//	algo, err := flashalgo.ExtractFile("MK64F12.FLM")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(algo.Info)
//	fmt.Printf("blob: %d bytes\n", len(algo.Blob))
package flashalgo
