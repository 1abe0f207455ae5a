package flashalgo

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingSymbolTable is returned when the object has no .symtab.
	ErrMissingSymbolTable = errors.New("missing symbol table")

	// ErrMissingRequiredSymbol is matched by a MissingSymbolError.
	ErrMissingRequiredSymbol = errors.New("missing required symbol")
)

// MissingSymbolError indicates that a symbol the algorithm cannot work
// without is not defined by the object.
type MissingSymbolError struct {
	Name string
}

func (e *MissingSymbolError) Error() string {
	return fmt.Sprintf("missing symbol %s", e.Name)
}

// Is makes errors.Is(err, ErrMissingRequiredSymbol) succeed.
func (e *MissingSymbolError) Is(target error) bool {
	return target == ErrMissingRequiredSymbol
}

// SectionError indicates that the program sections do not form the
// RO, RW, ZI layout required to run the algorithm from RAM.
type SectionError struct {
	Reason string
}

func (e *SectionError) Error() string {
	return e.Reason
}

// ReadError indicates that a range of the object's load image is not fully
// contained in one program segment.
type ReadError struct {
	Addr uint32
	Size int
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("address range 0x%08X+0x%X is not mapped", e.Addr, e.Size)
}
