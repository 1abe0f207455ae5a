package flashalgo

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

// testSym is a symbol written into a test object.
type testSym struct {
	name  string
	value uint32
}

// testObject describes a minimal ELF32 ARM flash driver object.
type testObject struct {
	code     []byte
	codeAddr uint32
	data     []byte
	dataAddr uint32 // defaults to codeAddr+len(code)
	zi       uint32
	ziAddr   uint32 // defaults to dataAddr+len(data)
	omitZI   bool
	omitRW   bool
	omitRO   bool
	dupRO    bool

	device  []byte
	devAddr uint32

	symbols    []testSym
	omitSymtab bool
}

type testSection struct {
	name   string
	typ    elf.SectionType
	flags  elf.SectionFlag
	addr   uint32
	data   []byte
	size   uint32 // for NOBITS
	link   uint32
	info   uint32
	entsz  uint32
	offset uint32
}

// defaultObject returns an object with two 0x400 byte sectors and all
// required symbols present.
func defaultObject() *testObject {
	code := make([]byte, 0x40)
	for i := range code {
		code[i] = byte(i + 1)
	}
	return &testObject{
		code:    code,
		data:    []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x11, 0x22},
		zi:      0x10,
		device:  deviceBlob("Test Flash 2KB", 0, 0x800, 0x100, 0xFF, []Sector{{Start: 0, Size: 0x400}, {Start: 0x400, Size: 0x400}}),
		devAddr: 0x1000,
		symbols: []testSym{
			{"Init", 0x01},
			{"UnInit", 0x09},
			{"EraseChip", 0x11},
			{"EraseSector", 0x19},
			{"ProgramPage", 0x21},
			{"FlashDevice", 0x1000},
		},
	}
}

func (o *testObject) without(name string) *testObject {
	out := o.symbols[:0:0]
	for _, s := range o.symbols {
		if s.name != name {
			out = append(out, s)
		}
	}
	o.symbols = out
	return o
}

// deviceBlob encodes a FlashDevice record followed by its sector list.
func deviceBlob(name string, start, size, page uint32, empty uint8, sectors []Sector) []byte {
	rec := make([]byte, DeviceRecordSize)
	le := binary.LittleEndian
	le.PutUint16(rec[0x00:], 0x0101)
	copy(rec[0x02:0x82], name)
	le.PutUint16(rec[0x82:], 1)
	le.PutUint32(rec[0x84:], start)
	le.PutUint32(rec[0x88:], size)
	le.PutUint32(rec[0x8C:], page)
	rec[0x94] = empty
	le.PutUint32(rec[0x98:], 100)
	le.PutUint32(rec[0x9C:], 3000)

	for _, s := range sectors {
		rec = le.AppendUint32(rec, s.Size)
		rec = le.AppendUint32(rec, s.Start)
	}
	if sectors != nil {
		rec = le.AppendUint32(rec, SectorEnd)
		rec = le.AppendUint32(rec, SectorEnd)
	}
	return rec
}

func align4(n uint32) uint32 {
	return (n + 3) &^ 3
}

// bytes encodes the object as an ELF32 little-endian file with one load
// segment for code and data and one for the device record.
func (o *testObject) bytes() []byte {
	const (
		ehsize    = 52
		phentsize = 32
		shentsize = 40
		phnum     = 2
	)
	dataAddr := o.dataAddr
	if dataAddr == 0 {
		dataAddr = o.codeAddr + uint32(len(o.code))
	}
	ziAddr := o.ziAddr
	if ziAddr == 0 {
		ziAddr = dataAddr + uint32(len(o.data))
	}

	var secs []*testSection
	add := func(s *testSection) int {
		secs = append(secs, s)
		return len(secs) // index after the null section
	}

	code := &testSection{name: "PrgCode", typ: elf.SHT_PROGBITS, flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR, addr: o.codeAddr, data: o.code}
	if !o.omitRO {
		add(code)
	}
	if o.dupRO {
		add(&testSection{name: "PrgCode", typ: elf.SHT_PROGBITS, flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR, addr: o.codeAddr, data: o.code})
	}
	data := &testSection{name: "PrgData", typ: elf.SHT_PROGBITS, flags: elf.SHF_ALLOC | elf.SHF_WRITE, addr: dataAddr, data: o.data}
	if !o.omitRW {
		add(data)
	}
	if !o.omitZI {
		add(&testSection{name: "PrgData", typ: elf.SHT_NOBITS, flags: elf.SHF_ALLOC | elf.SHF_WRITE, addr: ziAddr, size: o.zi})
	}
	dev := &testSection{name: "DevDscr", typ: elf.SHT_PROGBITS, flags: elf.SHF_ALLOC, addr: o.devAddr, data: o.device}
	add(dev)

	if !o.omitSymtab {
		strtab := []byte{0}
		symtab := make([]byte, 16)
		le := binary.LittleEndian
		for _, s := range o.symbols {
			nameOff := uint32(len(strtab))
			strtab = append(strtab, s.name...)
			strtab = append(strtab, 0)
			symtab = le.AppendUint32(symtab, nameOff)
			symtab = le.AppendUint32(symtab, s.value)
			symtab = le.AppendUint32(symtab, 0)
			symtab = append(symtab, byte(elf.STB_GLOBAL)<<4|byte(elf.STT_FUNC), 0)
			symtab = le.AppendUint16(symtab, 1)
		}
		symIdx := add(&testSection{name: ".symtab", typ: elf.SHT_SYMTAB, data: symtab, info: 1, entsz: 16})
		secs[symIdx-1].link = uint32(symIdx + 1)
		add(&testSection{name: ".strtab", typ: elf.SHT_STRTAB, data: strtab})
	}

	shstrtab := []byte{0}
	nameOffs := make([]uint32, len(secs)+1)
	for i, s := range secs {
		nameOffs[i] = uint32(len(shstrtab))
		shstrtab = append(shstrtab, s.name...)
		shstrtab = append(shstrtab, 0)
	}
	nameOffs[len(secs)] = uint32(len(shstrtab))
	shstrtab = append(shstrtab, ".shstrtab\x00"...)
	shstr := &testSection{name: ".shstrtab", typ: elf.SHT_STRTAB, data: shstrtab}

	// Code and data must be adjacent in the file for the first segment.
	off := uint32(ehsize + phentsize*phnum)
	code.offset = off
	data.offset = off + uint32(len(o.code))
	off = align4(data.offset + uint32(len(o.data)))
	for _, s := range append(secs, shstr) {
		switch {
		case s == code || s == data:
		case s.typ == elf.SHT_NOBITS:
			s.offset = data.offset + uint32(len(o.data))
		default:
			s.offset = off
			off = align4(off + uint32(len(s.data)))
		}
	}
	shoff := off
	shnum := len(secs) + 2

	le := binary.LittleEndian
	var b bytes.Buffer
	b.Write([]byte{0x7F, 'E', 'L', 'F', byte(elf.ELFCLASS32), byte(elf.ELFDATA2LSB), byte(elf.EV_CURRENT)})
	b.Write(make([]byte, 9))
	b.Write(le.AppendUint16(nil, uint16(elf.ET_EXEC)))
	b.Write(le.AppendUint16(nil, uint16(elf.EM_ARM)))
	b.Write(le.AppendUint32(nil, uint32(elf.EV_CURRENT)))
	b.Write(le.AppendUint32(nil, 0))
	b.Write(le.AppendUint32(nil, ehsize))
	b.Write(le.AppendUint32(nil, shoff))
	b.Write(le.AppendUint32(nil, 0))
	for _, v := range []uint16{ehsize, phentsize, phnum, shentsize, uint16(shnum), uint16(shnum - 1)} {
		b.Write(le.AppendUint16(nil, v))
	}

	loadSize := uint32(len(o.code) + len(o.data))
	phdrs := [phnum][8]uint32{
		{uint32(elf.PT_LOAD), code.offset, o.codeAddr, o.codeAddr, loadSize, loadSize + o.zi, uint32(elf.PF_R | elf.PF_W | elf.PF_X), 4},
		{uint32(elf.PT_LOAD), dev.offset, o.devAddr, o.devAddr, uint32(len(o.device)), uint32(len(o.device)), uint32(elf.PF_R), 4},
	}
	for _, ph := range phdrs {
		for _, v := range ph {
			b.Write(le.AppendUint32(nil, v))
		}
	}

	body := make([]byte, shoff)
	for _, s := range append(secs, shstr) {
		if s.typ != elf.SHT_NOBITS {
			copy(body[s.offset:], s.data)
		}
	}
	b.Write(body[b.Len():])

	b.Write(make([]byte, shentsize))
	for i, s := range append(secs, shstr) {
		size := uint32(len(s.data))
		if s.typ == elf.SHT_NOBITS {
			size = s.size
		}
		for _, v := range []uint32{nameOffs[i], uint32(s.typ), uint32(s.flags), s.addr, s.offset, size, s.link, s.info, 4, s.entsz} {
			b.Write(le.AppendUint32(nil, v))
		}
	}
	return b.Bytes()
}
