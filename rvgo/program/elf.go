package program

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

// Base addresses used by the two invocation modes.
const (
	// RunBase is where the riscv-tests and riscv-arch-test linker scripts place their code.
	RunBase = uint32(0x8000_0000)
	// TranspileBase is the link base of programs transpiled for standalone execution.
	TranspileBase = uint32(0x2000_0000)
)

// Word is one little-endian 32 bit word of the program image.
type Word struct {
	Addr  uint32 `json:"addr"`
	Value uint32 `json:"value"`
}

// Image is a decoded program: instruction words, static memory and entry point,
// with every address rebiased by Base.
type Image struct {
	Base  uint32 `json:"base"`
	Entry uint32 `json:"entry"`
	// Code is sorted by address.
	Code []Word `json:"code"`
	// Memory holds the non-zero words of all loadable segments.
	Memory map[uint32]uint32 `json:"memory"`
}

func (img *Image) loadWord(addr uint32) uint32 {
	return img.Memory[addr]
}

// Decode parses raw ELF bytes into an Image. Every virtual address addr of the binary
// becomes addr-base in the image.
// Only addresses taken from the ELF headers and symbols are rebiased: absolute addresses a
// program builds with LUI, and pointers stored in data, keep their linked values.
func Decode(raw []byte, base uint32) (*Image, error) {
	f, err := elf.NewFile(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedELF, err)
	}
	defer f.Close()
	return LoadELF(f, base)
}

func LoadELF(f *elf.File, base uint32) (*Image, error) {
	if f.Class != elf.ELFCLASS32 {
		return nil, fmt.Errorf("%w: expected 32 bit ELF, got %s", ErrMalformedELF, f.Class)
	}
	if f.Data != elf.ELFDATA2LSB {
		return nil, fmt.Errorf("%w: expected little-endian ELF, got %s", ErrMalformedELF, f.Data)
	}
	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("%w: ELF is not RISC-V, but got %q", ErrMalformedELF, f.Machine.String())
	}
	if f.Type != elf.ET_EXEC {
		return nil, fmt.Errorf("%w: ELF is not an executable, but got %s", ErrMalformedELF, f.Type)
	}

	out := &Image{
		Base:   base,
		Memory: make(map[uint32]uint32),
	}

	var execSegments [][2]uint64
	for i, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD || prog.Memsz == 0 {
			continue
		}
		if prog.Filesz > prog.Memsz {
			return nil, fmt.Errorf("%w: invalid PT_LOAD program segment %d, file size (%d) > mem size (%d)", ErrMalformedELF, i, prog.Filesz, prog.Memsz)
		}
		start, err := rebias(prog.Vaddr, prog.Memsz, base)
		if err != nil {
			return nil, fmt.Errorf("program segment %d: %w", i, err)
		}
		if start%4 != 0 {
			return nil, fmt.Errorf("%w: program segment %d at %08x is not word aligned", ErrMalformedELF, i, prog.Vaddr)
		}

		// the zero-filled tail up to Memsz is implied: Memory only holds non-zero words
		dat := make([]byte, (prog.Filesz+3)&^3)
		if _, err := io.ReadFull(io.NewSectionReader(prog, 0, int64(prog.Filesz)), dat[:prog.Filesz]); err != nil {
			return nil, fmt.Errorf("%w: failed to read program segment %d: %w", ErrMalformedELF, i, err)
		}
		for off := 0; off < len(dat); off += 4 {
			if w := binary.LittleEndian.Uint32(dat[off:]); w != 0 {
				out.Memory[start+uint32(off)] = w
			}
		}
		if prog.Flags&elf.PF_X != 0 {
			execSegments = append(execSegments, [2]uint64{uint64(start), uint64(start) + prog.Memsz})
		}
	}

	code := make(map[uint32]struct{})
	addRange := func(start, end uint64) error {
		if start%4 != 0 {
			return fmt.Errorf("%w: code at %08x is not word aligned", ErrMalformedELF, start+uint64(base))
		}
		for a := start; a+4 <= end; a += 4 {
			code[uint32(a)] = struct{}{}
		}
		return nil
	}

	// Prefer section information: data placed inside an executable segment must not be
	// mistaken for instructions.
	var haveSections bool
	for _, s := range f.Sections {
		if s.Type == elf.SHT_NULL {
			continue
		}
		haveSections = true
		if s.Type != elf.SHT_PROGBITS || s.Flags&(elf.SHF_ALLOC|elf.SHF_EXECINSTR) != elf.SHF_ALLOC|elf.SHF_EXECINSTR || s.Size == 0 {
			continue
		}
		start, err := rebias(s.Addr, s.Size, base)
		if err != nil {
			return nil, fmt.Errorf("section %q: %w", s.Name, err)
		}
		if err := addRange(uint64(start), uint64(start)+s.Size); err != nil {
			return nil, err
		}
	}
	if !haveSections {
		for _, seg := range execSegments {
			if err := addRange(seg[0], seg[1]); err != nil {
				return nil, err
			}
		}
	}

	out.Code = make([]Word, 0, len(code))
	for addr := range code {
		out.Code = append(out.Code, Word{Addr: addr, Value: out.loadWord(addr)})
	}
	sort.Slice(out.Code, func(i, j int) bool {
		return out.Code[i].Addr < out.Code[j].Addr
	})

	entry, err := rebias(f.Entry, 4, base)
	if err != nil {
		return nil, fmt.Errorf("entry point: %w", err)
	}
	if _, ok := code[entry]; !ok {
		return nil, fmt.Errorf("%w: entry point %08x is not an instruction", ErrMalformedELF, f.Entry)
	}
	out.Entry = entry
	return out, nil
}

func rebias(addr uint64, size uint64, base uint32) (uint32, error) {
	if addr < uint64(base) {
		return 0, fmt.Errorf("%w: address %08x is below base %08x", ErrMalformedELF, addr, base)
	}
	if addr+size > 1<<32 || addr+size < addr {
		return 0, fmt.Errorf("%w: range %08x+%d exceeds 32 bit address space", ErrMalformedELF, addr, size)
	}
	return uint32(addr - uint64(base)), nil
}
