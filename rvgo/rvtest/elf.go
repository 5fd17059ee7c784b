// Package rvtest builds small RV32 ELF binaries for tests.
package rvtest

import (
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type Symbol struct {
	Name  string
	Value uint32
}

// ELF describes a statically linked RV32 executable with a text and an optional data segment.
type ELF struct {
	TextAddr uint32
	Text     []uint32

	DataAddr uint32
	Data     []byte
	// Bss is the zero-filled memory following Data.
	Bss uint32

	// Entry defaults to TextAddr.
	Entry uint32
	// Machine defaults to EM_RISCV.
	Machine elf.Machine
	Symbols []Symbol
	// NoSymbols omits the symbol table entirely.
	NoSymbols bool
	// NoSections omits all section headers, leaving only program headers.
	NoSections bool
}

const (
	ehdrSize = 52
	phdrSize = 32
	shdrSize = 40
	symSize  = 16

	shnAbs = 0xfff1
)

type section struct {
	name              string
	typ               elf.SectionType
	flags             elf.SectionFlag
	addr, off, size   uint32
	link, info, entsz uint32
	align             uint32
}

// Bytes serializes the ELF.
func (e *ELF) Bytes() []byte {
	entry := e.Entry
	if entry == 0 {
		entry = e.TextAddr
	}
	machine := e.Machine
	if machine == 0 {
		machine = elf.EM_RISCV
	}
	hasData := len(e.Data) > 0 || e.Bss > 0
	phnum := uint32(1)
	if hasData {
		phnum = 2
	}

	buf := make([]byte, ehdrSize+phnum*phdrSize)
	textOff := uint32(len(buf))
	for _, w := range e.Text {
		buf = binary.LittleEndian.AppendUint32(buf, w)
	}
	textSize := uint32(len(e.Text) * 4)
	dataOff := uint32(len(buf))
	buf = append(buf, e.Data...)
	for len(buf)%4 != 0 {
		buf = append(buf, 0)
	}

	le := binary.LittleEndian
	putPhdr := func(i uint32, off, vaddr, filesz, memsz uint32, flags elf.ProgFlag) {
		p := buf[ehdrSize+i*phdrSize:]
		le.PutUint32(p[0:], uint32(elf.PT_LOAD))
		le.PutUint32(p[4:], off)
		le.PutUint32(p[8:], vaddr)
		le.PutUint32(p[12:], vaddr)
		le.PutUint32(p[16:], filesz)
		le.PutUint32(p[20:], memsz)
		le.PutUint32(p[24:], uint32(flags))
		le.PutUint32(p[28:], 4)
	}
	putPhdr(0, textOff, e.TextAddr, textSize, textSize, elf.PF_R|elf.PF_X)
	if hasData {
		putPhdr(1, dataOff, e.DataAddr, uint32(len(e.Data)), uint32(len(e.Data))+e.Bss, elf.PF_R|elf.PF_W)
	}

	var shoff, shnum, shstrndx uint32
	if !e.NoSections {
		sections := []section{
			{}, // SHT_NULL
			{name: ".text", typ: elf.SHT_PROGBITS, flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR,
				addr: e.TextAddr, off: textOff, size: textSize, align: 4},
		}
		textIdx, dataIdx := uint32(1), uint32(0)
		if hasData {
			dataIdx = uint32(len(sections))
			sections = append(sections, section{name: ".data", typ: elf.SHT_PROGBITS, flags: elf.SHF_ALLOC | elf.SHF_WRITE,
				addr: e.DataAddr, off: dataOff, size: uint32(len(e.Data)), align: 4})
			if e.Bss > 0 {
				sections = append(sections, section{name: ".bss", typ: elf.SHT_NOBITS, flags: elf.SHF_ALLOC | elf.SHF_WRITE,
					addr: e.DataAddr + uint32(len(e.Data)), off: dataOff + uint32(len(e.Data)), size: e.Bss, align: 4})
			}
		}

		if !e.NoSymbols {
			strtab := []byte{0}
			symtab := make([]byte, symSize) // null symbol
			for _, s := range e.Symbols {
				shndx := uint16(shnAbs)
				switch {
				case s.Value >= e.TextAddr && s.Value < e.TextAddr+textSize:
					shndx = uint16(textIdx)
				case hasData && s.Value >= e.DataAddr && s.Value <= e.DataAddr+uint32(len(e.Data))+e.Bss:
					shndx = uint16(dataIdx)
				}
				sym := make([]byte, symSize)
				le.PutUint32(sym[0:], uint32(len(strtab)))
				le.PutUint32(sym[4:], s.Value)
				sym[12] = byte(elf.STB_GLOBAL)<<4 | byte(elf.STT_NOTYPE)
				le.PutUint16(sym[14:], shndx)
				symtab = append(symtab, sym...)
				strtab = append(append(strtab, s.Name...), 0)
			}
			symIdx := uint32(len(sections))
			sections = append(sections,
				section{name: ".symtab", typ: elf.SHT_SYMTAB, off: uint32(len(buf)), size: uint32(len(symtab)),
					link: symIdx + 1, info: 1, entsz: symSize, align: 4},
			)
			buf = append(buf, symtab...)
			sections = append(sections,
				section{name: ".strtab", typ: elf.SHT_STRTAB, off: uint32(len(buf)), size: uint32(len(strtab)), align: 1},
			)
			buf = append(buf, strtab...)
		}

		shstrtab := []byte{0}
		names := make([]uint32, len(sections)+1)
		for i, s := range sections {
			if s.name != "" {
				names[i] = uint32(len(shstrtab))
				shstrtab = append(append(shstrtab, s.name...), 0)
			}
		}
		names[len(sections)] = uint32(len(shstrtab))
		shstrtab = append(append(shstrtab, ".shstrtab"...), 0)
		shstrndx = uint32(len(sections))
		sections = append(sections, section{name: ".shstrtab", typ: elf.SHT_STRTAB, off: uint32(len(buf)), size: uint32(len(shstrtab)), align: 1})
		buf = append(buf, shstrtab...)
		for len(buf)%4 != 0 {
			buf = append(buf, 0)
		}

		shoff = uint32(len(buf))
		shnum = uint32(len(sections))
		for i, s := range sections {
			sh := make([]byte, shdrSize)
			if i > 0 {
				le.PutUint32(sh[0:], names[i])
				le.PutUint32(sh[4:], uint32(s.typ))
				le.PutUint32(sh[8:], uint32(s.flags))
				le.PutUint32(sh[12:], s.addr)
				le.PutUint32(sh[16:], s.off)
				le.PutUint32(sh[20:], s.size)
				le.PutUint32(sh[24:], s.link)
				le.PutUint32(sh[28:], s.info)
				le.PutUint32(sh[32:], s.align)
				le.PutUint32(sh[36:], s.entsz)
			}
			buf = append(buf, sh...)
		}
	}

	// e_ident
	buf[0] = 0x7f
	copy(buf[1:], "ELF")
	buf[4] = byte(elf.ELFCLASS32)
	buf[5] = byte(elf.ELFDATA2LSB)
	buf[6] = byte(elf.EV_CURRENT)

	le.PutUint16(buf[16:], uint16(elf.ET_EXEC))
	le.PutUint16(buf[18:], uint16(machine))
	le.PutUint32(buf[20:], uint32(elf.EV_CURRENT))
	le.PutUint32(buf[24:], entry)
	le.PutUint32(buf[28:], ehdrSize) // e_phoff
	le.PutUint32(buf[32:], shoff)
	le.PutUint32(buf[36:], 0) // e_flags
	le.PutUint16(buf[40:], ehdrSize)
	le.PutUint16(buf[42:], phdrSize)
	le.PutUint16(buf[44:], uint16(phnum))
	le.PutUint16(buf[46:], shdrSize)
	le.PutUint16(buf[48:], uint16(shnum))
	le.PutUint16(buf[50:], uint16(shstrndx))
	return buf
}

// WriteFile writes the ELF into dir and returns its path.
func (e *ELF) WriteFile(t testing.TB, dir string, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, e.Bytes(), 0o644))
	return path
}
