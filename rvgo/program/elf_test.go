package program

import (
	"debug/elf"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/rvexe/rvgo/rvtest"
)

func TestDecode(t *testing.T) {
	text := []uint32{rvtest.LI(rvtest.A0, 1), rvtest.LI(rvtest.A1, 2), rvtest.Terminate(0)}
	p := &rvtest.ELF{
		TextAddr: TranspileBase + 0x100,
		Text:     text,
		DataAddr: TranspileBase + 0x2000,
		Data:     []byte{0x01, 0x02, 0x03, 0x04, 0, 0, 0, 0, 0xaa},
		Bss:      0x100,
		Entry:    TranspileBase + 0x104,
	}
	img, err := Decode(p.Bytes(), TranspileBase)
	require.NoError(t, err)
	require.Equal(t, TranspileBase, img.Base)
	require.Equal(t, uint32(0x104), img.Entry)
	require.Equal(t, []Word{
		{Addr: 0x100, Value: text[0]},
		{Addr: 0x104, Value: text[1]},
		{Addr: 0x108, Value: text[2]},
	}, img.Code)

	require.Equal(t, uint32(0x04030201), img.Memory[0x2000])
	require.Equal(t, uint32(0xaa), img.Memory[0x2008])
	_, ok := img.Memory[0x2004]
	require.False(t, ok, "zero words are not stored")
	require.Equal(t, text[0], img.Memory[0x100], "code is part of the memory image")
	require.Len(t, img.Memory, 5)
}

func TestDecodeLargeBss(t *testing.T) {
	p := &rvtest.ELF{
		TextAddr: RunBase,
		Text:     []uint32{rvtest.Terminate(0)},
		DataAddr: RunBase + 0x1000,
		Data:     []byte{1, 0, 0, 0},
		Bss:      0x4000_0000,
	}
	raw := p.Bytes()

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	img, err := Decode(raw, RunBase)
	runtime.ReadMemStats(&after)
	require.NoError(t, err)
	require.Equal(t, map[uint32]uint32{0x0: rvtest.Terminate(0), 0x1000: 1}, img.Memory)
	require.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(16<<20), "bss must not be materialized")

	p.Bss = 0xF000_0000
	_, err = Decode(p.Bytes(), RunBase)
	require.ErrorIs(t, err, ErrMalformedELF, "segment past the end of the address space")
}

func TestDecodeKeepsStoredPointers(t *testing.T) {
	p := &rvtest.ELF{
		TextAddr: RunBase,
		Text:     []uint32{rvtest.LUI(rvtest.A0, RunBase+0x1000), rvtest.Terminate(0)},
		DataAddr: RunBase + 0x1000,
		Data:     []byte{0x00, 0x10, 0x00, 0x80},
	}
	img, err := Decode(p.Bytes(), RunBase)
	require.NoError(t, err)
	require.Equal(t, RunBase+0x1000, img.Memory[0x1000], "data pointers keep their linked value")
	require.Equal(t, rvtest.LUI(rvtest.A0, RunBase+0x1000), img.Memory[0x0], "instruction words are not rewritten")
}

func TestDecodeSameBinaryDifferentBase(t *testing.T) {
	p := &rvtest.ELF{
		TextAddr: RunBase,
		Text:     []uint32{rvtest.Terminate(0)},
	}
	raw := p.Bytes()
	img, err := Decode(raw, RunBase)
	require.NoError(t, err)
	require.Equal(t, uint32(0), img.Entry)

	_, err = Decode(raw, RunBase+0x1000)
	require.ErrorIs(t, err, ErrMalformedELF, "code below base")

	img, err = Decode(raw, TranspileBase)
	require.NoError(t, err)
	require.Equal(t, RunBase-TranspileBase, img.Entry)
}

func TestDecodeWithoutSections(t *testing.T) {
	p := &rvtest.ELF{
		TextAddr:   RunBase,
		Text:       []uint32{rvtest.NOP(), rvtest.Terminate(0)},
		DataAddr:   RunBase + 0x1000,
		Data:       []byte{1, 2, 3, 4},
		NoSections: true,
	}
	img, err := Decode(p.Bytes(), RunBase)
	require.NoError(t, err)
	require.Len(t, img.Code, 2, "executable segments are code when there are no sections")
	require.Equal(t, uint32(0x04030201), img.Memory[0x1000])
}

func TestDecodeErrors(t *testing.T) {
	valid := func() *rvtest.ELF {
		return &rvtest.ELF{
			TextAddr: RunBase,
			Text:     []uint32{rvtest.Terminate(0)},
		}
	}
	t.Run("garbage", func(t *testing.T) {
		_, err := Decode([]byte{0x7f, 'E', 'L', 'F'}, RunBase)
		require.ErrorIs(t, err, ErrMalformedELF)
	})
	t.Run("truncated", func(t *testing.T) {
		raw := valid().Bytes()
		_, err := Decode(raw[:40], RunBase)
		require.ErrorIs(t, err, ErrMalformedELF)
	})
	t.Run("wrong machine", func(t *testing.T) {
		p := valid()
		p.Machine = elf.EM_X86_64
		_, err := Decode(p.Bytes(), RunBase)
		require.ErrorIs(t, err, ErrMalformedELF)
		require.ErrorContains(t, err, "not RISC-V")
	})
	t.Run("entry not code", func(t *testing.T) {
		p := valid()
		p.Data = []byte{1, 2, 3, 4}
		p.DataAddr = RunBase + 0x1000
		p.Entry = RunBase + 0x1000
		_, err := Decode(p.Bytes(), RunBase)
		require.ErrorIs(t, err, ErrMalformedELF)
	})
	t.Run("misaligned segment", func(t *testing.T) {
		p := valid()
		p.Data = []byte{1, 2, 3, 4}
		p.DataAddr = RunBase + 0x1002
		_, err := Decode(p.Bytes(), RunBase)
		require.ErrorIs(t, err, ErrMalformedELF)
	})
	t.Run("segment below base", func(t *testing.T) {
		p := valid()
		p.Data = []byte{1, 2, 3, 4}
		p.DataAddr = 0x1000
		_, err := Decode(p.Bytes(), RunBase)
		require.ErrorIs(t, err, ErrMalformedELF)
	})
}
