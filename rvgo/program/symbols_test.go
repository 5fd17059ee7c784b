package program

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/rvexe/rvgo/rvtest"
)

func testProgram(symbols ...rvtest.Symbol) *rvtest.ELF {
	return &rvtest.ELF{
		TextAddr: RunBase,
		Text:     []uint32{rvtest.LI(rvtest.A0, 0), rvtest.Terminate(0)},
		DataAddr: RunBase + 0x1000,
		Data:     make([]byte, 0x40),
		Symbols:  symbols,
	}
}

func TestResolveSignature(t *testing.T) {
	t.Run("region", func(t *testing.T) {
		raw := testProgram(
			rvtest.Symbol{Name: "_start", Value: RunBase},
			rvtest.Symbol{Name: BeginSignatureSymbol, Value: 0x1000},
			rvtest.Symbol{Name: EndSignatureSymbol, Value: 0x1040},
		).Bytes()
		region, err := ResolveSignature(raw)
		require.NoError(t, err)
		require.Equal(t, SignatureRegion{Begin: 0x1000, End: 0x1040}, region)
		require.Equal(t, uint32(64), region.Size())
	})
	t.Run("first occurrence wins", func(t *testing.T) {
		raw := testProgram(
			rvtest.Symbol{Name: BeginSignatureSymbol, Value: RunBase + 0x1000},
			rvtest.Symbol{Name: BeginSignatureSymbol, Value: RunBase + 0x1010},
			rvtest.Symbol{Name: EndSignatureSymbol, Value: RunBase + 0x1020},
			rvtest.Symbol{Name: EndSignatureSymbol, Value: RunBase + 0x1040},
		).Bytes()
		region, err := ResolveSignature(raw)
		require.NoError(t, err)
		require.Equal(t, SignatureRegion{Begin: RunBase + 0x1000, End: RunBase + 0x1020}, region)
	})
	t.Run("missing end", func(t *testing.T) {
		raw := testProgram(rvtest.Symbol{Name: BeginSignatureSymbol, Value: 0x1000}).Bytes()
		_, err := ResolveSignature(raw)
		require.ErrorIs(t, err, ErrMissingSignatureSymbols)
	})
	t.Run("missing begin", func(t *testing.T) {
		raw := testProgram(rvtest.Symbol{Name: EndSignatureSymbol, Value: 0x1040}).Bytes()
		_, err := ResolveSignature(raw)
		require.ErrorIs(t, err, ErrMissingSignatureSymbols)
	})
	t.Run("no symbol table", func(t *testing.T) {
		p := testProgram()
		p.NoSymbols = true
		_, err := ResolveSignature(p.Bytes())
		require.ErrorIs(t, err, ErrMissingSignatureSymbols)
	})
	t.Run("inverted", func(t *testing.T) {
		raw := testProgram(
			rvtest.Symbol{Name: BeginSignatureSymbol, Value: 0x1040},
			rvtest.Symbol{Name: EndSignatureSymbol, Value: 0x1000},
		).Bytes()
		_, err := ResolveSignature(raw)
		require.ErrorIs(t, err, ErrInvertedSignatureRange)
	})
	t.Run("empty", func(t *testing.T) {
		raw := testProgram(
			rvtest.Symbol{Name: BeginSignatureSymbol, Value: 0x1000},
			rvtest.Symbol{Name: EndSignatureSymbol, Value: 0x1000},
		).Bytes()
		_, err := ResolveSignature(raw)
		require.ErrorIs(t, err, ErrInvertedSignatureRange)
	})
	t.Run("not an ELF", func(t *testing.T) {
		_, err := ResolveSignature([]byte("#!/bin/sh\necho hello\n"))
		require.ErrorIs(t, err, ErrMalformedELF)
	})
}

func TestSignatureRegionRebase(t *testing.T) {
	r := SignatureRegion{Begin: RunBase + 0x1000, End: RunBase + 0x1040}
	rebased, err := r.Rebase(RunBase)
	require.NoError(t, err)
	require.Equal(t, SignatureRegion{Begin: 0x1000, End: 0x1040}, rebased)
	require.Equal(t, r.Size(), rebased.Size())
	require.Equal(t, "00001000-00001040", rebased.String())

	_, err = SignatureRegion{Begin: 0x1000, End: 0x1040}.Rebase(RunBase)
	require.ErrorIs(t, err, ErrInvertedSignatureRange)
}

func TestSymbols(t *testing.T) {
	raw := testProgram(
		rvtest.Symbol{Name: "main", Value: RunBase + 4},
		rvtest.Symbol{Name: "_start", Value: RunBase},
		rvtest.Symbol{Name: "below_base", Value: 0x10},
		rvtest.Symbol{Name: BeginSignatureSymbol, Value: RunBase + 0x1000},
	).Bytes()
	syms, err := Symbols(raw, RunBase)
	require.NoError(t, err)
	require.Len(t, syms, 3)
	require.Equal(t, "_start", syms[0].Name)
	require.Equal(t, uint64(0), syms[0].Value)
	require.Equal(t, "main", syms.LookupName(4))
	require.Equal(t, BeginSignatureSymbol, syms.LookupName(0x1000))
	require.Equal(t, "!gap", syms.LookupName(0x800))
}
