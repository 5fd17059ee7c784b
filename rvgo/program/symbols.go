package program

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"sort"
)

const (
	BeginSignatureSymbol = "begin_signature"
	EndSignatureSymbol   = "end_signature"
)

// SignatureRegion is the [Begin, End) memory range compliance tests write their results to.
type SignatureRegion struct {
	Begin uint32 `json:"begin"`
	End   uint32 `json:"end"`
}

func (r SignatureRegion) Size() uint32 {
	return r.End - r.Begin
}

// Rebase maps the region into the address space of an Image decoded with the given base.
func (r SignatureRegion) Rebase(base uint32) (SignatureRegion, error) {
	if r.Begin < base {
		return SignatureRegion{}, fmt.Errorf("%w: region %08x-%08x lies below base %08x", ErrInvertedSignatureRange, r.Begin, r.End, base)
	}
	return SignatureRegion{Begin: r.Begin - base, End: r.End - base}, nil
}

func (r SignatureRegion) String() string {
	return fmt.Sprintf("%08x-%08x", r.Begin, r.End)
}

// ResolveSignature finds the signature region delimited by the begin_signature and
// end_signature symbols of the given ELF bytes.
func ResolveSignature(raw []byte) (SignatureRegion, error) {
	f, err := elf.NewFile(bytes.NewReader(raw))
	if err != nil {
		return SignatureRegion{}, fmt.Errorf("%w: %w", ErrMalformedELF, err)
	}
	defer f.Close()
	return FindSignature(f)
}

func FindSignature(f *elf.File) (SignatureRegion, error) {
	symbols, err := f.Symbols()
	if errors.Is(err, elf.ErrNoSymbols) {
		return SignatureRegion{}, fmt.Errorf("%w: binary has no symbol table", ErrMissingSignatureSymbols)
	} else if err != nil {
		return SignatureRegion{}, fmt.Errorf("%w: failed to read symbols data: %w", ErrMalformedELF, err)
	}
	var begin, end *uint64
	for i := range symbols {
		switch symbols[i].Name {
		case BeginSignatureSymbol:
			if begin == nil {
				begin = &symbols[i].Value
			}
		case EndSignatureSymbol:
			if end == nil {
				end = &symbols[i].Value
			}
		}
	}
	if begin == nil || end == nil {
		return SignatureRegion{}, fmt.Errorf("%w: found %s=%t, %s=%t", ErrMissingSignatureSymbols,
			BeginSignatureSymbol, begin != nil, EndSignatureSymbol, end != nil)
	}
	b, e := uint32(*begin), uint32(*end)
	if b >= e {
		return SignatureRegion{}, fmt.Errorf("%w: %s=%08x, %s=%08x", ErrInvertedSignatureRange,
			BeginSignatureSymbol, b, EndSignatureSymbol, e)
	}
	return SignatureRegion{Begin: b, End: e}, nil
}

type SortedSymbols []elf.Symbol

// FindSymbol finds the symbol that intersects with the given addr, or a placeholder if none exists
func (s SortedSymbols) FindSymbol(addr uint64) elf.Symbol {
	// find first symbol with higher start. Or n if no such symbol exists
	i := sort.Search(len(s), func(i int) bool {
		return s[i].Value > addr
	})
	if i == 0 {
		return elf.Symbol{Name: "!start", Value: 0}
	}
	out := &s[i-1]
	if out.Value+out.Size < addr { // addr may be pointing to a gap between symbols
		return elf.Symbol{Name: "!gap", Value: addr}
	}
	return *out
}

// LookupName is FindSymbol reduced to a name, for progress logs.
func (s SortedSymbols) LookupName(addr uint32) string {
	return s.FindSymbol(uint64(addr)).Name
}

// Symbols returns the symbol table of the ELF bytes sorted by address, with every address
// rebiased by base. Symbols below base are dropped.
func Symbols(raw []byte, base uint32) (SortedSymbols, error) {
	f, err := elf.NewFile(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedELF, err)
	}
	defer f.Close()
	symbols, err := f.Symbols()
	if err != nil {
		return nil, fmt.Errorf("failed to read symbols data: %w", err)
	}
	out := make(SortedSymbols, 0, len(symbols))
	for _, sym := range symbols {
		if sym.Value < uint64(base) || sym.Name == "" {
			continue
		}
		sym.Value -= uint64(base)
		out = append(out, sym)
	}
	// not every ELF has sorted symbols
	sort.Slice(out, func(i, j int) bool {
		return out[i].Value < out[j].Value
	})
	return out, nil
}
