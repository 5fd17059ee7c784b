package vm

import (
	"io"
	"math/rand"
	"testing"

	"github.com/ethereum-optimism/rvexe/rvgo/config"
)

const (
	smallDataset = 1_000
	largeDataset = 1_000_000
)

func BenchmarkMemoryOperations(b *testing.B) {
	benchmarks := []struct {
		name string
		fn   func(b *testing.B, m *Memory)
	}{
		{"RandomWordReadWrite_Small", benchRandomWordReadWrite(smallDataset)},
		{"RandomWordReadWrite_Large", benchRandomWordReadWrite(largeDataset)},
		{"SequentialWordWrite", benchSequentialWordWrite},
		{"UnalignedByteWrite", benchUnalignedByteWrite},
		{"SignatureRangeRead", benchSignatureRangeRead},
		{"MerkleRoot_Small", benchMerkleRoot(smallDataset)},
		{"MerkleRoot_Large", benchMerkleRoot(largeDataset)},
	}

	for _, bm := range benchmarks {
		b.Run(bm.name, func(b *testing.B) {
			m := NewMemory()
			b.ResetTimer()
			bm.fn(b, m)
		})
	}
}

func benchRandomWordReadWrite(size int) func(b *testing.B, m *Memory) {
	return func(b *testing.B, m *Memory) {
		addresses := make([]uint32, size)
		for i := range addresses {
			addresses[i] = rand.Uint32() &^ 3
		}
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			addr := addresses[i%len(addresses)]
			if i%2 == 0 {
				m.SetWord(addr, uint32(i))
			} else {
				_ = m.GetWord(addr)
			}
		}
	}
}

func benchSequentialWordWrite(b *testing.B, m *Memory) {
	for i := 0; i < b.N; i++ {
		m.SetWord(uint32(i%(1<<20))*4, uint32(i))
	}
}

func benchUnalignedByteWrite(b *testing.B, m *Memory) {
	data := []byte{0xaa}
	for i := 0; i < b.N; i++ {
		m.SetUnaligned(uint32(rand.Intn(1_000_000)), data)
	}
}

func benchSignatureRangeRead(b *testing.B, m *Memory) {
	for i := uint32(0); i < 0x1000; i += 4 {
		m.SetWord(0x2000+i, i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := io.Copy(io.Discard, m.ReadMemoryRange(0x2000, 0x1000)); err != nil {
			b.Fatal(err)
		}
	}
}

func benchMerkleRoot(size int) func(b *testing.B, m *Memory) {
	return func(b *testing.B, m *Memory) {
		for i := 0; i < size; i++ {
			m.SetWord(uint32(i)*4, uint32(i)+1)
		}
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = m.MerkleRoot()
		}
	}
}

// BenchmarkStep runs a counting loop: a0 counts down, a1 accumulates a0*a0.
func BenchmarkStep(b *testing.B) {
	exe := &Executable{
		Instructions: []Instruction{
			{Opcode: ADD, A: 10, B: 0, C: 0x7FFFFFFF, D: AsRegister, E: AsImmediate, G: 0x0},
			{Opcode: MUL, A: 12, B: 10, C: 10, D: AsRegister, E: AsRegister, G: 0x4},
			{Opcode: ADD, A: 11, B: 11, C: 12, D: AsRegister, E: AsRegister, G: 0x8},
			{Opcode: ADD, A: 10, B: 10, C: 0xFFFFFFFF, D: AsRegister, E: AsImmediate, G: 0xc},
			{Opcode: BNE, A: 10, B: 0, C: 1, G: 0x10},
			{Opcode: TERMINATE, G: 0x14},
		},
		PCMap: []Block{{0x0, 0}, {0x4, 1}, {0x8, 2}, {0xc, 3}, {0x10, 4}, {0x14, 5}},
	}
	us, err := NewInstrumentedState(exe, config.Default(), nil, nil, nil)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := us.Step(); err != nil {
			b.Fatal(err)
		}
	}
}
