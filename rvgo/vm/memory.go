package vm

import (
	"encoding/binary"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Note: 2**12 = 4 KiB pages, 32 byte merkle leaves.
const (
	PageAddrSize = 12
	PageKeySize  = 32 - PageAddrSize
	PageSize     = 1 << PageAddrSize
	PageAddrMask = PageSize - 1
	MaxPageCount = 1 << PageKeySize

	leafSize      = 32
	pageTreeDepth = PageAddrSize - 5
	memTreeDepth  = 32 - 5
)

type Page [PageSize]byte

func HashPair(left, right [32]byte) [32]byte {
	return crypto.Keccak256Hash(left[:], right[:])
}

var zeroHashes = func() [memTreeDepth + 1][32]byte {
	// empty parts of the tree are all zero. Precompute the hash of each full-zero range sub-tree level.
	var out [memTreeDepth + 1][32]byte
	for i := 1; i <= memTreeDepth; i++ {
		out[i] = HashPair(out[i-1], out[i-1])
	}
	return out
}()

// Memory is a sparse, byte addressable 32 bit address space. Pages are allocated on first write.
type Memory struct {
	pages map[uint32]*Page

	// we often read instructions' operands from one page: cache the last lookup
	lastPageKey uint32
	lastPage    *Page
}

func NewMemory() *Memory {
	return &Memory{
		pages:       make(map[uint32]*Page),
		lastPageKey: ^uint32(0), // default to an invalid key, to not match any page
	}
}

func (m *Memory) PageCount() int {
	return len(m.pages)
}

func (m *Memory) pageLookup(pageIndex uint32) (*Page, bool) {
	if pageIndex == m.lastPageKey && m.lastPage != nil {
		return m.lastPage, true
	}
	p, ok := m.pages[pageIndex]
	// only cache existing pages.
	if ok {
		m.lastPageKey = pageIndex
		m.lastPage = p
	}
	return p, ok
}

func (m *Memory) AllocPage(pageIndex uint32) *Page {
	p := new(Page)
	m.pages[pageIndex] = p
	return p
}

func (m *Memory) page(addr uint32, alloc bool) *Page {
	pageIndex := addr >> PageAddrSize
	p, ok := m.pageLookup(pageIndex)
	if !ok && alloc {
		p = m.AllocPage(pageIndex)
	}
	return p
}

// SetUnaligned writes dat at addr, crossing page boundaries and wrapping around the
// address space if needed.
func (m *Memory) SetUnaligned(addr uint32, dat []byte) {
	for len(dat) > 0 {
		p := m.page(addr, true)
		n := copy(p[addr&PageAddrMask:], dat)
		dat = dat[n:]
		addr += uint32(n)
	}
}

// GetUnaligned fills dest with the bytes at addr. Unallocated memory reads as zero.
func (m *Memory) GetUnaligned(addr uint32, dest []byte) {
	for len(dest) > 0 {
		var n int
		if p := m.page(addr, false); p != nil {
			n = copy(dest, p[addr&PageAddrMask:])
		} else {
			n = min(len(dest), int(PageSize-addr&PageAddrMask))
			clear(dest[:n])
		}
		dest = dest[n:]
		addr += uint32(n)
	}
}

// GetWord reads a little-endian word. The address must be 4 byte aligned.
func (m *Memory) GetWord(addr uint32) uint32 {
	p := m.page(addr, false)
	if p == nil {
		return 0
	}
	off := addr & PageAddrMask
	return binary.LittleEndian.Uint32(p[off : off+4])
}

// SetWord writes a little-endian word. The address must be 4 byte aligned.
func (m *Memory) SetWord(addr uint32, v uint32) {
	p := m.page(addr, true)
	off := addr & PageAddrMask
	binary.LittleEndian.PutUint32(p[off:off+4], v)
}

func (m *Memory) SetMemoryRange(addr uint32, r io.Reader) error {
	for {
		p := m.page(addr, true)
		n, err := r.Read(p[addr&PageAddrMask:])
		addr += uint32(n)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

type memReader struct {
	m     *Memory
	addr  uint32
	count uint64
}

func (r *memReader) Read(dest []byte) (n int, err error) {
	if r.count == 0 {
		return 0, io.EOF
	}
	if uint64(len(dest)) > r.count {
		dest = dest[:r.count]
	}
	// stop at the page boundary, the next Read continues on the next page
	if l := int(PageSize - r.addr&PageAddrMask); len(dest) > l {
		dest = dest[:l]
	}
	r.m.GetUnaligned(r.addr, dest)
	r.addr += uint32(len(dest))
	r.count -= uint64(len(dest))
	return len(dest), nil
}

// ReadMemoryRange returns a reader of count bytes of memory, starting at addr.
func (m *Memory) ReadMemoryRange(addr uint32, count uint64) io.Reader {
	return &memReader{m: m, addr: addr, count: count}
}

func pageRoot(p *Page) [32]byte {
	var nodes [PageSize / leafSize][32]byte
	for i := range nodes {
		copy(nodes[i][:], p[i*leafSize:(i+1)*leafSize])
	}
	level := nodes[:]
	for len(level) > 1 {
		for i := 0; i < len(level)/2; i++ {
			level[i] = HashPair(level[2*i], level[2*i+1])
		}
		level = level[:len(level)/2]
	}
	return level[0]
}

// MerkleRoot commits to the full 32 bit address space with a binary keccak tree of 32 byte leaves.
func (m *Memory) MerkleRoot() common.Hash {
	nodes := make(map[uint32][32]byte, len(m.pages))
	for k, p := range m.pages {
		nodes[k] = pageRoot(p)
	}
	for depth := pageTreeDepth; depth < memTreeDepth; depth++ {
		parents := make(map[uint32][32]byte, (len(nodes)+1)/2)
		for k := range nodes {
			parent := k >> 1
			if _, ok := parents[parent]; ok {
				continue
			}
			left, ok := nodes[parent<<1]
			if !ok {
				left = zeroHashes[depth]
			}
			right, ok := nodes[parent<<1|1]
			if !ok {
				right = zeroHashes[depth]
			}
			parents[parent] = HashPair(left, right)
		}
		nodes = parents
	}
	if root, ok := nodes[0]; ok {
		return root
	}
	return zeroHashes[memTreeDepth]
}

func (m *Memory) Usage() string {
	return humanize.IBytes(uint64(len(m.pages)) * PageSize)
}
