package board

import "math/bits"

// magicEntry maps the relevant occupancy of one square to a dense index
// into its own attack slice:
//
//	index = ((occupied & Mask) * Magic) >> Shift
type magicEntry struct {
	Mask    Bitboard
	Magic   uint64
	Shift   uint8
	Attacks []Bitboard
}

var (
	rookMagics   [64]magicEntry
	bishopMagics [64]magicEntry

	// RegeneratedMagics counts shipped constants that failed verification
	// and were replaced during start-up. Zero for a healthy build.
	RegeneratedMagics int
)

// Shipped constants. Each is verified against every occupancy subset when
// the tables are built.
var rookMagicNumbers = [64]uint64{
	0x0080001024844000, 0x0940001008402004, 0x0100102000084102, 0x2200100804204200,
	0x8200100820020004, 0x0300080E01000400, 0x0400013000820408, 0x2080008000204100,
	0x0820800080400020, 0x1028400040201002, 0xD804801003200080, 0x0181000821001002,
	0x2040800400080080, 0x0006001008040200, 0x1005000401000200, 0x8042000444089211,
	0x0880004000200040, 0x0040010022428500, 0x0004820012002040, 0x080D010008201000,
	0x0820808008000400, 0x8602808004000200, 0x4042004040010080, 0x0D04420000408401,
	0x0520400080002082, 0x2040500440002000, 0x0810100080802000, 0x0000480280100080,
	0x8011080180140080, 0x0082000404001020, 0x01410104000810C2, 0x1900C05200012084,
	0x1000400090800020, 0x0040804000802000, 0x0020010021004015, 0x8300800800801000,
	0x40A0040801001101, 0x0702001806000C10, 0x0010800200800100, 0x0005008042000104,
	0x4100804000218000, 0x4402010040820021, 0x0000410020010010, 0x0201001006210008,
	0x0018000400808008, 0xA8CC001008020200, 0x0510020004010100, 0x4410204081020004,
	0x2214800840002080, 0x1020802008400480, 0x0068200080100080, 0x0000801000080080,
	0x2084020800048080, 0x020A000810040200, 0x1188480102100400, 0x2002041100A04200,
	0x0800182080010041, 0x0001008020104009, 0x008041004AA00013, 0x1080041000200901,
	0x2042000820101446, 0x0889000208040001, 0x8044208230210804, 0x0200040020804102,
}

var bishopMagicNumbers = [64]uint64{
	0x02484808881A0221, 0x0A20020202042810, 0x40040846004B1000, 0x300C340480148241,
	0x0004042000044405, 0x0201044240860092, 0x8165010121A00001, 0x0021011041200820,
	0x8400403001810500, 0x11032C2828010174, 0x0038488085020088, 0x3009041042000101,
	0x0361440420000004, 0x0044011002904030, 0x04A0020490143280, 0x0013204202100220,
	0x8040012018260A80, 0x40480042020C2414, 0x0102004040820880, 0x00080004021120B4,
	0x0705000090402008, 0x040E00A9008084A0, 0x00008000480410A0, 0x6000465824020810,
	0x1020080920082110, 0x0284200010015140, 0xA880404048008100, 0x000C004014010083,
	0x3080840244802002, 0x8048002042020103, 0x4140820020821080, 0x0404089028420089,
	0x0218201004480200, 0x000128208A924408, 0x00C0403008080240, 0x402A120180180081,
	0x0030020080201005, 0x0050010840020041, 0x2010042A42810D22, 0x6008021080043085,
	0x01010802C0081080, 0x85004412A8002010, 0x0020101490000802, 0x1008002124000800,
	0x01C9040408220400, 0x01102040810001A0, 0x0804C42884141604, 0x0022040C42100082,
	0x0000420220A10804, 0x0202240708082149, 0x900C0084008800C1, 0x0008000020880D00,
	0x0114042042442000, 0x8100200202021803, 0x200903158801A001, 0x242810508A024082,
	0x0502020202310C80, 0x0040038098080204, 0x8200080200822105, 0x1000000000411080,
	0x2000080011020200, 0x08104021200E1580, 0x8080930401080A04, 0x0324041004083084,
}

func initMagics() {
	for sq := A1; sq <= H8; sq++ {
		rookMagics[sq] = buildMagic(sq, rookRelevance(sq), rookMagicNumbers[sq], slowRookAttacks)
		bishopMagics[sq] = buildMagic(sq, bishopRelevance(sq), bishopMagicNumbers[sq], slowBishopAttacks)
	}
}

// rookRelevance drops the last square of each ray; a piece there cannot
// change the attack set.
func rookRelevance(sq Square) Bitboard {
	return rays[North][sq]&^Rank8 | rays[South][sq]&^Rank1 |
		rays[East][sq]&^FileH | rays[West][sq]&^FileA
}

func bishopRelevance(sq Square) Bitboard {
	edges := Rank1 | Rank8 | FileA | FileH
	return (rays[NorthEast][sq] | rays[SouthEast][sq] | rays[SouthWest][sq] | rays[NorthWest][sq]) &^ edges
}

func buildMagic(sq Square, mask Bitboard, magic uint64, slow func(Square, Bitboard) Bitboard) magicEntry {
	shift := uint8(64 - mask.Count())
	if table, ok := fillMagic(sq, mask, magic, shift, slow); ok {
		return magicEntry{Mask: mask, Magic: magic, Shift: shift, Attacks: table}
	}
	RegeneratedMagics++
	magic, table := findMagic(sq, mask, shift, slow)
	return magicEntry{Mask: mask, Magic: magic, Shift: shift, Attacks: table}
}

// fillMagic walks every subset of mask with the carry-rippler
// (next = (cur - mask) & mask) and stores its attack set. It fails when two
// occupancies with different attacks land on the same index.
func fillMagic(sq Square, mask Bitboard, magic uint64, shift uint8, slow func(Square, Bitboard) Bitboard) ([]Bitboard, bool) {
	table := make([]Bitboard, 1<<(64-uint(shift)))
	occ := Empty
	for {
		idx := (uint64(occ) * magic) >> shift
		att := slow(sq, occ)
		// Slider attack sets are never empty, so zero marks a free slot.
		switch table[idx] {
		case 0:
			table[idx] = att
		case att:
		default:
			return nil, false
		}
		occ = (occ - mask) & mask
		if occ == 0 {
			return table, true
		}
	}
}

// findMagic searches sparse random candidates until one verifies.
func findMagic(sq Square, mask Bitboard, shift uint8, slow func(Square, Bitboard) Bitboard) (uint64, []Bitboard) {
	rng := xorshift(0x9E3779B97F4A7C15 ^ uint64(sq)*0x2545F4914F6CDD1D ^ uint64(mask))
	for {
		candidate := rng.next() & rng.next() & rng.next()
		if bits.OnesCount64((uint64(mask)*candidate)&0xFF00000000000000) < 6 {
			continue
		}
		if table, ok := fillMagic(sq, mask, candidate, shift, slow); ok {
			return candidate, table
		}
	}
}

type xorshift uint64

func (x *xorshift) next() uint64 {
	*x ^= *x >> 12
	*x ^= *x << 25
	*x ^= *x >> 27
	return uint64(*x) * 0x2545F4914F6CDD1D
}

// RookAttacks returns rook attacks from sq given the occupied squares.
func RookAttacks(sq Square, occupied Bitboard) Bitboard {
	m := &rookMagics[sq]
	return m.Attacks[(uint64(occupied&m.Mask)*m.Magic)>>m.Shift]
}

// BishopAttacks returns bishop attacks from sq given the occupied squares.
func BishopAttacks(sq Square, occupied Bitboard) Bitboard {
	m := &bishopMagics[sq]
	return m.Attacks[(uint64(occupied&m.Mask)*m.Magic)>>m.Shift]
}

// QueenAttacks is the union of rook and bishop attacks.
func QueenAttacks(sq Square, occupied Bitboard) Bitboard {
	return RookAttacks(sq, occupied) | BishopAttacks(sq, occupied)
}
