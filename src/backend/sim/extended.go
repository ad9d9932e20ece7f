package sim

import (
	"math/big"
	"math/bits"

	"moslegal/src/ir/gmir/types"
)

// count evaluates G_CTPOP, G_CTLZ and G_CTTZ on a value of width w.
func count(op types.Opcode, v uint64, w int) uint64 {
	switch op {
	case types.CtPop:
		return uint64(bits.OnesCount64(v))
	case types.CtLZ:
		return uint64(w - bits.Len64(v))
	}
	if v == 0 {
		return uint64(w)
	}
	return uint64(bits.TrailingZeros64(v))
}

// saturate evaluates the saturating additions, subtractions and left shifts of width w.
func saturate(op types.Opcode, a, b uint64, w int) uint64 {
	m := types.Scalar(w).Mask()
	smin, smax := uint64(1)<<uint(w-1), m>>1
	signed := func(neg bool) uint64 {
		if neg {
			return smin
		}
		return smax
	}
	neg := types.SignExtend(a, w) < 0
	switch op {
	case types.UAddSat:
		if r, c := addCarry(a, b, 0, w); !c {
			return r
		}
		return m
	case types.USubSat:
		if r, c := subBorrow(a, b, 0, w); !c {
			return r
		}
		return 0
	case types.SAddSat:
		r, _ := addCarry(a, b, 0, w)
		if signedOverflow(a, b, r, w, false) {
			return signed(neg)
		}
		return r
	case types.SSubSat:
		r, _ := subBorrow(a, b, 0, w)
		if signedOverflow(a, b, r, w, true) {
			return signed(neg)
		}
		return r
	case types.UShlSat:
		r := shift(types.Shl, a, b, w) & m
		if shift(types.LShr, r, b, w)&m != a {
			return m
		}
		return r
	default:
		r := shift(types.Shl, a, b, w) & m
		if shift(types.AShr, r, b, w)&m != a {
			return signed(neg)
		}
		return r
	}
}

// product returns the exact product of a and b of width w, read as signed values if signed is set.
func product(signed bool, a, b uint64, w int) *big.Int {
	if signed {
		return new(big.Int).Mul(big.NewInt(types.SignExtend(a, w)), big.NewInt(types.SignExtend(b, w)))
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
}

// mulOverflow returns the wrapped product of a and b of width w and whether the exact product did not fit.
func mulOverflow(signed bool, a, b uint64, w int) (uint64, bool) {
	p := product(signed, a, b, w)
	if !signed {
		return a * b, p.BitLen() > w
	}
	lo := new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), uint(w-1)))
	hi := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(w-1)), big.NewInt(1))
	return a * b, p.Cmp(lo) < 0 || p.Cmp(hi) > 0
}

// mulHigh returns the upper w bits of the double width product of a and b.
func mulHigh(signed bool, a, b uint64, w int) uint64 {
	h := new(big.Int).Rsh(product(signed, a, b, w), uint(w))
	if signed {
		return uint64(h.Int64())
	}
	return h.Uint64()
}

// funnel evaluates G_FSHL and G_FSHR: the concatenation a:b of width 2w shifted by c mod w, high or low half.
func funnel(op types.Opcode, a, b, c uint64, w int) uint64 {
	k := uint(c % uint64(w))
	if k == 0 {
		if op == types.FShr {
			return b
		}
		return a
	}
	if op == types.FShr {
		return a<<(uint(w)-k) | b>>k
	}
	return a<<k | b>>(uint(w)-k)
}
