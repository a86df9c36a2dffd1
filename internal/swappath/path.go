// Package swappath packs hop chains into the tokenIn|fee|tokenOut byte layout
// consumed by QuoterV2 and SwapRouter multi-hop calls.
package swappath

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

const (
	addrSize = common.AddressLength
	feeSize  = 3
	hopSize  = addrSize + feeSize
	// MaxFee is the largest fee that fits the 3-byte field.
	MaxFee = 1<<24 - 1
)

var (
	ErrEmptyPath         = errors.New("swappath: empty path")
	ErrFeeOverflow       = errors.New("swappath: fee does not fit in 3 bytes")
	ErrPathDiscontinuity = errors.New("swappath: hops are not chained")
	ErrMalformedPath     = errors.New("swappath: malformed encoded path")
)

// DiscontinuityError reports the first hop whose TokenOut differs from the next hop's TokenIn.
type DiscontinuityError struct {
	Index int
	Out   common.Address
	In    common.Address
}

func (e *DiscontinuityError) Error() string {
	return fmt.Sprintf("swappath: hop %d ends in %s but hop %d starts with %s", e.Index, e.Out.Hex(), e.Index+1, e.In.Hex())
}

func (e *DiscontinuityError) Unwrap() error { return ErrPathDiscontinuity }

type Hop struct {
	TokenIn  common.Address
	TokenOut common.Address
	Fee      uint32
}

// Path is an ordered hop chain. The zero value is invalid.
type Path []Hop

// Single returns a one-hop path.
func Single(tokenIn, tokenOut common.Address, fee uint32) Path {
	return Path{{TokenIn: tokenIn, TokenOut: tokenOut, Fee: fee}}
}

// Validate checks emptiness, fee width and the chain invariant.
func (p Path) Validate() error {
	if len(p) == 0 {
		return ErrEmptyPath
	}
	for i, h := range p {
		if h.Fee > MaxFee {
			return fmt.Errorf("%w: hop %d fee %d", ErrFeeOverflow, i, h.Fee)
		}
		if i+1 < len(p) && h.TokenOut != p[i+1].TokenIn {
			return &DiscontinuityError{Index: i, Out: h.TokenOut, In: p[i+1].TokenIn}
		}
	}
	return nil
}

func (p Path) TokenIn() common.Address  { return p[0].TokenIn }
func (p Path) TokenOut() common.Address { return p[len(p)-1].TokenOut }

// Tokens lists every token along the path, first input to last output.
func (p Path) Tokens() []common.Address {
	if len(p) == 0 {
		return nil
	}
	out := make([]common.Address, 0, len(p)+1)
	for _, h := range p {
		out = append(out, h.TokenIn)
	}
	return append(out, p[len(p)-1].TokenOut)
}

// Fees lists the hop fees in path order.
func (p Path) Fees() []uint32 {
	out := make([]uint32, len(p))
	for i, h := range p {
		out[i] = h.Fee
	}
	return out
}

// Reverse walks the path from the last output back to the first input.
func (p Path) Reverse() Path {
	out := make(Path, len(p))
	for i, h := range p {
		out[len(p)-1-i] = Hop{TokenIn: h.TokenOut, TokenOut: h.TokenIn, Fee: h.Fee}
	}
	return out
}

// EncodeForward emits tokenIn0|fee0|tokenIn1|fee1|...|tokenOutN.
func EncodeForward(p Path) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return pack(p), nil
}

// EncodeReverse emits the same chain from the last output to the first input,
// as exact-output quoting and swapping expect.
func EncodeReverse(p Path) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return pack(p.Reverse()), nil
}

func pack(p Path) []byte {
	buf := make([]byte, 0, len(p)*hopSize+addrSize)
	for _, h := range p {
		buf = append(buf, h.TokenIn.Bytes()...)
		buf = append(buf, byte(h.Fee>>16), byte(h.Fee>>8), byte(h.Fee))
	}
	return append(buf, p[len(p)-1].TokenOut.Bytes()...)
}

// Decode parses an encoded path. The result is chained by construction.
func Decode(b []byte) (Path, error) {
	if len(b) < hopSize+addrSize || (len(b)-addrSize)%hopSize != 0 {
		return nil, fmt.Errorf("%w: length %d", ErrMalformedPath, len(b))
	}
	n := (len(b) - addrSize) / hopSize
	out := make(Path, n)
	for i := 0; i < n; i++ {
		off := i * hopSize
		out[i] = Hop{
			TokenIn:  common.BytesToAddress(b[off : off+addrSize]),
			Fee:      uint32(b[off+addrSize])<<16 | uint32(b[off+addrSize+1])<<8 | uint32(b[off+addrSize+2]),
			TokenOut: common.BytesToAddress(b[off+hopSize : off+hopSize+addrSize]),
		}
	}
	return out, nil
}
