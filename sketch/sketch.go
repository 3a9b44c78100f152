package sketch

import (
	"errors"
	"fmt"
	"math/bits"
)

var (
	// ErrInvalidBand is returned when a Hamming band is malformed.
	ErrInvalidBand = errors.New("sketch: invalid band")
	// ErrNoBands is returned when a filter has no bands configured.
	ErrNoBands = errors.New("sketch: no bands configured")
)

// Sketch is a multi-block bit signature. Each block occupies a word-aligned
// run of blockWords uint64 words, bits packed little-endian.
type Sketch struct {
	words      []uint64
	blockWords int
}

// Blocks returns the number of blocks.
func (s Sketch) Blocks() int {
	if s.blockWords == 0 {
		return 0
	}
	return len(s.words) / s.blockWords
}

// Block returns the words of block i.
func (s Sketch) Block(i int) []uint64 {
	return s.words[i*s.blockWords : (i+1)*s.blockWords]
}

// Words returns the packed representation.
func (s Sketch) Words() []uint64 { return s.words }

// Bit reports whether bit i of the given block is set.
func (s Sketch) Bit(block, i int) bool {
	w := s.words[block*s.blockWords+i/64]
	return w&(1<<(uint(i)%64)) != 0
}

// Equal reports whether two sketches are bit-identical.
func (s Sketch) Equal(o Sketch) bool {
	if len(s.words) != len(o.words) || s.blockWords != o.blockWords {
		return false
	}
	for i := range s.words {
		if s.words[i] != o.words[i] {
			return false
		}
	}
	return true
}

// Hamming returns the Hamming distance between block i of a and b.
func Hamming(a, b Sketch, block int) int {
	wa, wb := a.Block(block), b.Block(block)
	var dist int
	for i := range wa {
		dist += bits.OnesCount64(wa[i] ^ wb[i])
	}
	return dist
}

// Band is a Hamming-count band [Lower, Upper]. A pair of sketches whose
// distance falls inside the band is judged uninteresting: the vectors are
// neither close to each other nor close to each other's negation.
type Band struct {
	Lower int `yaml:"lower" json:"lower"`
	Upper int `yaml:"upper" json:"upper"`
}

// Validate checks the band against a sketch width of width bits.
func (b Band) Validate(width int) error {
	if b.Lower < 0 || b.Upper > width {
		return fmt.Errorf("%w: [%d, %d] outside [0, %d]", ErrInvalidBand, b.Lower, b.Upper, width)
	}
	if b.Lower > b.Upper {
		return fmt.Errorf("%w: lower %d > upper %d", ErrInvalidBand, b.Lower, b.Upper)
	}
	return nil
}

// Outside reports whether distance h lies strictly outside the band.
func (b Band) Outside(h int) bool {
	return h < b.Lower || h > b.Upper
}

// ValidateBands checks every band for the given sketch width.
func ValidateBands(bands []Band, width int) error {
	if len(bands) == 0 {
		return ErrNoBands
	}
	for _, b := range bands {
		if err := b.Validate(width); err != nil {
			return err
		}
	}
	return nil
}

// Promising reports whether every block of a and b lies outside its band.
// Band i applies to block i; the last band is reused for further blocks.
func Promising(a, b Sketch, bands []Band) bool {
	n := a.Blocks()
	for i := 0; i < n; i++ {
		band := bands[min(i, len(bands)-1)]
		if !band.Outside(Hamming(a, b, i)) {
			return false
		}
	}
	return true
}
