package lattice

import (
	"bufio"
	"fmt"
	"io"
	"math/big"
	"strings"
	"unicode"
)

// ParseError reports malformed vector or basis text.
type ParseError struct {
	Offset int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("lattice: parse error at offset %d: %s", e.Offset, e.Msg)
}

type tokenizer struct {
	r   *bufio.Reader
	off int
}

func (t *tokenizer) next() (rune, error) {
	for {
		c, n, err := t.r.ReadRune()
		if err != nil {
			return 0, err
		}
		t.off += n
		if !unicode.IsSpace(c) && c != ',' {
			return c, nil
		}
	}
}

func (t *tokenizer) errorf(format string, args ...any) error {
	return &ParseError{Offset: t.off, Msg: fmt.Sprintf(format, args...)}
}

// readVector reads "[c0 c1 ...]" assuming the opening bracket was consumed.
func (t *tokenizer) readVector() (*Vector, error) {
	var coords []*big.Int
	for {
		c, err := t.next()
		if err != nil {
			return nil, t.errorf("unterminated vector")
		}
		if c == ']' {
			return FromBig(coords), nil
		}
		var sb strings.Builder
		for c == '-' || c == '+' || unicode.IsDigit(c) {
			sb.WriteRune(c)
			c, _, err = t.r.ReadRune()
			if err != nil {
				return nil, t.errorf("unterminated vector")
			}
			t.off += len(string(c))
		}
		if sb.Len() == 0 {
			return nil, t.errorf("unexpected %q", c)
		}
		x, ok := new(big.Int).SetString(sb.String(), 10)
		if !ok {
			return nil, t.errorf("invalid integer %q", sb.String())
		}
		coords = append(coords, x)
		if c == ']' {
			return FromBig(coords), nil
		}
		if !unicode.IsSpace(c) && c != ',' {
			return nil, t.errorf("unexpected %q", c)
		}
	}
}

// Parse parses a single vector in "[c0 c1 ...]" form.
func Parse(s string) (*Vector, error) {
	t := &tokenizer{r: bufio.NewReader(strings.NewReader(s))}
	c, err := t.next()
	if err != nil || c != '[' {
		return nil, t.errorf("expected '['")
	}
	v, err := t.readVector()
	if err != nil {
		return nil, err
	}
	if c, err := t.next(); err != io.EOF {
		return nil, t.errorf("trailing %q", c)
	}
	return v, nil
}

// ParseBasis reads a basis in "[[...] [...] ...]" form. All rows must have
// the same dimension.
func ParseBasis(r io.Reader) ([]*Vector, error) {
	t := &tokenizer{r: bufio.NewReader(r)}
	c, err := t.next()
	if err != nil {
		return nil, ErrEmptyBasis
	}
	if c != '[' {
		return nil, t.errorf("expected '['")
	}
	var basis []*Vector
	for {
		c, err := t.next()
		if err != nil {
			return nil, t.errorf("unterminated basis")
		}
		if c == ']' {
			break
		}
		if c != '[' {
			return nil, t.errorf("expected '[' or ']', got %q", c)
		}
		v, err := t.readVector()
		if err != nil {
			return nil, err
		}
		if len(basis) > 0 {
			if err := CheckDim(v, basis[0].Dim()); err != nil {
				return nil, err
			}
		}
		basis = append(basis, v)
	}
	if len(basis) == 0 {
		return nil, ErrEmptyBasis
	}
	return basis, nil
}

// FormatBasis writes basis in the format accepted by ParseBasis.
func FormatBasis(w io.Writer, basis []*Vector) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("[")
	for i, v := range basis {
		if i > 0 {
			bw.WriteString("\n ")
		}
		bw.WriteString(v.String())
	}
	bw.WriteString("]\n")
	return bw.Flush()
}
