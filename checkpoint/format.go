package checkpoint

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/hupe1980/latsieve"
	"github.com/hupe1980/latsieve/lattice"
)

const (
	header = "latsieve-checkpoint"
	// Version is the text format version written by Encode.
	Version = 1
)

var (
	// ErrFormat is returned for malformed checkpoints.
	ErrFormat = errors.New("checkpoint: malformed")
	// ErrChecksum is returned when the stored checksum does not match.
	ErrChecksum = errors.New("checkpoint: checksum mismatch")
	// ErrVersion is returned for unsupported format versions.
	ErrVersion = errors.New("checkpoint: unsupported version")
)

// FormatError reports a malformed line.
type FormatError struct {
	Line int
	Msg  string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("checkpoint: line %d: %s", e.Line, e.Msg)
}

// Unwrap returns ErrFormat.
func (e *FormatError) Unwrap() error { return ErrFormat }

// Encode writes snap in text form.
func Encode(w io.Writer, snap *latsieve.Snapshot) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %d\n", header, Version)
	fmt.Fprintf(&buf, "dimension %d\n", snap.Dimension)
	fmt.Fprintf(&buf, "seed %d\n", snap.Seed)
	fmt.Fprintf(&buf, "state %s\n", snap.State)
	fmt.Fprintf(&buf, "reason %s\n", strconv.Quote(snap.Reason))

	names := make([]string, 0, len(snap.Counters))
	for name := range snap.Counters {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(&buf, "counter %s %d\n", name, snap.Counters[name])
	}

	workers := make([]int, 0, len(snap.SamplerCounters))
	for w := range snap.SamplerCounters {
		workers = append(workers, w)
	}
	slices.Sort(workers)
	for _, w := range workers {
		fmt.Fprintf(&buf, "sampler %d %d\n", w, snap.SamplerCounters[w])
	}

	if snap.Shortest != nil {
		fmt.Fprintf(&buf, "shortest %s\n", snap.Shortest)
	} else {
		buf.WriteString("shortest -\n")
	}
	writeVectors(&buf, "list", snap.List)
	writeVectors(&buf, "queue", snap.Queue)

	fmt.Fprintf(&buf, "checksum %016x\n", xxhash.Sum64(buf.Bytes()))
	_, err := w.Write(buf.Bytes())
	return err
}

func writeVectors(buf *bytes.Buffer, section string, vs []*lattice.Vector) {
	fmt.Fprintf(buf, "%s %d\n", section, len(vs))
	for _, v := range vs {
		buf.WriteString(v.String())
		buf.WriteByte('\n')
	}
}

// Marshal returns the text form of snap.
func Marshal(snap *latsieve.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a text checkpoint. The checksum is verified before any line
// is interpreted.
func Decode(r io.Reader) (*latsieve.Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

// Unmarshal parses a text checkpoint.
func Unmarshal(data []byte) (*latsieve.Snapshot, error) {
	body, err := verify(data)
	if err != nil {
		return nil, err
	}
	p := &parser{sc: bufio.NewScanner(bytes.NewReader(body))}
	p.sc.Buffer(make([]byte, 0, 64*1024), len(body)+1)
	return p.snapshot()
}

// verify checks the trailing checksum line and returns the bytes it covers.
func verify(data []byte) ([]byte, error) {
	trimmed := bytes.TrimSuffix(data, []byte("\n"))
	i := bytes.LastIndexByte(trimmed, '\n')
	if i < 0 {
		return nil, &FormatError{Line: 1, Msg: "missing checksum"}
	}
	body, last := data[:i+1], string(trimmed[i+1:])
	hex, ok := strings.CutPrefix(last, "checksum ")
	if !ok {
		return nil, &FormatError{Line: bytes.Count(body, []byte("\n")) + 1, Msg: "missing checksum"}
	}
	want, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		return nil, &FormatError{Line: bytes.Count(body, []byte("\n")) + 1, Msg: fmt.Sprintf("invalid checksum %q", hex)}
	}
	if got := xxhash.Sum64(body); got != want {
		return nil, fmt.Errorf("%w: stored %016x, computed %016x", ErrChecksum, want, got)
	}
	return body, nil
}

type parser struct {
	sc   *bufio.Scanner
	line int
	// pending is a line read ahead by an optional section.
	pending *string
}

func (p *parser) errorf(format string, args ...any) error {
	return &FormatError{Line: p.line, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) next() (string, error) {
	if p.pending != nil {
		s := *p.pending
		p.pending = nil
		return s, nil
	}
	if !p.sc.Scan() {
		if err := p.sc.Err(); err != nil {
			return "", err
		}
		p.line++
		return "", p.errorf("unexpected end of checkpoint")
	}
	p.line++
	return p.sc.Text(), nil
}

func (p *parser) unread(s string) { p.pending = &s }

// field reads a "key value" line.
func (p *parser) field(key string) (string, error) {
	s, err := p.next()
	if err != nil {
		return "", err
	}
	v, ok := strings.CutPrefix(s, key+" ")
	if !ok {
		return "", p.errorf("expected %q, got %q", key, s)
	}
	return v, nil
}

func (p *parser) uint(key string) (uint64, error) {
	v, err := p.field(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, p.errorf("invalid %s %q", key, v)
	}
	return n, nil
}

func (p *parser) vector(s string, dim int) (*lattice.Vector, error) {
	v, err := lattice.Parse(s)
	if err != nil {
		return nil, p.errorf("%v", err)
	}
	if v.Dim() != dim {
		return nil, p.errorf("vector has dimension %d, want %d", v.Dim(), dim)
	}
	return v, nil
}

func (p *parser) snapshot() (*latsieve.Snapshot, error) {
	s, err := p.next()
	if err != nil {
		return nil, err
	}
	ver, ok := strings.CutPrefix(s, header+" ")
	if !ok {
		return nil, p.errorf("not a checkpoint")
	}
	if ver != strconv.Itoa(Version) {
		return nil, fmt.Errorf("%w: %s", ErrVersion, ver)
	}

	snap := &latsieve.Snapshot{
		Counters:        make(map[string]uint64),
		SamplerCounters: make(map[int]uint64),
	}
	dim, err := p.uint("dimension")
	if err != nil {
		return nil, err
	}
	if dim == 0 || dim > 1<<20 {
		return nil, p.errorf("invalid dimension %d", dim)
	}
	snap.Dimension = int(dim)
	if snap.Seed, err = p.uint("seed"); err != nil {
		return nil, err
	}
	st, err := p.field("state")
	if err != nil {
		return nil, err
	}
	if snap.State, err = latsieve.ParseState(st); err != nil {
		return nil, p.errorf("%v", err)
	}
	reason, err := p.field("reason")
	if err != nil {
		return nil, err
	}
	if snap.Reason, err = strconv.Unquote(reason); err != nil {
		return nil, p.errorf("invalid reason %s", reason)
	}

	for {
		s, err := p.next()
		if err != nil {
			return nil, err
		}
		fields := strings.Fields(s)
		if len(fields) != 3 || (fields[0] != "counter" && fields[0] != "sampler") {
			p.unread(s)
			break
		}
		n, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			return nil, p.errorf("invalid value %q", fields[2])
		}
		if fields[0] == "counter" {
			if _, dup := snap.Counters[fields[1]]; dup {
				return nil, p.errorf("duplicate counter %q", fields[1])
			}
			snap.Counters[fields[1]] = n
			continue
		}
		w, err := strconv.Atoi(fields[1])
		if err != nil || w < 0 {
			return nil, p.errorf("invalid worker %q", fields[1])
		}
		if _, dup := snap.SamplerCounters[w]; dup {
			return nil, p.errorf("duplicate sampler %d", w)
		}
		snap.SamplerCounters[w] = n
	}

	sh, err := p.field("shortest")
	if err != nil {
		return nil, err
	}
	if sh != "-" {
		if snap.Shortest, err = p.vector(sh, snap.Dimension); err != nil {
			return nil, err
		}
	}
	if snap.List, err = p.vectors("list", snap.Dimension); err != nil {
		return nil, err
	}
	if snap.Queue, err = p.vectors("queue", snap.Dimension); err != nil {
		return nil, err
	}
	if p.sc.Scan() {
		p.line++
		return nil, p.errorf("trailing data %q", p.sc.Text())
	}
	return snap, nil
}

func (p *parser) vectors(section string, dim int) ([]*lattice.Vector, error) {
	n, err := p.uint(section)
	if err != nil {
		return nil, err
	}
	vs := make([]*lattice.Vector, 0, min(n, 1<<16))
	for i := uint64(0); i < n; i++ {
		s, err := p.next()
		if err != nil {
			return nil, err
		}
		v, err := p.vector(s, dim)
		if err != nil {
			return nil, err
		}
		vs = append(vs, v)
	}
	return vs, nil
}
