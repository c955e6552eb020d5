// Package xref locates every indirect object of a PDF file.
package xref

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/lesonky/invoice-merge-tool/filters"
	"github.com/lesonky/invoice-merge-tool/ir/raw"
	"github.com/lesonky/invoice-merge-tool/recovery"
	"github.com/lesonky/invoice-merge-tool/scanner"
)

type EntryKind int

const (
	EntryFree EntryKind = iota
	EntryInUse
	// EntryCompressed objects live inside an object stream.
	EntryCompressed
)

// Entry is one cross-reference record. Offset and Gen are set for in-use
// objects; Stream and Index for compressed ones.
type Entry struct {
	Kind   EntryKind
	Offset int64
	Gen    int
	Stream int
	Index  int
}

// Table is the merged view of every xref section in a file, newest first.
type Table struct {
	entries  map[int]Entry
	Trailer  *raw.DictObj
	Repaired bool
	// Sections counts the xref sections followed through /Prev.
	Sections int
}

func newTable() *Table { return &Table{entries: make(map[int]Entry), Trailer: raw.Dict()} }

func (t *Table) Lookup(objNum int) (Entry, bool) {
	e, ok := t.entries[objNum]
	if !ok || e.Kind == EntryFree {
		return Entry{}, false
	}
	return e, true
}

// Objects returns in-use and compressed object numbers in ascending order.
func (t *Table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for k, e := range t.entries {
		if e.Kind != EntryFree {
			out = append(out, k)
		}
	}
	sort.Ints(out)
	return out
}

// add records e unless a newer section already described objNum.
func (t *Table) add(objNum int, e Entry) {
	if _, seen := t.entries[objNum]; seen {
		return
	}
	t.entries[objNum] = e
}

// sectionOnlyKeys describe a single xref section rather than the document.
var sectionOnlyKeys = map[string]bool{
	"Prev": true, "XRefStm": true, "Type": true, "W": true, "Index": true,
	"Filter": true, "DecodeParms": true, "Length": true,
}

// mergeTrailer copies keys the newer trailer does not define.
func (t *Table) mergeTrailer(d *raw.DictObj) {
	if d == nil {
		return
	}
	for _, k := range d.Keys() {
		if _, ok := t.Trailer.Lookup(k); !ok && !sectionOnlyKeys[k] {
			t.Trailer.Set(k, d.Get(k))
		}
	}
}

type ResolverConfig struct {
	MaxXRefDepth int
	Recovery     recovery.Strategy
	Limits       filters.Limits
}

// Resolver reads the xref chain starting at startxref and falls back to a
// full-file scan when the chain is unusable.
type Resolver struct {
	cfg      ResolverConfig
	pipeline *filters.Pipeline
}

func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.MaxXRefDepth <= 0 {
		cfg.MaxXRefDepth = 50
	}
	return &Resolver{cfg: cfg, pipeline: filters.DefaultPipeline(cfg.Limits)}
}

func (r *Resolver) Resolve(ctx context.Context, data []byte) (*Table, error) {
	t, err := r.resolveChain(ctx, data)
	if err == nil {
		return t, nil
	}
	if r.cfg.Recovery != nil {
		action := r.cfg.Recovery.OnError(ctx, err, recovery.Location{Component: "xref"})
		if !action.Continue() {
			return nil, err
		}
	}
	rt, rerr := Repair(ctx, data)
	if rerr != nil {
		return nil, fmt.Errorf("resolve xref: %v; repair: %w", err, rerr)
	}
	return rt, nil
}

func (r *Resolver) resolveChain(ctx context.Context, data []byte) (*Table, error) {
	offset, err := findStartXRef(data)
	if err != nil {
		return nil, err
	}
	t := newTable()
	visited := make(map[int64]bool)
	for offset >= 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if visited[offset] {
			return nil, fmt.Errorf("xref /Prev loop at offset %d", offset)
		}
		if len(visited) >= r.cfg.MaxXRefDepth {
			return nil, errors.New("xref chain exceeds depth limit")
		}
		visited[offset] = true
		if offset >= int64(len(data)) {
			return nil, fmt.Errorf("xref offset out of range: %d", offset)
		}
		trailer, err := r.readSection(ctx, data, offset, t)
		if err != nil {
			return nil, err
		}
		t.Sections++
		t.mergeTrailer(trailer)
		offset = -1
		if prev, ok := trailer.Int("Prev"); ok && prev > 0 {
			offset = prev
		}
	}
	if len(t.entries) == 0 {
		return nil, errors.New("xref has no entries")
	}
	return t, nil
}

// readSection parses either a classic table or a cross-reference stream at
// offset and returns its trailer dictionary.
func (r *Resolver) readSection(ctx context.Context, data []byte, offset int64, t *Table) (*raw.DictObj, error) {
	rest := bytes.TrimLeft(data[offset:], " \t\r\n\f\x00")
	start := int64(len(data)) - int64(len(rest))
	if bytes.HasPrefix(rest, []byte("xref")) {
		trailer, err := parseClassic(data, start+4, t, r.cfg.Recovery)
		if err != nil {
			return nil, err
		}
		// Hybrid files point at an additional stream for compressed objects.
		if stm, ok := trailer.Int("XRefStm"); ok && stm > 0 && stm < int64(len(data)) {
			if _, err := r.parseStream(ctx, data, stm, t); err != nil {
				return nil, fmt.Errorf("hybrid xref stream: %w", err)
			}
		}
		return trailer, nil
	}
	return r.parseStream(ctx, data, start, t)
}

func parseClassic(data []byte, pos int64, t *Table, rec recovery.Strategy) (*raw.DictObj, error) {
	s := scanner.New(data, scanner.Config{Recovery: rec})
	if err := s.SeekTo(pos); err != nil {
		return nil, err
	}
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, fmt.Errorf("xref table: %w", err)
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "trailer" {
			obj, err := scanner.NewObjectReader(s, rec).ReadObject()
			if err != nil {
				return nil, fmt.Errorf("trailer: %w", err)
			}
			d, ok := obj.(*raw.DictObj)
			if !ok {
				return nil, errors.New("trailer is not a dictionary")
			}
			return d, nil
		}
		cnt, err := s.Next()
		if err != nil {
			return nil, fmt.Errorf("xref table: %w", err)
		}
		if tok.Type != scanner.TokenNumber || !tok.IsInt || cnt.Type != scanner.TokenNumber || !cnt.IsInt {
			return nil, fmt.Errorf("invalid xref subsection header at offset %d", tok.Pos)
		}
		first := int(tok.Int)
		for i := 0; i < int(cnt.Int); i++ {
			off, e1 := s.Next()
			gen, e2 := s.Next()
			kind, e3 := s.Next()
			if err := errors.Join(e1, e2, e3); err != nil {
				return nil, fmt.Errorf("unexpected end of xref section: %w", err)
			}
			if off.Type != scanner.TokenNumber || gen.Type != scanner.TokenNumber || kind.Type != scanner.TokenKeyword {
				return nil, fmt.Errorf("invalid xref entry at offset %d", off.Pos)
			}
			e := Entry{Kind: EntryFree, Offset: off.Int, Gen: int(gen.Int)}
			if kind.Str == "n" && off.Int > 0 {
				e.Kind = EntryInUse
			}
			t.add(first+i, e)
		}
	}
}

func (r *Resolver) parseStream(ctx context.Context, data []byte, offset int64, t *Table) (*raw.DictObj, error) {
	s := scanner.New(data, scanner.Config{Recovery: r.cfg.Recovery})
	if err := s.SeekTo(offset); err != nil {
		return nil, err
	}
	_, obj, err := scanner.NewObjectReader(s, r.cfg.Recovery).ReadIndirect()
	if err != nil {
		return nil, fmt.Errorf("xref stream: %w", err)
	}
	st, ok := obj.(*raw.StreamObj)
	if !ok || st.Dict.Name("Type") != "XRef" {
		return nil, fmt.Errorf("no xref section at offset %d", offset)
	}
	payload, err := r.pipeline.DecodeStream(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("decode xref stream: %w", err)
	}
	widths, err := intArray(st.Dict.Get("W"))
	if err != nil || len(widths) != 3 {
		return nil, errors.New("xref stream /W must hold three integers")
	}
	size, _ := st.Dict.Int("Size")
	index := []int{0, int(size)}
	if idx, err := intArray(st.Dict.Get("Index")); err == nil && len(idx) >= 2 {
		index = idx
	}
	rowLen := widths[0] + widths[1] + widths[2]
	if rowLen == 0 {
		return nil, errors.New("xref stream /W is empty")
	}
	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		first, count := index[i], index[i+1]
		for j := 0; j < count; j++ {
			if pos+rowLen > len(payload) {
				return st.Dict, nil
			}
			row := payload[pos : pos+rowLen]
			pos += rowLen
			typ := int64(1)
			if widths[0] > 0 {
				typ = readField(row[:widths[0]])
			}
			f2 := readField(row[widths[0] : widths[0]+widths[1]])
			f3 := readField(row[widths[0]+widths[1]:])
			switch typ {
			case 0:
				t.add(first+j, Entry{Kind: EntryFree})
			case 1:
				t.add(first+j, Entry{Kind: EntryInUse, Offset: f2, Gen: int(f3)})
			case 2:
				t.add(first+j, Entry{Kind: EntryCompressed, Stream: int(f2), Index: int(f3)})
			}
		}
	}
	return st.Dict, nil
}

func readField(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

func intArray(o raw.Object) ([]int, error) {
	arr, ok := o.(*raw.ArrayObj)
	if !ok {
		return nil, errors.New("not an array")
	}
	out := make([]int, 0, len(arr.Items))
	for _, it := range arr.Items {
		n, ok := it.(raw.NumberObj)
		if !ok {
			return nil, errors.New("non-numeric array element")
		}
		out = append(out, int(n.Int()))
	}
	return out, nil
}

// findStartXRef reads the offset after the last startxref keyword.
func findStartXRef(data []byte) (int64, error) {
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		return 0, errors.New("startxref not found")
	}
	rest := bytes.TrimLeft(data[idx+len("startxref"):], " \t\r\n\f\x00")
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	val, err := strconv.ParseInt(string(rest[:end]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse startxref: %w", err)
	}
	if val <= 0 || val >= int64(len(data)) {
		return 0, fmt.Errorf("xref offset out of range: %d", val)
	}
	return val, nil
}
