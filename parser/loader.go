package parser

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/lesonky/invoice-merge-tool/filters"
	"github.com/lesonky/invoice-merge-tool/ir/raw"
	"github.com/lesonky/invoice-merge-tool/observability"
	"github.com/lesonky/invoice-merge-tool/recovery"
	"github.com/lesonky/invoice-merge-tool/scanner"
	"github.com/lesonky/invoice-merge-tool/xref"
)

// loader pulls objects out of the file bytes using the resolved xref table,
// falling back to a scanned table for entries whose offsets are wrong.
type loader struct {
	data     []byte
	table    *xref.Table
	repaired *xref.Table
	cfg      Config
	pipeline *filters.Pipeline
	log      observability.Logger
}

func newLoader(data []byte, table *xref.Table, cfg Config, limits filters.Limits) *loader {
	return &loader{
		data:     data,
		table:    table,
		cfg:      cfg,
		pipeline: filters.DefaultPipeline(limits),
		log:      cfg.Logger,
	}
}

func (l *loader) scannerConfig() scanner.Config {
	return scanner.Config{
		Recovery:        l.cfg.Recovery,
		MaxStringLength: l.cfg.Limits.MaxStringLength,
		MaxStreamLength: l.cfg.Limits.MaxStreamLength,
	}
}

func (l *loader) reader() *scanner.ObjectReader {
	or := scanner.NewObjectReader(scanner.New(l.data, l.scannerConfig()), l.cfg.Recovery)
	if d := l.cfg.Limits.MaxIndirectDepth; d > 0 {
		or.MaxDepth = d
	}
	or.Lengths = l.lengthOf
	return or
}

// loadDirect reads every in-use object stored at a file offset.
func (l *loader) loadDirect(ctx context.Context, doc *raw.Document) error {
	for _, num := range l.table.Objects() {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, _ := l.table.Lookup(num)
		if e.Kind != xref.EntryInUse {
			continue
		}
		ref, obj, err := l.readAt(e.Offset, num)
		if err != nil {
			ref, obj, err = l.readRepaired(ctx, num, err)
		}
		if err != nil {
			if l.skip(ctx, err, num, e.Offset) {
				continue
			}
			return fmt.Errorf("load object %d: %w", num, err)
		}
		doc.Objects[ref] = obj
	}
	return nil
}

func (l *loader) readAt(offset int64, num int) (raw.ObjectRef, raw.Object, error) {
	if offset <= 0 || offset >= int64(len(l.data)) {
		return raw.ObjectRef{}, nil, fmt.Errorf("offset %d out of range", offset)
	}
	r := l.reader()
	if err := r.Reset(offset); err != nil {
		return raw.ObjectRef{}, nil, err
	}
	ref, obj, err := r.ReadIndirect()
	if err != nil {
		return ref, nil, err
	}
	if ref.Num != num {
		return ref, nil, fmt.Errorf("object header number mismatch: want %d, found %d", num, ref.Num)
	}
	return ref, obj, nil
}

// readRepaired retries num using offsets found by scanning the file.
func (l *loader) readRepaired(ctx context.Context, num int, cause error) (raw.ObjectRef, raw.Object, error) {
	if l.table.Repaired {
		return raw.ObjectRef{}, nil, cause
	}
	if l.repaired == nil {
		t, err := xref.Repair(ctx, l.data)
		if err != nil {
			return raw.ObjectRef{}, nil, errors.Join(cause, err)
		}
		l.repaired = t
	}
	e, ok := l.repaired.Lookup(num)
	if !ok {
		return raw.ObjectRef{}, nil, cause
	}
	l.log.Debug("object found by rescanning", observability.Int("object", num))
	return l.readAt(e.Offset, num)
}

func (l *loader) skip(ctx context.Context, err error, num int, offset int64) bool {
	if l.cfg.Recovery == nil {
		return false
	}
	return l.cfg.Recovery.OnError(ctx, err, recovery.Location{
		ByteOffset: offset,
		ObjectNum:  num,
		Component:  "object",
	}).Continue()
}

// lengthOf resolves an indirect /Length without disturbing the caller's
// scanner.
func (l *loader) lengthOf(ref raw.ObjectRef) (int64, bool) {
	e, ok := l.table.Lookup(ref.Num)
	if !ok || e.Kind != xref.EntryInUse || e.Offset <= 0 || e.Offset >= int64(len(l.data)) {
		return 0, false
	}
	r := scanner.NewObjectReader(scanner.New(l.data, scanner.Config{}), nil)
	if err := r.Reset(e.Offset); err != nil {
		return 0, false
	}
	_, obj, err := r.ReadIndirect()
	if err != nil {
		return 0, false
	}
	n, ok := obj.(raw.NumberObj)
	return n.Int(), ok
}

// loadCompressed expands object streams. It runs after decryption because
// object streams are encrypted as a whole.
func (l *loader) loadCompressed(ctx context.Context, doc *raw.Document) error {
	byStream := make(map[int][]int)
	for _, num := range l.table.Objects() {
		e, _ := l.table.Lookup(num)
		if e.Kind == xref.EntryCompressed {
			byStream[e.Stream] = append(byStream[e.Stream], num)
		}
	}
	streams := make([]int, 0, len(byStream))
	for s := range byStream {
		streams = append(streams, s)
	}
	sort.Ints(streams)

	for _, sn := range streams {
		objs, err := l.expandObjectStream(ctx, doc, sn)
		if err != nil {
			if l.skip(ctx, err, sn, 0) {
				continue
			}
			return fmt.Errorf("object stream %d: %w", sn, err)
		}
		for _, num := range byStream[sn] {
			if obj, ok := objs[num]; ok {
				doc.Objects[raw.ObjectRef{Num: num}] = obj
			}
		}
	}
	return nil
}

func (l *loader) expandObjectStream(ctx context.Context, doc *raw.Document, num int) (map[int]raw.Object, error) {
	var st *raw.StreamObj
	for ref, obj := range doc.Objects {
		if ref.Num == num {
			st, _ = obj.(*raw.StreamObj)
			break
		}
	}
	if st == nil {
		return nil, errors.New("object stream missing")
	}
	n, _ := st.Dict.Int("N")
	first, _ := st.Dict.Int("First")
	data, err := l.pipeline.DecodeStream(ctx, st)
	if err != nil {
		return nil, err
	}
	if first < 0 || first > int64(len(data)) {
		return nil, errors.New("object stream First exceeds length")
	}

	hs := scanner.New(data[:first], scanner.Config{})
	pairs := make([]int64, 0, 2*n)
	for int64(len(pairs)) < 2*n {
		tok, err := hs.Next()
		if err != nil {
			break
		}
		if tok.Type == scanner.TokenNumber && tok.IsInt {
			pairs = append(pairs, tok.Int)
		}
	}

	body := data[first:]
	out := make(map[int]raw.Object, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		objNum, off := int(pairs[i]), pairs[i+1]
		if off < 0 || off >= int64(len(body)) {
			continue
		}
		r := scanner.NewObjectReader(scanner.New(body, l.scannerConfig()), l.cfg.Recovery)
		if err := r.Reset(off); err != nil {
			continue
		}
		obj, err := r.ReadObject()
		if err != nil {
			if l.skip(ctx, err, objNum, off) {
				continue
			}
			return nil, fmt.Errorf("object %d: %w", objNum, err)
		}
		out[objNum] = obj
	}
	return out, nil
}
