package xref

import (
	"bytes"
	"context"
	"errors"

	"github.com/lesonky/invoice-merge-tool/ir/raw"
	"github.com/lesonky/invoice-merge-tool/scanner"
)

// Repair scans the entire file to reconstruct the xref table.
// It looks for "<num> <gen> obj" headers at line starts and the last
// "trailer" dictionary. Later definitions of an object win, matching how
// incremental updates append.
func Repair(ctx context.Context, data []byte) (*Table, error) {
	t := newTable()
	t.Repaired = true
	latest := make(map[int]Entry)

	for i := 0; i < len(data); i++ {
		if i&0xffff == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if i > 0 && data[i-1] != '\n' && data[i-1] != '\r' {
			continue
		}
		if data[i] < '0' || data[i] > '9' {
			continue
		}
		num, gen, ok := objHeader(data[i:])
		if !ok {
			continue
		}
		latest[num] = Entry{Kind: EntryInUse, Offset: int64(i), Gen: gen}
	}
	if len(latest) == 0 {
		return nil, errors.New("repair failed: no objects found")
	}
	for num, e := range latest {
		t.entries[num] = e
	}

	if idx := bytes.LastIndex(data, []byte("trailer")); idx >= 0 {
		s := scanner.New(data, scanner.Config{})
		if err := s.SeekTo(int64(idx + len("trailer"))); err == nil {
			if obj, err := scanner.NewObjectReader(s, nil).ReadObject(); err == nil {
				if d, ok := obj.(*raw.DictObj); ok {
					t.mergeTrailer(d)
				}
			}
		}
	}
	if _, ok := t.Trailer.Lookup("Size"); !ok {
		max := 0
		for n := range latest {
			if n > max {
				max = n
			}
		}
		t.Trailer.Set("Size", raw.NumberInt(int64(max+1)))
	}
	return t, nil
}

// objHeader matches "N G obj" at the start of b.
func objHeader(b []byte) (num, gen int, ok bool) {
	i := 0
	readInt := func() (int, bool) {
		start := i
		v := 0
		for i < len(b) && b[i] >= '0' && b[i] <= '9' && i-start < 10 {
			v = v*10 + int(b[i]-'0')
			i++
		}
		return v, i > start
	}
	skipWS := func() bool {
		start := i
		for i < len(b) && (b[i] == ' ' || b[i] == '\t' || b[i] == '\r' || b[i] == '\n') {
			i++
		}
		return i > start
	}
	if num, ok = readInt(); !ok || !skipWS() {
		return 0, 0, false
	}
	if gen, ok = readInt(); !ok {
		return 0, 0, false
	}
	skipWS()
	if !bytes.HasPrefix(b[i:], []byte("obj")) {
		return 0, 0, false
	}
	i += 3
	if i < len(b) && !(b[i] == ' ' || b[i] == '\t' || b[i] == '\r' || b[i] == '\n' || b[i] == '<' || b[i] == '[' || b[i] == '/' || b[i] == '%') {
		return 0, 0, false
	}
	return num, gen, num > 0
}
