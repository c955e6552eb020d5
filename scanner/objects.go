package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/lesonky/invoice-merge-tool/ir/raw"
	"github.com/lesonky/invoice-merge-tool/recovery"
)

// ErrNotObject is returned when the bytes at an offset do not start with an
// "N G obj" header.
var ErrNotObject = errors.New("not an indirect object header")

// LengthResolver resolves an indirect /Length value before a stream payload
// is sliced. It may return false when the value is unavailable.
type LengthResolver func(ref raw.ObjectRef) (int64, bool)

// ObjectReader turns tokens into raw objects. It keeps a one-token pushback
// stack so dictionaries and arrays can peek at their terminators.
type ObjectReader struct {
	s        *Scanner
	buf      []Token
	rec      recovery.Strategy
	Lengths  LengthResolver
	MaxDepth int
}

func NewObjectReader(s *Scanner, rec recovery.Strategy) *ObjectReader {
	return &ObjectReader{s: s, rec: rec, MaxDepth: 100}
}

func (r *ObjectReader) Scanner() *Scanner { return r.s }

func (r *ObjectReader) next() (Token, error) {
	if l := len(r.buf); l > 0 {
		t := r.buf[l-1]
		r.buf = r.buf[:l-1]
		return t, nil
	}
	return r.s.Next()
}

func (r *ObjectReader) unread(tok Token) { r.buf = append(r.buf, tok) }

// Reset discards pushed-back tokens and moves the scanner.
func (r *ObjectReader) Reset(offset int64) error {
	r.buf = r.buf[:0]
	return r.s.SeekTo(offset)
}

// ReadIndirect parses "N G obj ... endobj" at the current position, attaching
// a stream payload when one follows the dictionary.
func (r *ObjectReader) ReadIndirect() (raw.ObjectRef, raw.Object, error) {
	tokNum, err := r.next()
	if err != nil {
		return raw.ObjectRef{}, nil, err
	}
	tokGen, err := r.next()
	if err != nil {
		return raw.ObjectRef{}, nil, err
	}
	tokObj, err := r.next()
	if err != nil {
		return raw.ObjectRef{}, nil, err
	}
	if tokNum.Type != TokenNumber || !tokNum.IsInt || tokGen.Type != TokenNumber || !tokGen.IsInt ||
		tokObj.Type != TokenKeyword || tokObj.Str != "obj" {
		return raw.ObjectRef{}, nil, fmt.Errorf("%w at offset %d", ErrNotObject, tokNum.Pos)
	}
	ref := raw.ObjectRef{Num: int(tokNum.Int), Gen: int(tokGen.Int)}

	obj, err := r.ReadObject()
	if err != nil {
		return ref, nil, fmt.Errorf("object %v: %w", ref, err)
	}
	if dict, ok := obj.(*raw.DictObj); ok {
		r.s.SetNextStreamLength(r.streamLength(dict))
		tok, err := r.next()
		if err == nil && tok.Type == TokenStream {
			obj = raw.NewStream(dict, tok.Bytes)
		} else if err == nil {
			r.unread(tok)
		}
		r.s.SetNextStreamLength(-1)
	}
	return ref, obj, nil
}

func (r *ObjectReader) streamLength(dict *raw.DictObj) int64 {
	switch v := dict.Get("Length").(type) {
	case raw.NumberObj:
		return v.Int()
	case raw.RefObj:
		if r.Lengths != nil {
			if n, ok := r.Lengths(v.R); ok {
				return n
			}
		}
	}
	return -1
}

// ReadObject parses one direct object.
func (r *ObjectReader) ReadObject() (raw.Object, error) {
	return r.readObject(0)
}

func (r *ObjectReader) readObject(depth int) (raw.Object, error) {
	if r.MaxDepth > 0 && depth > r.MaxDepth {
		return nil, errors.New("object nesting too deep")
	}
	tok, err := r.next()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case TokenName:
		return raw.NameObj{Val: tok.Str}, nil
	case TokenNumber:
		if tok.IsInt {
			return raw.NumberInt(tok.Int), nil
		}
		return raw.NumberFloat(tok.Float), nil
	case TokenBoolean:
		return raw.Bool(tok.Bool), nil
	case TokenNull:
		return raw.NullObj{}, nil
	case TokenString:
		return raw.StringObj{Bytes: append([]byte(nil), tok.Bytes...), Hex: tok.Hex}, nil
	case TokenRef:
		return raw.Ref(int(tok.Int), tok.Gen), nil
	case TokenArray:
		return r.readArray(depth)
	case TokenDict:
		return r.readDict(depth)
	}
	return nil, fmt.Errorf("unexpected token %q at offset %d", tok.Str, tok.Pos)
}

func (r *ObjectReader) readArray(depth int) (raw.Object, error) {
	arr := &raw.ArrayObj{}
	for {
		tok, err := r.next()
		if err != nil {
			if errors.Is(err, io.EOF) && r.fix(errors.New("unterminated array"), tok.Pos) {
				return arr, nil
			}
			return nil, err
		}
		if tok.Type == TokenKeyword && tok.Str == "]" {
			return arr, nil
		}
		if tok.Type == TokenKeyword && (tok.Str == "endobj" || tok.Str == ">>") {
			if r.fix(errors.New("unterminated array"), tok.Pos) {
				r.unread(tok)
				return arr, nil
			}
			return nil, errors.New("unterminated array")
		}
		r.unread(tok)
		item, err := r.readObject(depth + 1)
		if err != nil {
			return nil, err
		}
		arr.Append(item)
	}
}

func (r *ObjectReader) readDict(depth int) (raw.Object, error) {
	d := raw.Dict()
	for {
		tok, err := r.next()
		if err != nil {
			if errors.Is(err, io.EOF) && r.fix(errors.New("unterminated dictionary"), tok.Pos) {
				return d, nil
			}
			return nil, err
		}
		if tok.Type == TokenKeyword && tok.Str == ">>" {
			return d, nil
		}
		if tok.Type != TokenName {
			if (tok.Type == TokenKeyword && tok.Str == "endobj") || tok.Type == TokenStream {
				if r.fix(errors.New("dictionary not closed before "+tok.Str), tok.Pos) {
					r.unread(tok)
					return d, nil
				}
			}
			return nil, fmt.Errorf("expected name in dict at offset %d", tok.Pos)
		}
		val, err := r.readObject(depth + 1)
		if err != nil {
			return nil, err
		}
		// A null value is equivalent to an absent key.
		if _, isNull := val.(raw.NullObj); isNull {
			continue
		}
		d.Set(tok.Str, val)
	}
}

func (r *ObjectReader) fix(err error, pos int64) bool {
	if r.rec == nil {
		return false
	}
	return r.rec.OnError(context.Background(), err, recovery.Location{ByteOffset: pos, Component: "parser"}).Continue()
}
