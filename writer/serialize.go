package writer

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/lesonky/invoice-merge-tool/ir/raw"
)

// SerializeObject renders ref as an indirect object ("N G obj ... endobj").
func SerializeObject(ref raw.ObjectRef, obj raw.Object) []byte {
	var buf bytes.Buffer
	writeIndirect(&buf, ref, obj)
	return buf.Bytes()
}

func writeIndirect(w io.Writer, ref raw.ObjectRef, obj raw.Object) {
	fmt.Fprintf(w, "%d %d obj\n", ref.Num, ref.Gen)
	writeObject(w, obj)
	io.WriteString(w, "\nendobj\n")
}

func writeObject(w io.Writer, o raw.Object) {
	switch v := o.(type) {
	case raw.NameObj:
		io.WriteString(w, "/"+escapeName(v.Val))
	case raw.NumberObj:
		io.WriteString(w, formatNumber(v))
	case raw.BoolObj:
		if v.V {
			io.WriteString(w, "true")
		} else {
			io.WriteString(w, "false")
		}
	case raw.StringObj:
		if v.IsHex() {
			io.WriteString(w, "<"+hex.EncodeToString(v.Bytes)+">")
		} else {
			w.Write(escapeLiteralString(v.Bytes))
		}
	case raw.RefObj:
		fmt.Fprintf(w, "%d %d R", v.R.Num, v.R.Gen)
	case *raw.ArrayObj:
		io.WriteString(w, "[")
		for i, it := range v.Items {
			if i > 0 {
				io.WriteString(w, " ")
			}
			writeObject(w, it)
		}
		io.WriteString(w, "]")
	case *raw.DictObj:
		io.WriteString(w, "<<")
		for _, k := range v.Keys() {
			io.WriteString(w, "/"+escapeName(k)+" ")
			writeObject(w, v.Get(k))
		}
		io.WriteString(w, ">>")
	case *raw.StreamObj:
		writeObject(w, v.Dictionary())
		io.WriteString(w, "\nstream\n")
		w.Write(v.Data)
		io.WriteString(w, "\nendstream")
	default:
		io.WriteString(w, "null")
	}
}

func formatNumber(n raw.NumberObj) string {
	if n.IsInteger() {
		return strconv.FormatInt(n.Int(), 10)
	}
	f := n.Float()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "0"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// escapeName encodes bytes outside the regular character set as #xx.
func escapeName(value string) string {
	var b bytes.Buffer
	for i := 0; i < len(value); i++ {
		ch := value[i]
		if ch > 0x20 && ch < 0x7f && !isDelimiter(ch) && ch != '#' {
			b.WriteByte(ch)
			continue
		}
		fmt.Fprintf(&b, "#%02X", ch)
	}
	return b.String()
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func escapeLiteralString(rawBytes []byte) []byte {
	var b bytes.Buffer
	b.WriteByte('(')
	for _, ch := range rawBytes {
		switch ch {
		case '\\', '(', ')':
			b.WriteByte('\\')
			b.WriteByte(ch)
		case '\n':
			b.WriteString("\\n")
		case '\r':
			b.WriteString("\\r")
		case '\t':
			b.WriteString("\\t")
		case '\b':
			b.WriteString("\\b")
		case '\f':
			b.WriteString("\\f")
		default:
			if ch < 0x20 || ch >= 0x80 {
				fmt.Fprintf(&b, "\\%03o", ch)
			} else {
				b.WriteByte(ch)
			}
		}
	}
	b.WriteByte(')')
	return b.Bytes()
}
