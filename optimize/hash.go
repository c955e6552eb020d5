package optimize

import (
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/blake2b"

	"github.com/lesonky/invoice-merge-tool/ir/raw"
)

type fingerprint [blake2b.Size256]byte

// streamFingerprint hashes a stream's dictionary (minus /Length) and payload.
func streamFingerprint(st *raw.StreamObj) fingerprint {
	h, _ := blake2b.New256(nil)
	d := st.Dictionary()
	fmt.Fprint(h, "<<")
	for _, k := range d.Keys() {
		if k == "Length" {
			continue
		}
		fmt.Fprint(h, "/", k, " ")
		writeHash(h, d.Get(k))
	}
	fmt.Fprintf(h, ">>%d:", len(st.Data))
	h.Write(st.Data)
	var fp fingerprint
	copy(fp[:], h.Sum(nil))
	return fp
}

func writeHash(h hash.Hash, obj raw.Object) {
	if obj == nil {
		io.WriteString(h, "nil")
		return
	}
	fmt.Fprint(h, obj.Type(), ":")
	switch t := obj.(type) {
	case raw.NameObj:
		fmt.Fprint(h, t.Val)
	case raw.NumberObj:
		if t.IsInteger() {
			fmt.Fprint(h, t.Int())
		} else {
			fmt.Fprint(h, t.Float())
		}
	case raw.BoolObj:
		fmt.Fprint(h, t.V)
	case raw.StringObj:
		fmt.Fprintf(h, "%d:", len(t.Bytes))
		h.Write(t.Bytes)
	case raw.RefObj:
		fmt.Fprintf(h, "%d %d R", t.R.Num, t.R.Gen)
	case *raw.ArrayObj:
		fmt.Fprint(h, "[")
		for _, v := range t.Items {
			writeHash(h, v)
			fmt.Fprint(h, ",")
		}
		fmt.Fprint(h, "]")
	case *raw.DictObj:
		fmt.Fprint(h, "<<")
		for _, k := range t.Keys() {
			fmt.Fprint(h, k, " ")
			writeHash(h, t.Get(k))
		}
		fmt.Fprint(h, ">>")
	case *raw.StreamObj:
		fp := streamFingerprint(t)
		h.Write(fp[:])
	}
}
