package optimize

import (
	"compress/zlib"
	"context"

	"github.com/lesonky/invoice-merge-tool/filters"
	"github.com/lesonky/invoice-merge-tool/ir/raw"
)

// compressStreams Flate-encodes unfiltered streams, keeping the original
// payload when compression does not shrink it.
func (o *Optimizer) compressStreams(ctx context.Context, doc *raw.Document) (int, error) {
	level := o.config.CompressionLevel
	if level == 0 {
		level = zlib.DefaultCompression
	}
	n := 0
	for _, ref := range doc.Refs() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		st, ok := doc.Objects[ref].(*raw.StreamObj)
		if !ok || st.Dict == nil || st.Dict.Get("Filter") != nil || len(st.Data) == 0 {
			continue
		}
		enc, err := filters.FlateEncode(st.Data, level)
		if err != nil {
			return n, err
		}
		if len(enc) >= len(st.Data) {
			continue
		}
		st.Data = enc
		st.Dict.Set("Filter", raw.NameLiteral("FlateDecode"))
		st.Dict.Set("Length", raw.NumberInt(int64(len(enc))))
		st.Dict.Delete("DecodeParms")
		n++
	}
	return n, nil
}
