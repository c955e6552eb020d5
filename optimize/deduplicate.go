package optimize

import (
	"context"

	"github.com/lesonky/invoice-merge-tool/ir/raw"
)

// combineDuplicateStreams replaces every reference to a duplicate stream with
// the lowest-numbered identical one. Passes repeat because folding one
// stream can make two referring streams identical (an image and its SMask).
func (o *Optimizer) combineDuplicateStreams(ctx context.Context, doc *raw.Document) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		seen := make(map[fingerprint]raw.ObjectRef)
		replacements := make(map[raw.ObjectRef]raw.ObjectRef)
		for _, ref := range doc.Refs() {
			st, ok := doc.Objects[ref].(*raw.StreamObj)
			if !ok {
				continue
			}
			fp := streamFingerprint(st)
			if original, ok := seen[fp]; ok {
				replacements[ref] = original
			} else {
				seen[fp] = ref
			}
		}
		if len(replacements) == 0 {
			return total, nil
		}
		applyReplacements(doc, replacements)
		total += len(replacements)
	}
}

func applyReplacements(doc *raw.Document, replacements map[raw.ObjectRef]raw.ObjectRef) {
	remap := func(r raw.ObjectRef) raw.ObjectRef {
		if to, ok := replacements[r]; ok {
			return to
		}
		return r
	}
	for dup := range replacements {
		delete(doc.Objects, dup)
	}
	for ref, obj := range doc.Objects {
		doc.Objects[ref] = raw.MapRefs(obj, remap)
	}
	if doc.Trailer != nil {
		doc.Trailer = raw.MapRefs(doc.Trailer, remap).(*raw.DictObj)
	}
}
