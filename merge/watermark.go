package merge

import "github.com/lesonky/invoice-merge-tool/ir/raw"

// Watermark is the next object number free for allocation in the merged
// output. It is threaded through every per-source renumbering and only ever
// grows.
type Watermark int

// InitialWatermark is the first number handed out; 0 is reserved by the
// xref free-list head.
const InitialWatermark Watermark = 1

// renumber moves every object of doc to numbers at or above wm, keeping the
// source's relative order, and returns the advanced watermark. References to
// objects missing from doc get numbers too so they can never alias an object
// of another source; they are nulled when the output is compacted.
func renumber(doc *raw.Document, wm Watermark) Watermark {
	mapping := make(map[raw.ObjectRef]raw.ObjectRef, len(doc.Objects))
	next := int(wm)
	for _, ref := range doc.Refs() {
		mapping[ref] = raw.ObjectRef{Num: next}
		next++
	}
	dangling := func(o raw.Object) {
		raw.WalkRefs(o, func(r raw.ObjectRef) {
			if _, ok := mapping[r]; !ok {
				mapping[r] = raw.ObjectRef{Num: next}
				next++
			}
		})
	}
	for _, ref := range doc.Refs() {
		dangling(doc.Objects[ref])
	}
	if doc.Trailer != nil {
		dangling(doc.Trailer)
	}
	doc.Renumber(func(r raw.ObjectRef) raw.ObjectRef { return mapping[r] })
	return Watermark(next)
}
