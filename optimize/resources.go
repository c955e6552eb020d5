package optimize

import (
	"github.com/lesonky/invoice-merge-tool/ir/raw"
)

// cleanUnreachable sweeps objects that no chain of references from the
// trailer reaches, such as the remains of dropped outline trees.
func (o *Optimizer) cleanUnreachable(doc *raw.Document) int {
	if doc.Trailer == nil {
		return 0
	}
	reachable := make(map[raw.ObjectRef]bool)
	var mark func(obj raw.Object)
	mark = func(obj raw.Object) {
		raw.WalkRefs(obj, func(ref raw.ObjectRef) {
			if reachable[ref] {
				return
			}
			reachable[ref] = true
			if target, ok := doc.Objects[ref]; ok {
				mark(target)
			}
		})
	}
	mark(doc.Trailer)

	removed := 0
	for ref := range doc.Objects {
		if !reachable[ref] {
			delete(doc.Objects, ref)
			removed++
		}
	}
	return removed
}
