package raw

import (
	"fmt"
	"sort"
)

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Object is the base interface for all raw PDF objects.
type Object interface {
	Type() string
	IsIndirect() bool
}

// Document is the root container for raw PDF objects.
type Document struct {
	Objects   map[ObjectRef]Object
	Trailer   *DictObj
	Version   string // e.g., "1.7"
	Encrypted bool
	// Decrypted is set once the standard security handler accepted a password
	// and string/stream payloads were rewritten in the clear.
	Decrypted bool
}

// NewDocument returns an empty document with an initialised object table.
func NewDocument(version string) *Document {
	return &Document{Objects: make(map[ObjectRef]Object), Trailer: Dict(), Version: version}
}

// Refs returns the object identifiers ordered by number then generation.
func (d *Document) Refs() []ObjectRef {
	refs := make([]ObjectRef, 0, len(d.Objects))
	for r := range d.Objects {
		refs = append(refs, r)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Num != refs[j].Num {
			return refs[i].Num < refs[j].Num
		}
		return refs[i].Gen < refs[j].Gen
	})
	return refs
}

// MaxNum is the highest object number present, 0 for an empty table.
func (d *Document) MaxNum() int {
	max := 0
	for r := range d.Objects {
		if r.Num > max {
			max = r.Num
		}
	}
	return max
}

// Resolve follows a reference into the object table. Non-reference values are
// returned unchanged; dangling references resolve to nil.
func (d *Document) Resolve(o Object) Object {
	for i := 0; i < 32; i++ {
		ref, ok := o.(RefObj)
		if !ok {
			return o
		}
		o = d.Objects[ref.R]
	}
	return nil
}

// ResolveDict resolves o and returns it as a dictionary. Streams yield their
// dictionary.
func (d *Document) ResolveDict(o Object) (*DictObj, bool) {
	switch v := d.Resolve(o).(type) {
	case *DictObj:
		return v, true
	case *StreamObj:
		return v.Dict, v.Dict != nil
	}
	return nil, false
}

// Root returns the catalog reference named by the trailer.
func (d *Document) Root() (ObjectRef, bool) {
	if d.Trailer == nil {
		return ObjectRef{}, false
	}
	r, ok := d.Trailer.Get("Root").(RefObj)
	return r.R, ok
}
