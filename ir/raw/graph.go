package raw

// MapRefs returns a copy of o in which every reference has been passed through
// fn. Containers are copied; scalars are shared.
func MapRefs(o Object, fn func(ObjectRef) ObjectRef) Object {
	switch v := o.(type) {
	case RefObj:
		return RefObj{R: fn(v.R)}
	case *ArrayObj:
		items := make([]Object, len(v.Items))
		for i, it := range v.Items {
			items[i] = MapRefs(it, fn)
		}
		return &ArrayObj{Items: items}
	case *DictObj:
		return mapDict(v, fn)
	case *StreamObj:
		return &StreamObj{Dict: mapDict(v.Dict, fn), Data: v.Data}
	default:
		return o
	}
}

func mapDict(d *DictObj, fn func(ObjectRef) ObjectRef) *DictObj {
	if d == nil {
		return nil
	}
	out := &DictObj{KV: make(map[string]Object, len(d.KV))}
	for k, val := range d.KV {
		out.KV[k] = MapRefs(val, fn)
	}
	return out
}

// WalkRefs calls fn for every reference nested in o.
func WalkRefs(o Object, fn func(ObjectRef)) {
	switch v := o.(type) {
	case RefObj:
		fn(v.R)
	case *ArrayObj:
		for _, it := range v.Items {
			WalkRefs(it, fn)
		}
	case *DictObj:
		for _, val := range v.KV {
			WalkRefs(val, fn)
		}
	case *StreamObj:
		if v.Dict != nil {
			WalkRefs(v.Dict, fn)
		}
	}
}

// Renumber rewrites every identifier with fn, in both the object table and the
// trailer. Objects whose new identifier collides with an earlier one overwrite
// it, so fn must be injective over the table.
func (d *Document) Renumber(fn func(ObjectRef) ObjectRef) {
	objs := make(map[ObjectRef]Object, len(d.Objects))
	for ref, obj := range d.Objects {
		objs[fn(ref)] = MapRefs(obj, fn)
	}
	d.Objects = objs
	if d.Trailer != nil {
		d.Trailer = mapDict(d.Trailer, fn)
	}
}

// Compact renumbers the table densely to 1..N in current identifier order
// with every generation reset to 0. References to objects that no longer
// exist are replaced by null.
func (d *Document) Compact() {
	mapping := make(map[ObjectRef]ObjectRef, len(d.Objects))
	for i, ref := range d.Refs() {
		mapping[ref] = ObjectRef{Num: i + 1}
	}
	objs := make(map[ObjectRef]Object, len(d.Objects))
	for ref, obj := range d.Objects {
		objs[mapping[ref]] = compactRefs(obj, mapping)
	}
	d.Objects = objs
	if d.Trailer != nil {
		d.Trailer = compactRefs(d.Trailer, mapping).(*DictObj)
	}
}

func compactRefs(o Object, mapping map[ObjectRef]ObjectRef) Object {
	switch v := o.(type) {
	case RefObj:
		if n, ok := mapping[v.R]; ok {
			return RefObj{R: n}
		}
		return NullObj{}
	case *ArrayObj:
		items := make([]Object, len(v.Items))
		for i, it := range v.Items {
			items[i] = compactRefs(it, mapping)
		}
		return &ArrayObj{Items: items}
	case *DictObj:
		out := &DictObj{KV: make(map[string]Object, len(v.KV))}
		for k, val := range v.KV {
			out.KV[k] = compactRefs(val, mapping)
		}
		return out
	case *StreamObj:
		var dict *DictObj
		if v.Dict != nil {
			dict = compactRefs(v.Dict, mapping).(*DictObj)
		}
		return &StreamObj{Dict: dict, Data: v.Data}
	default:
		return o
	}
}
