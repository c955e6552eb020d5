package raw

// Role is the structural part an indirect object plays in a document's page
// tree. It is computed once per object and drives the merge dispatch.
type Role int

const (
	RoleOther Role = iota
	RoleCatalog
	RolePages
	RolePage
	RoleOutline
)

func (r Role) String() string {
	switch r {
	case RoleCatalog:
		return "Catalog"
	case RolePages:
		return "Pages"
	case RolePage:
		return "Page"
	case RoleOutline:
		return "Outline"
	default:
		return "Other"
	}
}

// RoleOf classifies an object by its /Type entry. Outline items carry no
// /Type in most producers, so the outline root (/Type /Outlines) is the only
// one recognised here; items hanging off it are found by OutlineRefs.
func RoleOf(o Object) Role {
	var d *DictObj
	switch v := o.(type) {
	case *DictObj:
		d = v
	case *StreamObj:
		d = v.Dict
	}
	if d == nil {
		return RoleOther
	}
	switch d.Name("Type") {
	case "Catalog":
		return RoleCatalog
	case "Pages":
		return RolePages
	case "Page":
		return RolePage
	case "Outlines", "Outline":
		return RoleOutline
	}
	return RoleOther
}

// Classify returns the role of every object in the document. Objects reachable
// from an outline root through /First, /Next and /Last links are reported as
// RoleOutline even when untyped.
func (d *Document) Classify() map[ObjectRef]Role {
	roles := make(map[ObjectRef]Role, len(d.Objects))
	var outlineRoots []ObjectRef
	for ref, obj := range d.Objects {
		role := RoleOf(obj)
		roles[ref] = role
		if role == RoleOutline {
			outlineRoots = append(outlineRoots, ref)
		}
	}
	if root, ok := d.Root(); ok {
		if cat, ok := d.ResolveDict(RefObj{R: root}); ok {
			if r, ok := cat.Get("Outlines").(RefObj); ok {
				outlineRoots = append(outlineRoots, r.R)
			}
		}
	}
	for _, ref := range d.OutlineRefs(outlineRoots...) {
		if _, ok := d.Objects[ref]; ok {
			roles[ref] = RoleOutline
		}
	}
	return roles
}

// OutlineRefs walks outline items from the given roots.
func (d *Document) OutlineRefs(roots ...ObjectRef) []ObjectRef {
	seen := make(map[ObjectRef]bool)
	var out []ObjectRef
	stack := append([]ObjectRef(nil), roots...)
	for len(stack) > 0 {
		ref := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[ref] {
			continue
		}
		seen[ref] = true
		out = append(out, ref)
		dict, ok := d.ResolveDict(RefObj{R: ref})
		if !ok {
			continue
		}
		for _, key := range []string{"First", "Next", "Last"} {
			if r, ok := dict.Get(key).(RefObj); ok && !seen[r.R] {
				stack = append(stack, r.R)
			}
		}
	}
	return out
}

// PageOrder returns the page objects in page-tree order starting at the
// catalog's /Pages. Page objects that the tree does not reach are appended in
// identifier order so no page is lost from a damaged tree.
func (d *Document) PageOrder(roles map[ObjectRef]Role) []ObjectRef {
	var out []ObjectRef
	seen := make(map[ObjectRef]bool)
	var walk func(ref ObjectRef, depth int)
	walk = func(ref ObjectRef, depth int) {
		if seen[ref] || depth > 64 {
			return
		}
		seen[ref] = true
		switch roles[ref] {
		case RolePage:
			out = append(out, ref)
		case RolePages:
			node, _ := d.ResolveDict(RefObj{R: ref})
			kids, _ := d.Resolve(node.Get("Kids")).(*ArrayObj)
			if kids == nil {
				return
			}
			for _, k := range kids.Items {
				if r, ok := k.(RefObj); ok {
					walk(r.R, depth+1)
				}
			}
		}
	}
	if root, ok := d.Root(); ok {
		if cat, ok := d.ResolveDict(RefObj{R: root}); ok {
			if r, ok := cat.Get("Pages").(RefObj); ok {
				walk(r.R, 0)
			}
		}
	}
	for _, ref := range d.Refs() {
		if roles[ref] == RolePage && !seen[ref] {
			seen[ref] = true
			out = append(out, ref)
		}
	}
	return out
}
