package merge

import (
	"github.com/lesonky/invoice-merge-tool/ir/raw"
	"github.com/lesonky/invoice-merge-tool/mergeerr"
	"github.com/lesonky/invoice-merge-tool/observability"
)

// inheritable page attributes that live on Pages nodes in the source and
// must move onto the pages once those nodes are gone.
var inheritable = []string{"Resources", "MediaBox", "CropBox", "Rotate"}

// accumulator collects renumbered sources into one object table.
type accumulator struct {
	log       observability.Logger
	objects   map[raw.ObjectRef]raw.Object
	pages     []raw.ObjectRef
	catalog   *raw.ObjectRef
	pagesRoot *raw.ObjectRef
}

func newAccumulator(log observability.Logger) *accumulator {
	return &accumulator{log: log, objects: make(map[raw.ObjectRef]raw.Object)}
}

// add dispatches every object of an already renumbered source by role.
func (a *accumulator) add(doc *raw.Document, source string) {
	roles := doc.Classify()
	order := doc.PageOrder(roles)
	root := sourcePagesRoot(doc, roles)

	for _, ref := range order {
		if page, ok := doc.Objects[ref].(*raw.DictObj); ok {
			pushDownInherited(doc, page)
		}
	}
	a.pages = append(a.pages, order...)

	for _, ref := range doc.Refs() {
		obj := doc.Objects[ref]
		switch roles[ref] {
		case raw.RolePage:
			a.objects[ref] = obj
		case raw.RoleOutline:
		case raw.RoleCatalog:
			if a.catalog == nil {
				r := ref
				a.catalog = &r
				a.objects[ref] = obj
				continue
			}
			a.log.Debug("dropping duplicate catalog",
				observability.String("source", source),
				observability.String("object", ref.String()),
			)
		case raw.RolePages:
			if ref == root && a.pagesRoot == nil {
				r := ref
				a.pagesRoot = &r
				a.objects[ref] = obj
				continue
			}
			a.log.Debug("dropping page tree node",
				observability.String("source", source),
				observability.String("object", ref.String()),
				observability.Bool("root", ref == root),
			)
		default:
			a.objects[ref] = obj
		}
	}
}

// finish links the collected pages under the canonical root and returns the
// merged document.
func (a *accumulator) finish(version string) (*raw.Document, error) {
	if len(a.pages) == 0 {
		return nil, mergeerr.New(mergeerr.NoFiles, "merge", "", errNoPages)
	}
	if a.catalog == nil {
		return nil, mergeerr.New(mergeerr.Structural, "merge", "", errNoCatalog)
	}
	if a.pagesRoot == nil {
		return nil, mergeerr.New(mergeerr.Structural, "merge", "", errNoPagesRoot)
	}
	rootRef := raw.RefObj{R: *a.pagesRoot}

	kids := raw.NewArray()
	for _, ref := range a.pages {
		if page, ok := a.objects[ref].(*raw.DictObj); ok {
			page.Set("Parent", rootRef)
		}
		kids.Append(raw.RefObj{R: ref})
	}

	pagesRoot := rootDict(a.objects, *a.pagesRoot)
	pagesRoot.Set("Type", raw.NameLiteral("Pages"))
	pagesRoot.Set("Kids", kids)
	pagesRoot.Set("Count", raw.NumberInt(int64(len(a.pages))))
	pagesRoot.Delete("Parent")
	for _, k := range inheritable {
		pagesRoot.Delete(k)
	}

	catalog := rootDict(a.objects, *a.catalog)
	catalog.Set("Pages", rootRef)
	catalog.Delete("Outlines")
	if catalog.Name("PageMode") == "UseOutlines" {
		catalog.Delete("PageMode")
	}

	doc := raw.NewDocument(version)
	doc.Objects = a.objects
	doc.Trailer.Set("Root", raw.RefObj{R: *a.catalog})
	return doc, nil
}

// rootDict returns the dictionary stored at ref, replacing a stream with its
// dictionary since catalogs and page-tree nodes carry no payload.
func rootDict(objects map[raw.ObjectRef]raw.Object, ref raw.ObjectRef) *raw.DictObj {
	switch v := objects[ref].(type) {
	case *raw.DictObj:
		return v
	case *raw.StreamObj:
		objects[ref] = v.Dict
		return v.Dict
	}
	d := raw.Dict()
	objects[ref] = d
	return d
}

// sourcePagesRoot picks the page tree root of one source: the catalog's
// /Pages target, else the first parentless Pages node.
func sourcePagesRoot(doc *raw.Document, roles map[raw.ObjectRef]raw.Role) raw.ObjectRef {
	if root, ok := doc.Root(); ok {
		if cat, ok := doc.ResolveDict(doc.Objects[root]); ok {
			if r, ok := cat.Get("Pages").(raw.RefObj); ok && roles[r.R] == raw.RolePages {
				return r.R
			}
		}
	}
	for _, ref := range doc.Refs() {
		if roles[ref] != raw.RolePages {
			continue
		}
		if d, ok := doc.ResolveDict(doc.Objects[ref]); ok && d.Get("Parent") == nil {
			return ref
		}
	}
	return raw.ObjectRef{}
}

// pushDownInherited copies attributes a page inherits from its ancestors onto
// the page itself.
func pushDownInherited(doc *raw.Document, page *raw.DictObj) {
	for _, key := range inheritable {
		if page.Get(key) != nil {
			continue
		}
		seen := make(map[raw.ObjectRef]bool)
		parent, ok := page.Get("Parent").(raw.RefObj)
		for depth := 0; ok && depth < 64 && !seen[parent.R]; depth++ {
			seen[parent.R] = true
			node, isDict := doc.ResolveDict(doc.Objects[parent.R])
			if !isDict {
				break
			}
			if v := node.Get(key); v != nil {
				page.Set(key, v)
				break
			}
			parent, ok = node.Get("Parent").(raw.RefObj)
		}
	}
}
