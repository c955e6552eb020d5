package raw

import "testing"

func treeDoc() *Document {
	doc := NewDocument("1.7")
	cat := Dict()
	cat.Set("Type", NameLiteral("Catalog"))
	cat.Set("Pages", Ref(2, 0))
	cat.Set("Outlines", Ref(9, 0))
	doc.Objects[ObjectRef{Num: 1}] = cat

	root := Dict()
	root.Set("Type", NameLiteral("Pages"))
	root.Set("Kids", NewArray(Ref(4, 0), Ref(3, 0)))
	doc.Objects[ObjectRef{Num: 2}] = root

	mid := Dict()
	mid.Set("Type", NameLiteral("Pages"))
	mid.Set("Kids", NewArray(Ref(5, 0), Ref(6, 0)))
	doc.Objects[ObjectRef{Num: 4}] = mid

	for _, n := range []int{3, 5, 6, 7} {
		p := Dict()
		p.Set("Type", NameLiteral("Page"))
		doc.Objects[ObjectRef{Num: n}] = p
	}

	outlines := Dict()
	outlines.Set("Type", NameLiteral("Outlines"))
	outlines.Set("First", Ref(10, 0))
	doc.Objects[ObjectRef{Num: 9}] = outlines
	item := Dict()
	item.Set("Title", Str([]byte("chapter")))
	item.Set("Dest", NewArray(Ref(3, 0), NameLiteral("Fit")))
	doc.Objects[ObjectRef{Num: 10}] = item

	doc.Trailer.Set("Root", Ref(1, 0))
	return doc
}

func TestRoleOf(t *testing.T) {
	cases := map[string]Role{"Catalog": RoleCatalog, "Pages": RolePages, "Page": RolePage, "Outlines": RoleOutline, "XObject": RoleOther}
	for typ, want := range cases {
		d := Dict()
		d.Set("Type", NameLiteral(typ))
		if got := RoleOf(d); got != want {
			t.Fatalf("RoleOf(%s)=%v want %v", typ, got, want)
		}
	}
	if RoleOf(NumberInt(3)) != RoleOther {
		t.Fatalf("scalar should be Other")
	}
}

func TestClassifyMarksUntypedOutlineItems(t *testing.T) {
	roles := treeDoc().Classify()
	if roles[ObjectRef{Num: 10}] != RoleOutline {
		t.Fatalf("outline item classified as %v", roles[ObjectRef{Num: 10}])
	}
	if roles[ObjectRef{Num: 3}] != RolePage {
		t.Fatalf("page classified as %v", roles[ObjectRef{Num: 3}])
	}
}

func TestPageOrderFollowsTree(t *testing.T) {
	doc := treeDoc()
	order := doc.PageOrder(doc.Classify())
	want := []int{5, 6, 3, 7}
	if len(order) != len(want) {
		t.Fatalf("got %v", order)
	}
	for i, n := range want {
		if order[i].Num != n {
			t.Fatalf("page %d: got %d want %d", i, order[i].Num, n)
		}
	}
}
