package xref_test

import (
	"bytes"
	"compress/zlib"
	"context"
	"fmt"
	"testing"

	"github.com/lesonky/invoice-merge-tool/recovery"
	"github.com/lesonky/invoice-merge-tool/xref"
)

func buildSimplePDF() ([]byte, map[int]int64) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")

	offsets := make(map[int]int64)

	offsets[1] = int64(buf.Len())
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	offsets[2] = int64(buf.Len())
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n")

	xrefOffset := buf.Len()
	buf.WriteString("xref\n0 3\n")
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= 2; i++ {
		buf.WriteString(fmt.Sprintf("%010d 00000 n \n", offsets[i]))
	}
	buf.WriteString("trailer\n<< /Size 3 /Root 1 0 R >>\n")
	buf.WriteString("startxref\n")
	buf.WriteString(fmt.Sprintf("%d\n", xrefOffset))
	buf.WriteString("%%EOF\n")

	return buf.Bytes(), offsets
}

func TestResolverParsesXRefTable(t *testing.T) {
	pdf, offsets := buildSimplePDF()

	table, err := xref.NewResolver(xref.ResolverConfig{}).Resolve(context.Background(), pdf)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if table.Repaired {
		t.Fatalf("table should not need repair")
	}
	for num, off := range offsets {
		e, ok := table.Lookup(num)
		if !ok || e.Offset != off || e.Kind != xref.EntryInUse {
			t.Fatalf("object %d: got %+v want offset %d", num, e, off)
		}
	}
	if _, ok := table.Lookup(0); ok {
		t.Fatalf("free entry should not be found")
	}
	if table.Trailer.Get("Root") == nil {
		t.Fatalf("trailer Root missing")
	}
}

func TestResolverFollowsPrevChain(t *testing.T) {
	base, _ := buildSimplePDF()
	buf := bytes.NewBuffer(append([]byte(nil), base...))
	prev := bytes.LastIndex(base, []byte("xref\n0 3"))

	obj2 := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	obj3 := buf.Len()
	buf.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R >>\nendobj\n")
	xrefOffset := buf.Len()
	fmt.Fprintf(buf, "xref\n2 2\n%010d 00000 n \n%010d 00000 n \n", obj2, obj3)
	fmt.Fprintf(buf, "trailer\n<< /Size 4 /Prev %d >>\nstartxref\n%d\n%%%%EOF\n", prev, xrefOffset)

	table, err := xref.NewResolver(xref.ResolverConfig{}).Resolve(context.Background(), buf.Bytes())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if table.Sections != 2 {
		t.Fatalf("expected 2 sections, got %d", table.Sections)
	}
	if e, _ := table.Lookup(2); e.Offset != int64(obj2) {
		t.Fatalf("newest section should win for object 2: %+v", e)
	}
	if table.Trailer.Get("Root") == nil {
		t.Fatalf("Root should be inherited from the older trailer")
	}
	if n, _ := table.Trailer.Int("Size"); n != 4 {
		t.Fatalf("Size should come from the newest trailer, got %d", n)
	}
}

func TestResolverReadsXRefStream(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.5\n")
	off1 := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	// Rows: type(1) offset(2) gen(1), PNG Up predictor with 4 columns.
	rows := [][]byte{
		{0, 0, 0, 0xff},
		{1, byte(off1 >> 8), byte(off1), 0},
		{2, 0, 5, 1},
	}
	var raw bytes.Buffer
	prev := make([]byte, 4)
	for _, row := range rows {
		raw.WriteByte(2)
		for i := range row {
			raw.WriteByte(row[i] - prev[i])
		}
		prev = row
	}
	var comp bytes.Buffer
	zw := zlib.NewWriter(&comp)
	zw.Write(raw.Bytes())
	zw.Close()

	xrefOffset := buf.Len()
	fmt.Fprintf(buf, "9 0 obj\n<< /Type /XRef /Size 3 /W [1 2 1] /Root 1 0 R /Filter /FlateDecode /DecodeParms << /Predictor 12 /Columns 4 >> /Length %d >>\nstream\n", comp.Len())
	buf.Write(comp.Bytes())
	fmt.Fprintf(buf, "\nendstream\nendobj\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	table, err := xref.NewResolver(xref.ResolverConfig{Recovery: recovery.NewStrictStrategy()}).Resolve(context.Background(), buf.Bytes())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if e, ok := table.Lookup(1); !ok || e.Offset != int64(off1) {
		t.Fatalf("object 1: %+v", e)
	}
	e, ok := table.Lookup(2)
	if !ok || e.Kind != xref.EntryCompressed || e.Stream != 5 || e.Index != 1 {
		t.Fatalf("object 2 should be compressed in stream 5: %+v", e)
	}
}

func TestResolverRepairsBrokenStartXRef(t *testing.T) {
	pdf, offsets := buildSimplePDF()
	broken := bytes.Replace(pdf, []byte("startxref\n"), []byte("startxref\n9"), 1)

	table, err := xref.NewResolver(xref.ResolverConfig{}).Resolve(context.Background(), broken)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !table.Repaired {
		t.Fatalf("expected repaired table")
	}
	if e, ok := table.Lookup(2); !ok || e.Offset != offsets[2] {
		t.Fatalf("object 2 not recovered: %+v", e)
	}
	if table.Trailer.Get("Root") == nil {
		t.Fatalf("trailer should be recovered by the scan")
	}
}

func TestResolverStrictRefusesRepair(t *testing.T) {
	pdf, _ := buildSimplePDF()
	broken := bytes.Replace(pdf, []byte("startxref"), []byte("startxxxx"), 1)
	_, err := xref.NewResolver(xref.ResolverConfig{Recovery: recovery.NewStrictStrategy()}).Resolve(context.Background(), broken)
	if err == nil {
		t.Fatalf("strict strategy should surface the xref error")
	}
}
