// Package tester builds small in-memory presentation packages for tests.
package tester

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"strings"
	"testing"
)

const nsDecl = `xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" ` +
	`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" ` +
	`xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"`

// Deck describes a package to build. Slides hold the inner markup of
// p:spTree (see Slide for a full part). Parts overrides or adds entries.
type Deck struct {
	Width  int64
	Height int64
	Slides []string
	Layout string
	Parts  map[string][]byte
}

// Media is a fixed binary payload stored uncompressed in every deck.
var Media = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x01, 0x02, 0x03, 0xfe, 0xff}

// Build zips the deck. Slides are listed in presentation.xml in order.
func Build(t testing.TB, d Deck) []byte {
	t.Helper()
	if d.Width == 0 {
		d.Width = 12192000
	}
	if d.Height == 0 {
		d.Height = 6858000
	}
	layout := d.Layout
	if layout == "" {
		layout = Layout("")
	}

	type entry struct {
		name  string
		data  []byte
		store bool
	}
	entries := []entry{
		{name: "[Content_Types].xml", data: []byte(contentTypes(len(d.Slides)))},
		{name: "_rels/.rels", data: []byte(rels(rel("rId1", "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument", "ppt/presentation.xml")))},
		{name: "ppt/presentation.xml", data: []byte(presentation(len(d.Slides), d.Width, d.Height))},
		{name: "ppt/_rels/presentation.xml.rels", data: []byte(presentationRels(len(d.Slides)))},
		{name: "ppt/slideLayouts/slideLayout1.xml", data: []byte(layout)},
	}
	for i, s := range d.Slides {
		part := s
		if !strings.Contains(s, "<p:sld") {
			part = Slide(s)
		}
		entries = append(entries,
			entry{name: fmt.Sprintf("ppt/slides/slide%d.xml", i+1), data: []byte(part)},
			entry{name: fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", i+1), data: []byte(rels(
				rel("rId1", "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout", "../slideLayouts/slideLayout1.xml"),
				rel("rId2", "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image", "../media/image1.png"),
			))},
		)
	}
	entries = append(entries, entry{name: "ppt/media/image1.png", data: Media, store: true})

	seen := map[string]int{}
	for i, e := range entries {
		seen[e.name] = i
	}
	for name, data := range d.Parts {
		if i, ok := seen[name]; ok {
			entries[i].data = data
			continue
		}
		entries = append(entries, entry{name: name, data: data, store: !strings.HasSuffix(name, ".xml") && !strings.HasSuffix(name, ".rels")})
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		method := zip.Deflate
		if e.store {
			method = zip.Store
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: method})
		if err != nil {
			t.Fatalf("create %s: %v", e.name, err)
		}
		if _, err := w.Write(e.data); err != nil {
			t.Fatalf("write %s: %v", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// Slide wraps spTree markup into a complete slide part.
func Slide(tree string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<p:sld ` + nsDecl + `><p:cSld><p:spTree>` +
		`<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/>` +
		tree + `</p:spTree></p:cSld><p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:sld>`
}

// Layout wraps spTree markup into a layout part.
func Layout(tree string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<p:sldLayout ` + nsDecl + `><p:cSld><p:spTree>` +
		`<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/>` +
		tree + `</p:spTree></p:cSld></p:sldLayout>`
}

// Geometry is an a:xfrm offset and extent in EMU.
type Geometry struct {
	X, Y, CX, CY int64
}

// TextShape renders a p:sp. phType "" with ph=false yields a plain text box;
// each paragraph is a list of run texts.
type TextShape struct {
	ID         int
	Name       string
	Ph         bool
	PhType     string
	PhIdx      string
	Geometry   *Geometry
	Paragraphs [][]string
	Bullets    bool
	Extra      string
}

func (s TextShape) String() string {
	var b strings.Builder
	name := s.Name
	if name == "" {
		name = fmt.Sprintf("Shape %d", s.ID)
	}
	fmt.Fprintf(&b, `<p:sp><p:nvSpPr><p:cNvPr id="%d" name="%s"/><p:cNvSpPr/><p:nvPr>`, s.ID, html.EscapeString(name))
	if s.Ph {
		b.WriteString(`<p:ph`)
		if s.PhType != "" {
			fmt.Fprintf(&b, ` type="%s"`, s.PhType)
		}
		if s.PhIdx != "" {
			fmt.Fprintf(&b, ` idx="%s"`, s.PhIdx)
		}
		b.WriteString(`/>`)
	}
	b.WriteString(`</p:nvPr></p:nvSpPr><p:spPr>`)
	if s.Geometry != nil {
		fmt.Fprintf(&b, `<a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm>`, s.Geometry.X, s.Geometry.Y, s.Geometry.CX, s.Geometry.CY)
	}
	b.WriteString(s.Extra)
	b.WriteString(`</p:spPr><p:txBody><a:bodyPr/><a:lstStyle/>`)
	for _, para := range s.Paragraphs {
		b.WriteString(`<a:p>`)
		if s.Bullets {
			b.WriteString(`<a:pPr><a:buChar char="&#8226;"/></a:pPr>`)
		}
		for _, run := range para {
			if run == "" {
				b.WriteString(`<a:r><a:rPr lang="en-US" dirty="0"/><a:t></a:t></a:r>`)
				continue
			}
			fmt.Fprintf(&b, `<a:r><a:rPr lang="en-US" dirty="0"/><a:t>%s</a:t></a:r>`, html.EscapeString(run))
		}
		b.WriteString(`<a:endParaRPr lang="en-US"/></a:p>`)
	}
	b.WriteString(`</p:txBody></p:sp>`)
	return b.String()
}

// Picture renders a p:pic referencing rId2.
func Picture(id int, g Geometry) string {
	return fmt.Sprintf(`<p:pic><p:nvPicPr><p:cNvPr id="%d" name="Picture %d"/><p:cNvPicPr/><p:nvPr/></p:nvPicPr>`+
		`<p:blipFill><a:blip r:embed="rId2"/><a:stretch><a:fillRect/></a:stretch></p:blipFill>`+
		`<p:spPr><a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr></p:pic>`,
		id, id, g.X, g.Y, g.CX, g.CY)
}

func rel(id, typ, target string) string {
	return fmt.Sprintf(`<Relationship Id="%s" Type="%s" Target="%s"/>`, id, typ, target)
}

func rels(items ...string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		strings.Join(items, "") + `</Relationships>`
}

func presentation(slides int, cx, cy int64) string {
	var ids strings.Builder
	for i := 0; i < slides; i++ {
		fmt.Fprintf(&ids, `<p:sldId id="%d" r:id="rId%d"/>`, 256+i, i+2)
	}
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<p:presentation ` + nsDecl + `><p:sldIdLst>` + ids.String() + `</p:sldIdLst>` +
		fmt.Sprintf(`<p:sldSz cx="%d" cy="%d"/><p:notesSz cx="6858000" cy="9144000"/>`, cx, cy) +
		`</p:presentation>`
}

func presentationRels(slides int) string {
	items := []string{}
	for i := 0; i < slides; i++ {
		items = append(items, rel(fmt.Sprintf("rId%d", i+2), "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide", fmt.Sprintf("slides/slide%d.xml", i+1)))
	}
	return rels(items...)
}

func contentTypes(slides int) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	b.WriteString(`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`)
	b.WriteString(`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`)
	b.WriteString(`<Default Extension="xml" ContentType="application/xml"/>`)
	b.WriteString(`<Default Extension="png" ContentType="image/png"/>`)
	b.WriteString(`<Override PartName="/ppt/presentation.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"/>`)
	for i := 0; i < slides; i++ {
		fmt.Fprintf(&b, `<Override PartName="/ppt/slides/slide%d.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slide+xml"/>`, i+1)
	}
	b.WriteString(`</Types>`)
	return b.String()
}
