package pptx

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brifyai/pptx/internal/tester"
)

func TestSlidesFollowPresentationOrder(t *testing.T) {
	raw := tester.Build(t, tester.Deck{Slides: []string{"", "", ""}})
	pkg, err := Open(raw)
	require.NoError(t, err)

	slides, err := pkg.Slides()
	require.NoError(t, err)
	assert.Equal(t, []string{"ppt/slides/slide1.xml", "ppt/slides/slide2.xml", "ppt/slides/slide3.xml"}, slides)
}

func TestSlidesFallBackToNumericOrder(t *testing.T) {
	raw := tester.Build(t, tester.Deck{
		Slides: []string{"", ""},
		Parts: map[string][]byte{
			"ppt/presentation.xml":   []byte(`<p:presentation xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"/>`),
			"ppt/slides/slide10.xml": []byte(tester.Slide("")),
		},
	})
	pkg, err := Open(raw)
	require.NoError(t, err)

	slides, err := pkg.Slides()
	require.NoError(t, err)
	assert.Equal(t, []string{"ppt/slides/slide1.xml", "ppt/slides/slide2.xml", "ppt/slides/slide10.xml"}, slides)
}

func TestSlideSize(t *testing.T) {
	pkg, err := Open(tester.Build(t, tester.Deck{Width: 9144000, Height: 5143500, Slides: []string{""}}))
	require.NoError(t, err)
	w, h, err := pkg.SlideSize()
	require.NoError(t, err)
	assert.Equal(t, int64(9144000), w)
	assert.Equal(t, int64(5143500), h)

	pkg, err = Open(tester.Build(t, tester.Deck{
		Slides: []string{""},
		Parts: map[string][]byte{
			"ppt/presentation.xml": []byte(`<p:presentation xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"/>`),
		},
	}))
	require.NoError(t, err)
	w, h, err = pkg.SlideSize()
	require.NoError(t, err)
	assert.Equal(t, DefaultSlideWidth, w)
	assert.Equal(t, DefaultSlideHeight, h)
}

func TestRelationshipsResolveRelativeTargets(t *testing.T) {
	pkg, err := Open(tester.Build(t, tester.Deck{Slides: []string{""}}))
	require.NoError(t, err)

	rels, err := pkg.Relationships("ppt/slides/slide1.xml")
	require.NoError(t, err)
	require.Len(t, rels, 2)
	assert.Equal(t, "ppt/slideLayouts/slideLayout1.xml", rels[0].Target)
	assert.Equal(t, "ppt/media/image1.png", rels[1].Target)

	layout, ok := pkg.LayoutOf("ppt/slides/slide1.xml")
	require.True(t, ok)
	assert.Equal(t, "ppt/slideLayouts/slideLayout1.xml", layout)
}

func TestSlideShapesInheritLayoutGeometry(t *testing.T) {
	layout := tester.Layout(
		tester.TextShape{ID: 2, Ph: true, PhType: "title", Geometry: &tester.Geometry{X: 100, Y: 200, CX: 3000, CY: 400}}.String() +
			tester.TextShape{ID: 3, Ph: true, PhIdx: "1", Geometry: &tester.Geometry{X: 100, Y: 800, CX: 3000, CY: 2000}}.String(),
	)
	slide := tester.TextShape{ID: 5, Ph: true, PhType: "title", Paragraphs: [][]string{{"Click to add title"}}}.String() +
		tester.TextShape{ID: 6, Ph: true, PhIdx: "1", Paragraphs: [][]string{{"Body"}}}.String() +
		tester.TextShape{ID: 7, Geometry: &tester.Geometry{X: 10, Y: 20, CX: 30, CY: 40}}.String() +
		tester.Picture(8, tester.Geometry{X: 1, Y: 2, CX: 3, CY: 4})

	pkg, err := Open(tester.Build(t, tester.Deck{Slides: []string{slide}, Layout: layout}))
	require.NoError(t, err)

	shapes, err := pkg.SlideShapes("ppt/slides/slide1.xml")
	require.NoError(t, err)
	require.Len(t, shapes, 4)

	assert.Equal(t, 5, shapes[0].ID)
	assert.Equal(t, "title", shapes[0].PlaceholderType)
	assert.Equal(t, int64(200), shapes[0].Top)
	assert.Equal(t, int64(3000), shapes[0].Width)
	assert.True(t, shapes[0].HasText)

	assert.Equal(t, int64(800), shapes[1].Top)
	assert.Equal(t, "1", shapes[1].PlaceholderIndex)

	assert.False(t, shapes[2].HasPlaceholder)
	assert.Equal(t, int64(40), shapes[2].Height)

	assert.Equal(t, "pic", shapes[3].Kind)
	assert.Equal(t, 8, shapes[3].ID)
}

func TestFontsSkipThemeReferences(t *testing.T) {
	slide := tester.TextShape{ID: 2, Paragraphs: [][]string{{"x"}}, Extra: ``}.String()
	theme := `<a:theme xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"><a:themeElements><a:fontScheme name="f">` +
		`<a:majorFont><a:latin typeface="Montserrat"/><a:ea typeface=""/><a:cs typeface=""/></a:majorFont>` +
		`<a:minorFont><a:latin typeface="Open Sans"/></a:minorFont></a:fontScheme></a:themeElements></a:theme>`
	deck := tester.Deck{
		Slides: []string{slide + `<p:sp><p:txBody><a:p><a:r><a:rPr><a:latin typeface="+mj-lt"/><a:cs typeface="Arial"/></a:rPr><a:t>y</a:t></a:r></a:p></p:txBody></p:sp>`},
		Parts:  map[string][]byte{"ppt/theme/theme1.xml": []byte(theme)},
	}
	pkg, err := Open(tester.Build(t, deck))
	require.NoError(t, err)

	fonts, err := pkg.Fonts()
	require.NoError(t, err)
	assert.Equal(t, []string{"Arial", "Montserrat", "Open Sans"}, fonts)
}

func TestWriteToCopiesUntouchedEntriesRaw(t *testing.T) {
	slide := tester.TextShape{ID: 2, Ph: true, PhType: "title", Paragraphs: [][]string{{"Click to add title"}}}.String()
	raw := tester.Build(t, tester.Deck{Slides: []string{slide, slide}})
	pkg, err := Open(raw)
	require.NoError(t, err)

	doc, err := pkg.ParsePart("ppt/slides/slide1.xml")
	require.NoError(t, err)
	doc.SetText(doc.Root.First(NSDrawing, "t"), "Q1 Results")
	require.NoError(t, pkg.Replace("ppt/slides/slide1.xml", doc.Bytes()))

	out, err := pkg.Bytes()
	require.NoError(t, err)

	before := zipEntries(t, raw)
	after := zipEntries(t, out)
	require.Equal(t, len(before), len(after))
	for i := range before {
		assert.Equal(t, before[i].name, after[i].name)
		if before[i].name == "ppt/slides/slide1.xml" {
			assert.Contains(t, string(after[i].data), "Q1 Results")
			continue
		}
		assert.Equal(t, before[i].raw, after[i].raw, before[i].name)
		assert.Equal(t, before[i].method, after[i].method, before[i].name)
	}
}

type zipEntry struct {
	name   string
	method uint16
	raw    []byte
	data   []byte
}

func zipEntries(t *testing.T, raw []byte) []zipEntry {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	var out []zipEntry
	for _, f := range zr.File {
		rr, err := f.OpenRaw()
		require.NoError(t, err)
		compressed, err := io.ReadAll(rr)
		require.NoError(t, err)
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		out = append(out, zipEntry{name: f.Name, method: f.Method, raw: compressed, data: data})
	}
	return out
}
