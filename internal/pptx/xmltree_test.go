package pptx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSlide = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
  <p:cSld><p:spTree>
    <p:sp><p:nvSpPr><p:cNvPr id="2" name="Title 1"/><p:cNvSpPr/><p:nvPr><p:ph type="title"/></p:nvPr></p:nvSpPr>
      <p:txBody><a:bodyPr/><a:p><a:r><a:rPr lang="es-ES"/><a:t>Haga clic &amp; edite</a:t></a:r></a:p>
      <a:p><a:r><a:t/></a:r><a:r><a:t xml:space="preserve"  /></a:r></a:p></p:txBody></p:sp>
  </p:spTree></p:cSld>
</p:sld>`

func TestParseUntouchedDocumentIsIdentical(t *testing.T) {
	doc, err := Parse([]byte(sampleSlide))
	require.NoError(t, err)
	assert.False(t, doc.Modified())
	assert.Equal(t, sampleSlide, string(doc.Bytes()))
}

func TestParseResolvesNamespaces(t *testing.T) {
	doc, err := Parse([]byte(sampleSlide))
	require.NoError(t, err)
	assert.True(t, doc.Root.Is(NSPresentation, "sld"))

	texts := doc.Root.Find(NSDrawing, "t")
	require.Len(t, texts, 3)
	assert.Equal(t, "Haga clic & edite", doc.Text(texts[0]))
	assert.Equal(t, "", doc.Text(texts[1]))

	ph := doc.Root.First(NSPresentation, "ph")
	typ, ok := ph.Attr("type")
	require.True(t, ok)
	assert.Equal(t, "title", typ)
	require.NotEmpty(t, ph.Attrs)
	assert.Equal(t, "type", ph.Attrs[0].Name.Local)
}

func TestSetTextSplicesOnlyTheTextSpan(t *testing.T) {
	doc, err := Parse([]byte(sampleSlide))
	require.NoError(t, err)
	texts := doc.Root.Find(NSDrawing, "t")

	doc.SetText(texts[0], "Resultados <Q1> & más")
	out := string(doc.Bytes())

	want := strings.Replace(sampleSlide, "Haga clic &amp; edite", "Resultados &lt;Q1&gt; &amp; más", 1)
	assert.Equal(t, want, out)

	again, err := Parse([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, "Resultados <Q1> & más", again.Text(again.Root.Find(NSDrawing, "t")[0]))
}

func TestSetTextExpandsSelfClosingElements(t *testing.T) {
	doc, err := Parse([]byte(sampleSlide))
	require.NoError(t, err)
	texts := doc.Root.Find(NSDrawing, "t")

	doc.SetText(texts[1], "first")
	doc.SetText(texts[2], "second")
	out := string(doc.Bytes())

	assert.Contains(t, out, `<a:r><a:t>first</a:t></a:r>`)
	assert.Contains(t, out, `<a:r><a:t xml:space="preserve">second</a:t></a:r>`)

	again, err := Parse([]byte(out))
	require.NoError(t, err)
	got := again.Root.Find(NSDrawing, "t")
	require.Len(t, got, 3)
	assert.Equal(t, "second", again.Text(got[2]))
}

func TestParseRejectsMalformedXML(t *testing.T) {
	_, err := Parse([]byte(`<p:sld xmlns:p="x"><p:cSld></p:sld>`))
	require.Error(t, err)

	_, err = Parse([]byte(``))
	require.Error(t, err)
}
