package cloner

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brifyai/pptx/internal/patcher"
	"github.com/brifyai/pptx/internal/pptx"
	"github.com/brifyai/pptx/internal/tester"
)

const timing = `<p:timing><p:tnLst><p:par><p:cTn id="1" dur="indefinite" restart="never" nodeType="tmRoot"/></p:par></p:tnLst></p:timing>`

func titleAndBullets() string {
	tree := tester.TextShape{ID: 2, Ph: true, PhType: "title", Paragraphs: [][]string{{"Click to add title"}}}.String() +
		tester.TextShape{ID: 3, Ph: true, PhIdx: "1", Bullets: true, Paragraphs: [][]string{{""}, {""}},
			Extra: `<a:gradFill><a:gsLst><a:gs pos="0"><a:srgbClr val="FFFFFF"/></a:gs></a:gsLst></a:gradFill>`}.String() +
		tester.Picture(4, tester.Geometry{X: 10, Y: 10, CX: 100, CY: 100})
	return strings.Replace(tester.Slide(tree), `</p:sld>`, timing+`</p:sld>`, 1)
}

func entries(t *testing.T, raw []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	out := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		out[f.Name] = b
	}
	return out
}

func TestCloneScenario(t *testing.T) {
	second := tester.TextShape{ID: 2, Ph: true, PhType: "title", Paragraphs: [][]string{{"Click to add title"}}}.String()
	raw := tester.Build(t, tester.Deck{Slides: []string{titleAndBullets(), second}})

	out, report, err := New(nil, 2).Clone(context.Background(), raw, []patcher.SlideContent{
		{Title: "Q1 Results", Bullets: []string{"Revenue up 12%", "Costs down 4%"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Replacements)
	require.Len(t, report.Slides, 1)
	assert.Equal(t, "ppt/slides/slide1.xml", report.Slides[0].Slide)
	assert.Empty(t, report.Failures)
	assert.Equal(t, "success", report.Preservation.Status)
	assert.Equal(t, 1, report.Preservation.FullyPreserved)
	require.NotNil(t, report.Slides[0].Preservation)
	assert.True(t, report.Slides[0].Preservation.After.HasAnimationTiming)
	assert.True(t, report.Slides[0].Preservation.After.HasGradientFill)
	assert.Equal(t, 1, report.Slides[0].Preservation.After.PictureCount)

	before, after := entries(t, raw), entries(t, out)
	require.Len(t, after, len(before))
	for name, data := range before {
		if name == "ppt/slides/slide1.xml" {
			continue
		}
		assert.Equal(t, data, after[name], name)
	}
	patched := string(after["ppt/slides/slide1.xml"])
	assert.Contains(t, patched, ">Q1 Results<")
	assert.Contains(t, patched, ">Revenue up 12%<")
	assert.Contains(t, patched, ">Costs down 4%<")
	assert.Contains(t, patched, timing)
}

func TestCloneWithoutContentIsIdentity(t *testing.T) {
	raw := tester.Build(t, tester.Deck{Slides: []string{titleAndBullets()}})
	out, report, err := New(nil, 0).Clone(context.Background(), raw, nil)
	require.NoError(t, err)
	assert.Zero(t, report.Replacements)
	assert.Equal(t, entries(t, raw), entries(t, out))
}

func TestCloneIsolatesBrokenSlides(t *testing.T) {
	broken := `<?xml version="1.0"?><p:sld xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"><p:cSld>`
	raw := tester.Build(t, tester.Deck{Slides: []string{titleAndBullets(), broken}})

	out, report, err := New(nil, 4).Clone(context.Background(), raw, []patcher.SlideContent{
		{Title: "Kept going"},
		{Title: "Never placed"},
	})
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "ppt/slides/slide2.xml", report.Failures[0].Part)
	assert.NotEmpty(t, report.Slides[1].Error)
	assert.Equal(t, 1, report.Replacements)

	after := entries(t, out)
	assert.Equal(t, broken, string(after["ppt/slides/slide2.xml"]))
	assert.Contains(t, string(after["ppt/slides/slide1.xml"]), ">Kept going<")
}

func TestCloneRejectsDecksWithoutSlides(t *testing.T) {
	raw := tester.Build(t, tester.Deck{})
	_, _, err := New(nil, 1).Clone(context.Background(), raw, []patcher.SlideContent{{Title: "x"}})
	assert.True(t, errors.Is(err, pptx.ErrNoSlides))

	_, _, err = New(nil, 1).Clone(context.Background(), []byte("not a zip"), nil)
	assert.Error(t, err)
}

func TestCloneHonorsCancellation(t *testing.T) {
	raw := tester.Build(t, tester.Deck{Slides: []string{titleAndBullets()}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := New(nil, 1).Clone(ctx, raw, []patcher.SlideContent{{Title: "x"}})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestInspect(t *testing.T) {
	long := strings.Repeat("quarterly revenue ", 10)
	tree := tester.TextShape{ID: 2, Ph: true, PhType: "title", Paragraphs: [][]string{{"Click to add title"}}}.String() +
		tester.TextShape{ID: 3, Paragraphs: [][]string{{long}, {""}}}.String()
	raw := tester.Build(t, tester.Deck{Width: 9144000, Height: 5143500, Slides: []string{tree}})

	info, err := Inspect(raw, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, info.SlideCount)
	assert.Equal(t, int64(9144000), info.Width)
	assert.Equal(t, int64(5143500), info.Height)
	require.Len(t, info.Slides, 1)

	texts := info.Slides[0].Texts
	require.Len(t, texts, 2)
	assert.Equal(t, patcher.RoleTitle, texts[0].Role)
	assert.True(t, texts[0].Placeholder)
	assert.Equal(t, patcher.RoleBody, texts[1].Role)
	assert.False(t, texts[1].Placeholder)
	assert.Len(t, []rune(texts[1].Text), 50)
}
