package patcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brifyai/pptx/internal/pptx"
	"github.com/brifyai/pptx/internal/tester"
)

func parseSlide(t *testing.T, tree string) *pptx.Document {
	t.Helper()
	doc, err := pptx.Parse([]byte(tester.Slide(tree)))
	require.NoError(t, err)
	return doc
}

func texts(t *testing.T, raw []byte) []string {
	t.Helper()
	doc, err := pptx.Parse(raw)
	require.NoError(t, err)
	var out []string
	for _, n := range doc.Root.Find(pptx.NSDrawing, "t") {
		out = append(out, doc.Text(n))
	}
	return out
}

func TestPatchTitleAndEmptyBullets(t *testing.T) {
	tree := tester.TextShape{ID: 2, Ph: true, PhType: "title", Paragraphs: [][]string{{"Click to add title"}}}.String() +
		tester.TextShape{ID: 3, Ph: true, PhIdx: "1", Bullets: true, Paragraphs: [][]string{{""}, {""}}}.String()
	doc := parseSlide(t, tree)

	content := SlideContent{Title: "Q1 Results", Bullets: []string{"Revenue up 12%", "Costs down 4%"}}
	res := New(nil).Patch(doc, content.Items())

	assert.Equal(t, 3, res.Replacements)
	assert.Empty(t, res.Unconsumed)
	assert.Equal(t, []string{"Q1 Results", "Revenue up 12%", "Costs down 4%"}, texts(t, doc.Bytes()))
	assert.Equal(t, RoleTitle, res.Replaced[0].Location.Role)
	assert.Equal(t, RoleBullet, res.Replaced[1].Location.Role)
}

func TestPatchWithoutContentLeavesPartIdentical(t *testing.T) {
	raw := tester.Slide(tester.TextShape{ID: 2, Ph: true, PhType: "title", Paragraphs: [][]string{{"Click to add title"}}}.String())
	doc, err := pptx.Parse([]byte(raw))
	require.NoError(t, err)

	res := New(nil).Patch(doc, SlideContent{}.Items())
	assert.Equal(t, 0, res.Replacements)
	assert.False(t, doc.Modified())
	assert.Equal(t, raw, string(doc.Bytes()))
}

func TestPatchKeepsAuthoredBodyText(t *testing.T) {
	tree := tester.TextShape{ID: 3, Paragraphs: [][]string{
		{"Our mission is connecting people everywhere"},
		{"Click to add text"},
	}}.String()
	doc := parseSlide(t, tree)

	res := New(nil).Patch(doc, SlideContent{Body: "We build bridges"}.Items())
	assert.Equal(t, 1, res.Replacements)
	assert.Equal(t, []string{"Our mission is connecting people everywhere", "We build bridges"}, texts(t, doc.Bytes()))
}

func TestPatchFirstTitleRunIsAlwaysTargeted(t *testing.T) {
	tree := tester.TextShape{ID: 2, Ph: true, PhType: "ctrTitle", Paragraphs: [][]string{{"Annual report prepared for our shareholders and partners in 2023"}}}.String() +
		tester.TextShape{ID: 4, Ph: true, PhType: "title", Paragraphs: [][]string{{"Another real heading that should stay exactly as written"}}}.String()
	doc := parseSlide(t, tree)

	res := New(nil).Patch(doc, []Item{{Role: RoleTitle, Text: "New"}, {Role: RoleTitle, Text: "Second"}})
	assert.Equal(t, 1, res.Replacements)
	assert.Equal(t, []Item{{Role: RoleTitle, Text: "Second"}}, res.Unconsumed)
	got := texts(t, doc.Bytes())
	assert.Equal(t, "New", got[0])
	assert.Equal(t, "Another real heading that should stay exactly as written", got[1])
}

func TestPatchHeadingStandsInForMissingTitle(t *testing.T) {
	tree := tester.TextShape{ID: 2, Ph: true, PhType: "title", Paragraphs: [][]string{{"Title"}}}.String()

	doc := parseSlide(t, tree)
	res := New(nil).Patch(doc, SlideContent{Heading: "Agenda"}.Items())
	assert.Equal(t, 1, res.Replacements)
	assert.Equal(t, []string{"Agenda"}, texts(t, doc.Bytes()))

	doc = parseSlide(t, tree)
	res = New(nil).Patch(doc, SlideContent{Title: "Results", Heading: "Agenda"}.Items())
	assert.Equal(t, 1, res.Replacements)
	assert.Equal(t, []Item{{Role: RoleHeading, Text: "Agenda"}}, res.Unconsumed)
}

func TestPatchSubtitleRole(t *testing.T) {
	tree := tester.TextShape{ID: 2, Ph: true, PhType: "subTitle", Paragraphs: [][]string{{"Subtitle"}}}.String()
	doc := parseSlide(t, tree)

	res := New(nil).Patch(doc, SlideContent{Title: "Ignored", Subtitle: "Prepared by Brify"}.Items())
	assert.Equal(t, 1, res.Replacements)
	assert.Equal(t, []string{"Prepared by Brify"}, texts(t, doc.Bytes()))
}

func TestPatchNeverTouchesUnclassifiedPlaceholders(t *testing.T) {
	tree := tester.TextShape{ID: 7, Ph: true, PhType: "ftr", Paragraphs: [][]string{{"Footer"}}}.String() +
		tester.TextShape{ID: 8, Ph: true, PhType: "sldNum", Paragraphs: [][]string{{"‹#›"}}}.String()
	doc := parseSlide(t, tree)

	res := New(nil).Patch(doc, SlideContent{Body: "text", Bullets: []string{"a"}}.Items())
	assert.Equal(t, 0, res.Replacements)
	assert.False(t, doc.Modified())
}

func TestPatchBulletsThenBody(t *testing.T) {
	tree := tester.TextShape{ID: 3, Ph: true, PhType: "body", Paragraphs: [][]string{{"Bullet"}, {"Text"}, {"Item"}}}.String()
	doc := parseSlide(t, tree)

	res := New(nil).Patch(doc, SlideContent{Body: "Summary", Bullets: []string{"One"}}.Items())
	assert.Equal(t, 2, res.Replacements)
	assert.Equal(t, []string{"One", "Summary", "Item"}, texts(t, doc.Bytes()))
}

func TestPatchPreservesSurroundingMarkup(t *testing.T) {
	effects := `<a:gradFill><a:gsLst><a:gs pos="0"><a:srgbClr val="FF0000"/></a:gs></a:gsLst></a:gradFill><a:effectLst><a:outerShdw blurRad="40000"/></a:effectLst>`
	tree := tester.TextShape{ID: 2, Ph: true, PhType: "title", Extra: effects, Paragraphs: [][]string{{"Click to add title"}}}.String()
	raw := tester.Slide(tree)
	doc, err := pptx.Parse([]byte(raw))
	require.NoError(t, err)

	New(nil).Patch(doc, SlideContent{Title: "Q&A <live>"}.Items())
	out := string(doc.Bytes())

	assert.Equal(t, strings.Replace(raw, "Click to add title", "Q&amp;A &lt;live&gt;", 1), out)
}

func TestIndexListsNonEmptyRuns(t *testing.T) {
	tree := tester.TextShape{ID: 2, Name: "Title 1", Ph: true, PhType: "title", Paragraphs: [][]string{{"Click to add title"}}}.String() +
		tester.TextShape{ID: 3, Ph: true, PhIdx: "1", Bullets: true, Paragraphs: [][]string{{""}, {"Growth", "strategy for the coming fiscal year and beyond"}}}.String() +
		tester.TextShape{ID: 9, Ph: true, PhType: "dt", Paragraphs: [][]string{{"12/03/2024"}}}.String()
	doc := parseSlide(t, tree)

	locs := Index(doc, nil)
	require.Len(t, locs, 4)

	assert.Equal(t, TextLocation{ContainerID: 2, ContainerName: "Title 1", Paragraph: 0, Run: 0, Text: "Click to add title", Role: RoleTitle, Placeholder: true}, locs[0])
	assert.Equal(t, 3, locs[1].ContainerID)
	assert.Equal(t, 1, locs[1].Paragraph)
	assert.Equal(t, RoleBullet, locs[1].Role)
	assert.Equal(t, 1, locs[2].Run)
	assert.False(t, locs[2].Placeholder)
	assert.Equal(t, RoleUnclassified, locs[3].Role)
}

func TestQueueConsumesEachItemOnce(t *testing.T) {
	q := NewQueue([]Item{{Role: RoleBullet, Text: "a"}, {Role: RoleBullet, Text: "b"}})
	i, ok := q.peek(RoleBullet)
	require.True(t, ok)
	assert.Equal(t, "a", q.take(i).Text)
	i, ok = q.peek(RoleBullet)
	require.True(t, ok)
	assert.Equal(t, "b", q.take(i).Text)
	_, ok = q.peek(RoleBullet)
	assert.False(t, ok)
	assert.Empty(t, q.Remaining())
}

func TestSlideContentItemsOrder(t *testing.T) {
	c := SlideContent{Bullets: []string{"x", " ", "y"}, Body: "b", Heading: "h", Subtitle: "s", Title: "t"}
	assert.Equal(t, []Item{
		{Role: RoleTitle, Text: "t"},
		{Role: RoleSubtitle, Text: "s"},
		{Role: RoleHeading, Text: "h"},
		{Role: RoleBody, Text: "b"},
		{Role: RoleBullet, Text: "x"},
		{Role: RoleBullet, Text: "y"},
	}, c.Items())
	assert.True(t, SlideContent{Bullets: []string{""}}.Empty())
}

func TestParseContentShapes(t *testing.T) {
	got, err := ParseContent([]byte(`{"slides":[{"type":"title","content":{"title":"A"}},{"title":"B","bullets":["x"]}]}`))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Title)
	assert.Equal(t, "B", got[1].Title)
	assert.Equal(t, []string{"x"}, got[1].Bullets)

	got, err = ParseContent([]byte(`[{"heading":"H"}]`))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "H", got[0].Heading)

	got, err = ParseContent([]byte("  "))
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ParseContent([]byte("{oops"))
	assert.Error(t, err)
}
