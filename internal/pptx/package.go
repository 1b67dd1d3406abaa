package pptx

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
)

const (
	presentationPart = "ppt/presentation.xml"

	relTypeSlide       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide"
	relTypeSlideLayout = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout"

	// Default slide size (10in x 7.5in) used when presentation.xml omits p:sldSz.
	DefaultSlideWidth  int64 = 9144000
	DefaultSlideHeight int64 = 6858000
)

var (
	ErrNoSlides    = errors.New("presentation has no slides")
	ErrPartMissing = errors.New("part not found")

	slidePartRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
)

// PartError ties a failure to the package part it happened in.
type PartError struct {
	Part string
	Err  error
}

func (e *PartError) Error() string {
	return fmt.Sprintf("%s: %v", e.Part, e.Err)
}

func (e *PartError) Unwrap() error { return e.Err }

// Part is one zip entry of the package. Data is only materialized when read.
type Part struct {
	Name string

	file     *zip.File
	data     []byte
	loaded   bool
	modified bool
}

// Package is a read-only view over a presentation container with a set of
// replacement payloads for modified parts.
type Package struct {
	mu sync.Mutex

	raw   []byte
	parts []*Part
	index map[string]*Part
}

// Open reads a presentation container held in memory.
func Open(raw []byte) (*Package, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("open package: %w", err)
	}
	pkg := &Package{raw: raw, index: map[string]*Part{}}
	for _, f := range zr.File {
		p := &Part{Name: f.Name, file: f}
		pkg.parts = append(pkg.parts, p)
		pkg.index[f.Name] = p
	}
	return pkg, nil
}

// Raw returns the bytes the package was opened from.
func (p *Package) Raw() []byte { return p.raw }

// PartNames lists entries in container order.
func (p *Package) PartNames() []string {
	out := make([]string, 0, len(p.parts))
	for _, part := range p.parts {
		out = append(out, part.Name)
	}
	return out
}

func (p *Package) Has(name string) bool {
	_, ok := p.index[name]
	return ok
}

// Read returns the current payload of a part.
func (p *Package) Read(name string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	part, ok := p.index[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrPartMissing)
	}
	if part.loaded {
		return part.data, nil
	}
	rc, err := part.file.Open()
	if err != nil {
		return nil, &PartError{Part: name, Err: err}
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &PartError{Part: name, Err: err}
	}
	part.data = data
	part.loaded = true
	return data, nil
}

// ParsePart reads and parses an XML part.
func (p *Package) ParsePart(name string) (*Document, error) {
	data, err := p.Read(name)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, &PartError{Part: name, Err: err}
	}
	return doc, nil
}

// Replace stages a new payload for an existing part.
func (p *Package) Replace(name string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	part, ok := p.index[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrPartMissing)
	}
	part.data = data
	part.loaded = true
	part.modified = true
	return nil
}

func (p *Package) Modified(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	part, ok := p.index[name]
	return ok && part.modified
}

// Slides returns slide part names in presentation order. The order comes
// from p:sldIdLst; numeric file order is used when it cannot be resolved.
func (p *Package) Slides() ([]string, error) {
	if ordered, err := p.slidesFromPresentation(); err == nil && len(ordered) > 0 {
		return ordered, nil
	}
	var slides []string
	for _, part := range p.parts {
		if slidePartRe.MatchString(part.Name) {
			slides = append(slides, part.Name)
		}
	}
	if len(slides) == 0 {
		return nil, ErrNoSlides
	}
	sort.Slice(slides, func(i, j int) bool {
		return slideNumber(slides[i]) < slideNumber(slides[j])
	})
	return slides, nil
}

func (p *Package) slidesFromPresentation() ([]string, error) {
	doc, err := p.ParsePart(presentationPart)
	if err != nil {
		return nil, err
	}
	rels, err := p.Relationships(presentationPart)
	if err != nil {
		return nil, err
	}
	byID := map[string]Relationship{}
	for _, r := range rels {
		byID[r.ID] = r
	}
	lst := doc.Root.Child(NSPresentation, "sldIdLst")
	var out []string
	for _, sld := range lst.ChildrenNamed(NSPresentation, "sldId") {
		rid, ok := sld.AttrNS(NSRelationship, "id")
		if !ok {
			continue
		}
		rel, ok := byID[rid]
		if !ok || rel.Type != relTypeSlide {
			continue
		}
		if p.Has(rel.Target) {
			out = append(out, rel.Target)
		}
	}
	return out, nil
}

// SlideSize returns the slide width and height in EMU.
func (p *Package) SlideSize() (int64, int64, error) {
	doc, err := p.ParsePart(presentationPart)
	if err != nil {
		if errors.Is(err, ErrPartMissing) {
			return DefaultSlideWidth, DefaultSlideHeight, nil
		}
		return 0, 0, err
	}
	sz := doc.Root.Child(NSPresentation, "sldSz")
	if sz == nil {
		return DefaultSlideWidth, DefaultSlideHeight, nil
	}
	cx := attrInt(sz, "cx")
	cy := attrInt(sz, "cy")
	if cx <= 0 || cy <= 0 {
		return DefaultSlideWidth, DefaultSlideHeight, nil
	}
	return cx, cy, nil
}

// LayoutOf resolves the slide layout part used by a slide.
func (p *Package) LayoutOf(slide string) (string, bool) {
	rels, err := p.Relationships(slide)
	if err != nil {
		return "", false
	}
	for _, r := range rels {
		if r.Type == relTypeSlideLayout && p.Has(r.Target) {
			return r.Target, true
		}
	}
	return "", false
}

func slideNumber(name string) int {
	m := slidePartRe.FindStringSubmatch(name)
	if len(m) != 2 {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func attrInt(n *Node, local string) int64 {
	v, ok := n.Attr(local)
	if !ok {
		return 0
	}
	i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0
	}
	return i
}

// Relationship is one entry of a part's .rels file with Target resolved to
// a package path.
type Relationship struct {
	ID       string
	Type     string
	Target   string
	External bool
}

// Relationships parses the relationships of a part. A part without a .rels
// file has none.
func (p *Package) Relationships(part string) ([]Relationship, error) {
	relsName := path.Join(path.Dir(part), "_rels", path.Base(part)+".rels")
	if !p.Has(relsName) {
		return nil, nil
	}
	doc, err := p.ParsePart(relsName)
	if err != nil {
		return nil, err
	}
	var out []Relationship
	for _, n := range doc.Root.ChildrenNamed(NSPackageRels, "Relationship") {
		id, _ := n.Attr("Id")
		typ, _ := n.Attr("Type")
		target, _ := n.Attr("Target")
		mode, _ := n.Attr("TargetMode")
		rel := Relationship{ID: id, Type: typ, Target: target, External: strings.EqualFold(mode, "External")}
		if !rel.External {
			rel.Target = resolveTarget(part, target)
		}
		out = append(out, rel)
	}
	return out, nil
}

func resolveTarget(source, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(path.Clean(target), "/")
	}
	return path.Clean(path.Join(path.Dir(source), target))
}
