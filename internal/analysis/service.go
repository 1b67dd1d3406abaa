// Package analysis ties template analysis, corrections and cloning to the
// mapping and document stores.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brifyai/pptx/internal/cloner"
	"github.com/brifyai/pptx/internal/mapping"
	"github.com/brifyai/pptx/internal/matcher"
	"github.com/brifyai/pptx/internal/patcher"
	"github.com/brifyai/pptx/internal/placeholder"
	"github.com/brifyai/pptx/internal/pptx"
	"github.com/brifyai/pptx/internal/repository/document"
	mappingrepo "github.com/brifyai/pptx/internal/repository/mapping"
	"github.com/brifyai/pptx/internal/vision"
)

var (
	ErrTemplateRequired = errors.New("template is required")
	ErrInvalidType      = errors.New("invalid element type")
)

type Options struct {
	Mappings   mappingrepo.Store
	Documents  document.Store
	Detector   vision.Detector
	Renderer   vision.Renderer
	Classifier *placeholder.Classifier
	Workers    int
}

type Service struct {
	mappings   mappingrepo.Store
	documents  document.Store
	detector   vision.Detector
	renderer   vision.Renderer
	classifier *placeholder.Classifier
	cloner     *cloner.Cloner

	now   func() time.Time
	newID func() string

	// writes serializes the final merge+save of an analysis against
	// corrections on the same hash.
	writes [32]sync.Mutex
}

func (s *Service) lockHash(hash string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(hash))
	mu := &s.writes[h.Sum32()%uint32(len(s.writes))]
	mu.Lock()
	return mu.Unlock
}

func New(opts Options) (*Service, error) {
	if opts.Mappings == nil {
		return nil, fmt.Errorf("mapping store is nil")
	}
	c := opts.Classifier
	if c == nil {
		c = placeholder.Default
	}
	return &Service{
		mappings:   opts.Mappings,
		documents:  opts.Documents,
		detector:   opts.Detector,
		renderer:   opts.Renderer,
		classifier: c,
		cloner:     cloner.New(c, opts.Workers),
		now:        time.Now,
		newID:      uuid.NewString,
	}, nil
}

type AnalyzeRequest struct {
	Template []byte
	// Image is an optional rendering of the first slide in any raster format.
	Image []byte
	Name  string
	// Force re-analyzes even when a mapping for the template exists.
	Force bool
}

// AnalyzeTemplate returns the mapping for a template, analyzing it when no
// stored mapping exists. Detection failures degrade to geometry-only
// classification. Stored user corrections always survive re-analysis.
func (s *Service) AnalyzeTemplate(ctx context.Context, req AnalyzeRequest) (*mapping.Mapping, error) {
	if len(req.Template) == 0 {
		return nil, ErrTemplateRequired
	}
	hash := mapping.Hash(req.Template)

	prev, found, err := s.mappings.Get(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("load mapping: %w", err)
	}
	if found && !req.Force {
		prev.Source = mapping.SourceCache
		log.Printf("analysis: cache hit hash=%s", short(hash))
		return prev, nil
	}

	pkg, err := pptx.Open(req.Template)
	if err != nil {
		return nil, err
	}
	slides, err := pkg.Slides()
	if err != nil {
		return nil, err
	}
	width, height, err := pkg.SlideSize()
	if err != nil {
		return nil, err
	}
	m, err := matcher.New(width, height)
	if err != nil {
		return nil, err
	}
	native, err := pkg.SlideShapes(slides[0])
	if err != nil {
		return nil, err
	}
	shapes := toMatcherShapes(native)

	fresh := &mapping.Mapping{
		TemplateHash: hash,
		TemplateID:   s.newID(),
		Name:         strings.TrimSpace(req.Name),
		AnalyzedAt:   s.now().UTC(),
		Source:       mapping.SourceGeometry,
	}
	if found {
		fresh.TemplateID = prev.TemplateID
		if fresh.Name == "" {
			fresh.Name = prev.Name
		}
	}

	var detections []matcher.Detection
	if res, ok := s.detect(ctx, req); ok && len(res.Detections) > 0 {
		detections = res.Detections
		fresh.Source = mapping.SourceVision
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buildElements(fresh, m, detections, shapes, width, height)
	if err := s.saveMerged(ctx, fresh); err != nil {
		return nil, err
	}
	if s.documents != nil {
		if err := s.documents.Put(ctx, document.TemplateKey(hash), req.Template); err != nil {
			log.Printf("analysis: store template hash=%s failed: %v", short(hash), err)
		}
	}
	log.Printf("analysis: analyzed hash=%s source=%s elements=%d mapped=%d",
		short(hash), fresh.Source, len(fresh.Elements), len(fresh.ShapeMapping))
	return fresh, nil
}

// saveMerged re-reads the stored mapping under the hash lock so corrections
// made while detection ran are carried into the fresh analysis.
func (s *Service) saveMerged(ctx context.Context, fresh *mapping.Mapping) error {
	defer s.lockHash(fresh.TemplateHash)()
	latest, _, err := s.mappings.Get(ctx, fresh.TemplateHash)
	if err != nil {
		return fmt.Errorf("load mapping: %w", err)
	}
	mapping.MergeCorrections(latest, fresh)
	if err := s.mappings.Save(ctx, fresh); err != nil {
		return fmt.Errorf("save mapping: %w", err)
	}
	return nil
}

func (s *Service) detect(ctx context.Context, req AnalyzeRequest) (vision.Result, bool) {
	if s.detector == nil {
		return vision.Result{}, false
	}
	img := req.Image
	if len(img) == 0 && s.renderer != nil {
		rendered, err := s.renderer.RenderFirstSlide(ctx, req.Template)
		if err != nil {
			log.Printf("analysis: render failed, using geometry: %v", err)
			return vision.Result{}, false
		}
		img = rendered
	}
	if len(img) == 0 {
		return vision.Result{}, false
	}
	png, err := vision.PrepareImage(img)
	if err != nil {
		log.Printf("analysis: image rejected, using geometry: %v", err)
		return vision.Result{}, false
	}
	res, err := s.detector.Detect(ctx, png)
	if err != nil {
		log.Printf("analysis: detection failed, using geometry: %v", err)
		return vision.Result{}, false
	}
	return res, true
}

// buildElements turns detections into elements bound to their matched
// shape, then adds an element for every shape type the geometry and
// placeholder fallback claims.
func buildElements(dst *mapping.Mapping, m *matcher.Matcher, detections []matcher.Detection, shapes []matcher.Shape, width, height int64) {
	matches := m.Match(detections, shapes)
	byDetection := make(map[string]int, len(matches))
	shapeMap := make(map[matcher.ElementType]int, len(matches))
	for _, mt := range matches {
		byDetection[mt.Detection.ID] = mt.ShapeID
		shapeMap[mt.Type] = mt.ShapeID
	}
	for _, d := range detections {
		el := mapping.Element{ID: d.ID, Type: d.Type, Rect: d.Rect, Style: d.Style, Confidence: d.Confidence}
		if id, ok := byDetection[d.ID]; ok {
			id := id
			el.ShapeID = &id
		}
		dst.Elements = append(dst.Elements, el)
	}

	completed := m.Complete(shapeMap, shapes)
	byID := make(map[int]matcher.Shape, len(shapes))
	for _, sh := range shapes {
		byID[sh.ID] = sh
	}
	for _, typ := range completedOrder(completed, shapes) {
		id := completed[typ]
		if _, ok := shapeMap[typ]; ok {
			continue
		}
		sh := byID[id]
		el := mapping.Element{
			ID:         fmt.Sprintf("shape_%d", id),
			Type:       typ,
			Rect:       normalizedRect(sh, width, height),
			Style:      matcher.Style{Color: "#000000", Align: "left"},
			Confidence: 1,
			ShapeID:    &id,
		}
		if !sh.HasPlaceholder {
			el.Confidence = 0.5
		}
		dst.Elements = append(dst.Elements, el)
	}
	dst.ShapeMapping = completed
}

// completedOrder lists mapped types by the slide order of their shape.
func completedOrder(mapped map[matcher.ElementType]int, shapes []matcher.Shape) []matcher.ElementType {
	var out []matcher.ElementType
	for _, sh := range shapes {
		for typ, id := range mapped {
			if id == sh.ID {
				out = append(out, typ)
			}
		}
	}
	return out
}

func normalizedRect(s matcher.Shape, width, height int64) matcher.Rect {
	scale := func(v, dim int64) int {
		n := (v*1000 + dim/2) / dim
		return int(max(0, min(1000, n)))
	}
	return matcher.Rect{
		Left:   scale(s.Left, width),
		Top:    scale(s.Top, height),
		Width:  scale(s.Width, width),
		Height: scale(s.Height, height),
	}
}

func toMatcherShapes(in []pptx.Shape) []matcher.Shape {
	out := make([]matcher.Shape, 0, len(in))
	for _, s := range in {
		out = append(out, matcher.Shape{
			ID:              s.ID,
			Kind:            s.Kind,
			Left:            s.Left,
			Top:             s.Top,
			Width:           s.Width,
			Height:          s.Height,
			PlaceholderType: s.PlaceholderType,
			HasPlaceholder:  s.HasPlaceholder,
		})
	}
	return out
}

// Correct applies a user correction. It reports false when the template or
// element is unknown.
func (s *Service) Correct(ctx context.Context, hash, elementID, typ string) (bool, error) {
	t := matcher.ParseElementType(typ)
	if t == matcher.Unknown && !strings.EqualFold(strings.TrimSpace(typ), string(matcher.Unknown)) {
		return false, fmt.Errorf("%w: %q", ErrInvalidType, typ)
	}
	hash = strings.TrimSpace(hash)
	unlock := s.lockHash(hash)
	ok, err := s.mappings.Correct(ctx, hash, strings.TrimSpace(elementID), t)
	unlock()
	if err != nil {
		return false, err
	}
	if ok {
		log.Printf("analysis: corrected hash=%s element=%s type=%s", short(hash), elementID, t)
	}
	return ok, nil
}

func (s *Service) Mapping(ctx context.Context, hash string) (*mapping.Mapping, bool, error) {
	return s.mappings.Get(ctx, strings.TrimSpace(hash))
}

func (s *Service) Templates(ctx context.Context) ([]mapping.Summary, error) {
	return s.mappings.List(ctx)
}

// DeleteTemplate removes the mapping and the stored template bytes.
func (s *Service) DeleteTemplate(ctx context.Context, hash string) (bool, error) {
	hash = strings.TrimSpace(hash)
	ok, err := s.mappings.Delete(ctx, hash)
	if err != nil || !ok {
		return ok, err
	}
	if s.documents != nil {
		if err := s.documents.Delete(ctx, document.TemplateKey(hash)); err != nil {
			log.Printf("analysis: delete template document hash=%s failed: %v", short(hash), err)
		}
	}
	return true, nil
}

type CloneResult struct {
	Output []byte
	// OutputKey is set when the output was persisted to the document store.
	OutputKey string
	Report    cloner.Report
}

func (s *Service) Clone(ctx context.Context, template []byte, content []patcher.SlideContent) (CloneResult, error) {
	if len(template) == 0 {
		return CloneResult{}, ErrTemplateRequired
	}
	out, report, err := s.cloner.Clone(ctx, template, content)
	if err != nil {
		return CloneResult{}, err
	}
	res := CloneResult{Output: out, Report: report}
	if s.documents != nil {
		key := document.OutputKey(s.newID())
		if err := s.documents.Put(ctx, key, out); err != nil {
			log.Printf("analysis: store output failed: %v", err)
		} else {
			res.OutputKey = key
		}
	}
	return res, nil
}

// Inspect describes the text layout of a template.
func (s *Service) Inspect(template []byte) (cloner.TemplateInfo, error) {
	if len(template) == 0 {
		return cloner.TemplateInfo{}, ErrTemplateRequired
	}
	return cloner.Inspect(template, s.classifier)
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
