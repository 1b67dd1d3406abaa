package vision

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	genai "google.golang.org/genai"
)

// Detector finds layout elements on a slide image.
type Detector interface {
	Detect(ctx context.Context, png []byte) (Result, error)
}

const layoutPrompt = `You are an expert PowerPoint layout analyzer.

Task: analyze the attached slide image and identify every content container (placeholder).

Extraction rules:
1. Classify each area as TITLE, SUBTITLE, BODY, FOOTER, IMAGE_HOLDER or CHART_AREA.
2. Return coordinates normalized to 0-1000 for top, left, width and height.
3. Report visual attributes: color (hex), align (left, center, right) and backgroundColor.

Output plain JSON only, no explanations:
{
  "slide_metadata": {"aspect_ratio": "16:9"},
  "elements": [
    {
      "id": "element_1",
      "type": "TITLE",
      "coordinates": {"top": 50, "left": 100, "width": 800, "height": 100},
      "style": {"color": "#2C3E50", "align": "center"},
      "confidence": 0.95
    }
  ]
}`

var errEmptyDetections = errors.New("model returned no elements")

type GeminiConfig struct {
	APIKey     string
	Model      string
	MaxRetries int
	// Backoff is multiplied by the attempt number between retries.
	Backoff time.Duration
}

// GeminiDetector asks a Gemini model for layout detections.
type GeminiDetector struct {
	generate   generateFunc
	model      string
	maxRetries int
	backoff    time.Duration
}

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

func NewGeminiDetector(ctx context.Context, cfg GeminiConfig) (*GeminiDetector, error) {
	cc := &genai.ClientConfig{Backend: genai.BackendGeminiAPI}
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		cc.APIKey = key
	}
	cli, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	return newGeminiDetector(cli.Models.GenerateContent, cfg), nil
}

func newGeminiDetector(gen generateFunc, cfg GeminiConfig) *GeminiDetector {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-2.5-flash"
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	return &GeminiDetector{generate: gen, model: model, maxRetries: cfg.MaxRetries, backoff: cfg.Backoff}
}

func (g *GeminiDetector) Name() string { return "gemini:" + g.model }

// Detect retries failed calls and empty element lists up to maxRetries
// times, waiting backoff*attempt between attempts.
func (g *GeminiDetector) Detect(ctx context.Context, png []byte) (Result, error) {
	if g == nil || g.generate == nil {
		return Result{}, fmt.Errorf("detector is nil")
	}
	if len(png) == 0 {
		return Result{}, fmt.Errorf("image is required")
	}
	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			wait := g.backoff * time.Duration(attempt)
			log.Printf("vision: retry %d/%d after %s", attempt, g.maxRetries, wait)
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(wait):
			}
		}
		res, err := g.detectOnce(ctx, png)
		if err != nil {
			lastErr = err
			log.Printf("vision: attempt %d/%d failed: %v", attempt+1, g.maxRetries+1, err)
			continue
		}
		if len(res.Detections) == 0 && attempt < g.maxRetries {
			lastErr = errEmptyDetections
			continue
		}
		return res, nil
	}
	return Result{}, fmt.Errorf("vision analysis failed after %d attempts: %w", g.maxRetries+1, lastErr)
}

func (g *GeminiDetector) detectOnce(ctx context.Context, png []byte) (Result, error) {
	resp, err := g.generate(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{
			{Text: layoutPrompt},
			{InlineData: &genai.Blob{MIMEType: "image/png", Data: png}},
		}}},
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			Temperature:      genai.Ptr[float32](0.2),
			MaxOutputTokens:  4096,
		},
	)
	if err != nil {
		return Result{}, err
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return Result{}, ErrNoJSON
	}
	var text strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	return ParseResponse(text.String())
}
