package vision

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Renderer rasterizes the first slide of a presentation to PNG.
type Renderer interface {
	RenderFirstSlide(ctx context.Context, pptx []byte) ([]byte, error)
}

// SofficeRenderer shells out to a headless LibreOffice.
type SofficeRenderer struct {
	Binary  string
	Timeout time.Duration
}

func NewSofficeRenderer(binary string) *SofficeRenderer {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "soffice"
	}
	return &SofficeRenderer{Binary: binary, Timeout: 60 * time.Second}
}

func (r *SofficeRenderer) RenderFirstSlide(ctx context.Context, pptx []byte) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("renderer is nil")
	}
	dir, err := os.MkdirTemp("", "pptx-render-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "template.pptx")
	if err := os.WriteFile(in, pptx, 0o600); err != nil {
		return nil, err
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, r.Binary, "--headless", "--convert-to", "png", "--outdir", dir, in)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("soffice convert: %w: %s", err, strings.TrimSpace(string(out)))
	}
	png, err := os.ReadFile(filepath.Join(dir, "template.png"))
	if err != nil {
		return nil, fmt.Errorf("read rendered slide: %w", err)
	}
	return png, nil
}
