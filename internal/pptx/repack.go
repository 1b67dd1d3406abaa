package pptx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
)

// WriteTo serializes the package. Untouched entries are copied raw, so their
// compressed bytes and headers match the source container exactly; modified
// entries are recompressed with their original method.
func (p *Package) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)
	for _, part := range p.parts {
		if !p.Modified(part.Name) {
			if err := zw.Copy(part.file); err != nil {
				return cw.n, fmt.Errorf("copy %s: %w", part.Name, err)
			}
			continue
		}
		hdr := part.file.FileHeader
		hdr.CRC32 = 0
		hdr.CompressedSize = 0
		hdr.CompressedSize64 = 0
		hdr.UncompressedSize = 0
		hdr.UncompressedSize64 = 0
		hdr.Extra = nil
		if hdr.Method != zip.Store {
			hdr.Method = zip.Deflate
		}
		fw, err := zw.CreateHeader(&hdr)
		if err != nil {
			return cw.n, fmt.Errorf("create %s: %w", part.Name, err)
		}
		data, err := p.Read(part.Name)
		if err != nil {
			return cw.n, err
		}
		if _, err := fw.Write(data); err != nil {
			return cw.n, fmt.Errorf("write %s: %w", part.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return cw.n, fmt.Errorf("close package: %w", err)
	}
	return cw.n, nil
}

// Bytes serializes the package into memory.
func (p *Package) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(p.raw))
	if _, err := p.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(b []byte) (int, error) {
	n, err := c.w.Write(b)
	c.n += int64(n)
	return n, err
}
