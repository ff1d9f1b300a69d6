package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// visionPageSpan is the page limit for a single synchronous Vision file
// annotation request.
const visionPageSpan = 5

// pageRange is an inclusive 1-based page interval within a PDF.
type pageRange struct {
	From, To int
}

// pageChunks partitions pageCount pages into consecutive ranges of at most
// span pages.
func pageChunks(pageCount, span int) []pageRange {
	if pageCount <= 0 || span <= 0 {
		return nil
	}
	chunks := make([]pageRange, 0, (pageCount+span-1)/span)
	for from := 1; from <= pageCount; from += span {
		to := from + span - 1
		if to > pageCount {
			to = pageCount
		}
		chunks = append(chunks, pageRange{From: from, To: to})
	}
	return chunks
}

// chunkFilePath returns the path pdfcpu's SplitFile writes for the given
// range of base; single-page ranges get "base_N.pdf", multi-page ranges
// "base_N-M.pdf".
func chunkFilePath(dir, base string, r pageRange) string {
	if r.From == r.To {
		return filepath.Join(dir, fmt.Sprintf("%s_%d.pdf", base, r.From))
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%d-%d.pdf", base, r.From, r.To))
}

// optimizePDF validates and rewrites the PDF, tolerating the slightly
// out-of-spec files scanners tend to produce.
func optimizePDF(inPath, outPath string) error {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return api.OptimizeFile(inPath, outPath, cfg)
}

// PDFText extracts text from every page of the PDF at path. The file is
// optimized, split into chunks of at most visionPageSpan pages, and each
// chunk is sent through Vision document text detection. Pages with no
// readable text are skipped; the rest are joined with page markers.
func (c *Client) PDFText(ctx context.Context, path string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "medimind-ocr-")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	optimized := filepath.Join(tmpDir, "report.pdf")
	if err := optimizePDF(path, optimized); err != nil {
		return "", fmt.Errorf("validate/optimize PDF: %w", err)
	}

	pageCount, err := api.PageCountFile(optimized)
	if err != nil {
		return "", fmt.Errorf("page count: %w", err)
	}
	if pageCount == 0 {
		return "", fmt.Errorf("PDF has no pages")
	}

	chunks := pageChunks(pageCount, visionPageSpan)

	// A small PDF goes through in one request without splitting.
	if len(chunks) == 1 {
		content, err := os.ReadFile(optimized)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", optimized, err)
		}
		pages, err := c.fileText(ctx, content)
		if err != nil {
			return "", err
		}
		return joinPages(pages, 0), nil
	}

	if err := api.SplitFile(optimized, tmpDir, visionPageSpan, nil); err != nil {
		return "", fmt.Errorf("split PDF: %w", err)
	}

	var sections []string
	for _, chunk := range chunks {
		chunkPath := chunkFilePath(tmpDir, "report", chunk)
		content, err := os.ReadFile(chunkPath)
		if err != nil {
			return "", fmt.Errorf("read chunk %s: %w", chunkPath, err)
		}
		pages, err := c.fileText(ctx, content)
		if err != nil {
			return "", fmt.Errorf("pages %d-%d: %w", chunk.From, chunk.To, err)
		}
		if s := joinPages(pages, chunk.From-1); s != "" {
			sections = append(sections, s)
		}
	}

	return strings.Join(sections, "\n\n"), nil
}

// joinPages renders per-page text with "--- Page N ---" markers, applying
// offset to translate chunk-local page numbers into document page numbers.
// Blank pages are dropped.
func joinPages(pages []pageText, offset int) string {
	var parts []string
	for _, p := range pages {
		if p.Text == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("--- Page %d ---\n%s", p.Number+offset, p.Text))
	}
	return strings.Join(parts, "\n\n")
}
