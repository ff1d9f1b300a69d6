// Package ocr extracts text from uploaded report files using the Cloud
// Vision API. Images are annotated directly; PDFs are validated and split
// into small page chunks first (Vision's synchronous file annotation
// handles at most 5 pages per request).
package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	vision "google.golang.org/api/vision/v1"
)

// Client wraps the Cloud Vision service for document text detection.
type Client struct {
	svc *vision.Service
}

// NewClient creates a Vision client using Application Default Credentials.
func NewClient(ctx context.Context) (*Client, error) {
	svc, err := vision.NewService(ctx)
	if err != nil {
		return nil, fmt.Errorf("vision.NewService: %w", err)
	}
	return &Client{svc: svc}, nil
}

// pageText is the extracted text of a single page within one annotated
// file, numbered from 1 within that file.
type pageText struct {
	Number int
	Text   string
}

// ImageText runs document text detection on a single image (png, jpg,
// jpeg, gif) and returns the extracted text, trimmed.
func (c *Client) ImageText(ctx context.Context, content []byte) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("empty image content")
	}

	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image: &vision.Image{
				Content: base64.StdEncoding.EncodeToString(content),
			},
			Features: []*vision.Feature{{Type: "DOCUMENT_TEXT_DETECTION"}},
		}},
	}

	resp, err := c.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("vision Images.Annotate: %w", err)
	}
	if len(resp.Responses) == 0 {
		return "", fmt.Errorf("vision returned no responses")
	}
	r := resp.Responses[0]
	if r.Error != nil {
		return "", fmt.Errorf("vision annotation error: %s", r.Error.Message)
	}
	if r.FullTextAnnotation == nil {
		return "", nil
	}
	return strings.TrimSpace(r.FullTextAnnotation.Text), nil
}

// fileText annotates one inline PDF (at most visionPageSpan pages) and
// returns per-page text in page order.
func (c *Client) fileText(ctx context.Context, content []byte) ([]pageText, error) {
	req := &vision.BatchAnnotateFilesRequest{
		Requests: []*vision.AnnotateFileRequest{{
			InputConfig: &vision.InputConfig{
				Content:  base64.StdEncoding.EncodeToString(content),
				MimeType: "application/pdf",
			},
			Features: []*vision.Feature{{Type: "DOCUMENT_TEXT_DETECTION"}},
		}},
	}

	resp, err := c.svc.Files.Annotate(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("vision Files.Annotate: %w", err)
	}
	if len(resp.Responses) == 0 {
		return nil, fmt.Errorf("vision returned no file responses")
	}
	fr := resp.Responses[0]
	if fr.Error != nil {
		return nil, fmt.Errorf("vision file annotation error: %s", fr.Error.Message)
	}

	pages := make([]pageText, 0, len(fr.Responses))
	for i, pr := range fr.Responses {
		if pr == nil || pr.Error != nil {
			continue
		}
		number := i + 1
		if pr.Context != nil && pr.Context.PageNumber > 0 {
			number = int(pr.Context.PageNumber)
		}
		text := ""
		if pr.FullTextAnnotation != nil {
			text = strings.TrimSpace(pr.FullTextAnnotation.Text)
		}
		pages = append(pages, pageText{Number: number, Text: text})
	}
	return pages, nil
}

// ExtractFile extracts text from the file at path according to its
// extension (pdf, png, jpg, jpeg, gif).
func (c *Client) ExtractFile(ctx context.Context, path, ext string) (string, error) {
	switch strings.ToLower(ext) {
	case "pdf":
		return c.PDFText(ctx, path)
	case "png", "jpg", "jpeg", "gif":
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		return c.ImageText(ctx, content)
	default:
		return "", fmt.Errorf("unsupported file type: %s", ext)
	}
}
