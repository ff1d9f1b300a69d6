package main

import (
	"context"
	"fmt"
	"strings"
)

// noReadableTextAnalysis is persisted when OCR succeeds but yields nothing
// worth analyzing.
const noReadableTextAnalysis = "No readable text found in the document. Please ensure the image is clear and contains text."

// processUploadedFile runs the per-upload pipeline on the temp file at
// path: OCR extraction, then AI analysis of the extracted text.
//
// Returns (extractedText, aiAnalysis, nil) on success, including degraded
// outcomes where aiAnalysis is a canned fallback string. A non-nil error
// means a hard OCR/AI failure; the caller must not persist any record.
func (h *Handlers) processUploadedFile(ctx context.Context, path, ext string) (string, string, error) {
	extracted, err := h.OCR.ExtractFile(ctx, path, ext)
	if err != nil {
		processingFailures.WithLabelValues("ocr").Inc()
		return "", "", fmt.Errorf("text extraction failed: %w", err)
	}

	if len(strings.TrimSpace(extracted)) < 5 {
		return "", noReadableTextAnalysis, nil
	}

	aiAnalysis, err := h.Analyzer.Analyze(ctx, extracted)
	if err != nil {
		processingFailures.WithLabelValues("analyze").Inc()
		return "", "", fmt.Errorf("AI analysis failed: %w", err)
	}

	return extracted, aiAnalysis, nil
}
