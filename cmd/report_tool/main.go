package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"medimind-rest/analysis"
	"medimind-rest/ocr"
)

/*

 Local pipeline tool: run OCR and/or AI analysis against a report file
 without going through the HTTP server.

 go run ./cmd/report_tool \
 -action=ocr \
 -file=testdata/bloodwork.pdf

 go run ./cmd/report_tool \
 -action=analyze \
 -file=testdata/bloodwork.pdf \
 -project=medimind-dev

 go run ./cmd/report_tool \
 -action=prompt \
 -file=extracted.txt

*/

func main() {
	var (
		filePath  = flag.String("file", "", "path to a report file (pdf/png/jpg/jpeg/gif), or plain text for -action=prompt")
		action    = flag.String("action", "ocr", "action: ocr|analyze|prompt")
		projectID = flag.String("project", "medimind-dev", "GCP project ID")
		region    = flag.String("region", "us-central1", "Vertex AI region")
	)
	flag.Parse()

	if *filePath == "" {
		log.Fatal("-file is required")
	}

	ctx := context.Background()

	switch *action {
	case "ocr":
		text, err := extractText(ctx, *filePath)
		if err != nil {
			log.Fatalf("extract: %v", err)
		}
		fmt.Println(text)

	case "analyze":
		text, err := extractText(ctx, *filePath)
		if err != nil {
			log.Fatalf("extract: %v", err)
		}

		client, err := analysis.NewClient(ctx, *projectID, *region)
		if err != nil {
			log.Fatalf("analysis.NewClient: %v", err)
		}
		defer client.Close()

		result, err := client.Analyze(ctx, text)
		if err != nil {
			log.Fatalf("Analyze: %v", err)
		}
		fmt.Println(result)

	case "prompt":
		// Prints the exact prompt the analyzer would send, from a file of
		// already-extracted text. Handy when tuning prompt changes.
		raw, err := os.ReadFile(*filePath)
		if err != nil {
			log.Fatalf("read %s: %v", *filePath, err)
		}
		fmt.Println(analysis.BuildPrompt(analysis.TruncateInput(string(raw))))

	default:
		log.Fatalf("unknown action %q", *action)
	}
}

func extractText(ctx context.Context, path string) (string, error) {
	idx := strings.LastIndex(path, ".")
	if idx < 0 {
		return "", fmt.Errorf("file %s has no extension", path)
	}
	ext := strings.ToLower(path[idx+1:])

	client, err := ocr.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("ocr.NewClient: %w", err)
	}
	return client.ExtractFile(ctx, path, ext)
}
