package ocr

import (
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestPageChunks(t *testing.T) {
	cases := []struct {
		pageCount int
		span      int
		want      []pageRange
	}{
		{0, 5, nil},
		{3, 0, nil},
		{1, 5, []pageRange{{1, 1}}},
		{5, 5, []pageRange{{1, 5}}},
		{6, 5, []pageRange{{1, 5}, {6, 6}}},
		{12, 5, []pageRange{{1, 5}, {6, 10}, {11, 12}}},
		{10, 5, []pageRange{{1, 5}, {6, 10}}},
	}

	for _, c := range cases {
		got := pageChunks(c.pageCount, c.span)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("pageChunks(%d, %d) = %v, want %v", c.pageCount, c.span, got, c.want)
		}
	}
}

func TestChunkFilePath(t *testing.T) {
	dir := filepath.Join("tmp", "ocr")

	got := chunkFilePath(dir, "report", pageRange{From: 6, To: 6})
	want := filepath.Join(dir, "report_6.pdf")
	if got != want {
		t.Errorf("single-page chunk path = %q, want %q", got, want)
	}

	got = chunkFilePath(dir, "report", pageRange{From: 1, To: 5})
	want = filepath.Join(dir, "report_1-5.pdf")
	if got != want {
		t.Errorf("multi-page chunk path = %q, want %q", got, want)
	}
}

func TestJoinPages(t *testing.T) {
	pages := []pageText{
		{Number: 1, Text: "Hemoglobin 13.5 g/dL"},
		{Number: 2, Text: ""},
		{Number: 3, Text: "Impression: unremarkable"},
	}

	got := joinPages(pages, 0)

	if !strings.Contains(got, "--- Page 1 ---\nHemoglobin 13.5 g/dL") {
		t.Errorf("missing page 1 section in %q", got)
	}
	if strings.Contains(got, "Page 2") {
		t.Errorf("blank page was not dropped: %q", got)
	}
	if !strings.Contains(got, "--- Page 3 ---") {
		t.Errorf("missing page 3 marker in %q", got)
	}
}

func TestJoinPagesOffset(t *testing.T) {
	// Chunk-local page 1 with offset 5 is document page 6.
	pages := []pageText{{Number: 1, Text: "continued findings"}}

	got := joinPages(pages, 5)
	if !strings.Contains(got, "--- Page 6 ---") {
		t.Errorf("offset not applied: %q", got)
	}
}

func TestJoinPagesEmpty(t *testing.T) {
	if got := joinPages(nil, 0); got != "" {
		t.Errorf("joinPages(nil) = %q, want empty", got)
	}
	if got := joinPages([]pageText{{Number: 1, Text: ""}}, 0); got != "" {
		t.Errorf("all-blank pages should render empty, got %q", got)
	}
}
