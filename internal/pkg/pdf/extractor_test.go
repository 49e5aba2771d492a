package pdf

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func stubExtractor(pages map[int]string) *Extractor {
	e := NewExtractor("")
	e.pageCount = func(pdfPath string) (int, error) {
		return len(pages), nil
	}
	e.extractPage = func(ctx context.Context, pdfPath string, page int) (string, error) {
		text, ok := pages[page]
		if !ok {
			return "", errors.New("page out of range")
		}
		return text, nil
	}
	return e
}

func TestExtractPageInvalidNumber(t *testing.T) {
	e := stubExtractor(nil)
	if _, err := e.ExtractPage(context.Background(), "book.pdf", 0); err == nil {
		t.Fatal("expected error for page 0")
	}
}

func TestExtractRange(t *testing.T) {
	e := stubExtractor(map[int]string{
		1: "page one\n",
		2: "page two\n",
		3: "page three\n",
	})

	text, err := e.ExtractRange(context.Background(), "book.pdf", 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if text != "page one\n\npage two" {
		t.Errorf("unexpected range text: %q", text)
	}

	if _, err := e.ExtractRange(context.Background(), "book.pdf", 3, 1); err == nil {
		t.Error("expected error for inverted range")
	}

	if _, err := e.ExtractRange(context.Background(), "book.pdf", 3, 5); err == nil {
		t.Error("expected error for out-of-range page")
	}
}

func TestFullTextWithMarkers(t *testing.T) {
	pages := map[int]string{}
	for i := 1; i <= 3; i++ {
		pages[i] = fmt.Sprintf("content of page %d\n", i)
	}
	e := stubExtractor(pages)

	marked, err := e.FullTextWithMarkers(context.Background(), "book.pdf")
	if err != nil {
		t.Fatal(err)
	}

	for i := 1; i <= 3; i++ {
		marker := fmt.Sprintf("[Page %d]", i)
		if !strings.Contains(marked, marker) {
			t.Errorf("missing marker %s", marker)
		}
	}
	if !strings.Contains(marked, "content of page 2") {
		t.Error("missing page content")
	}
	if strings.Index(marked, "[Page 1]") > strings.Index(marked, "[Page 2]") {
		t.Error("pages out of order")
	}
}
