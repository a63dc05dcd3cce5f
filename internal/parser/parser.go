package parser

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"
)

var ErrNotPDF = errors.New("file is not a valid PDF")

// TextExtractor turns PDF bytes into plain text. Implementations return ""
// when nothing can be extracted.
type TextExtractor interface {
	ExtractText(data []byte) string
}

type PDFExtractor struct{}

func (PDFExtractor) ExtractText(data []byte) string {
	return ExtractText(data)
}

// ExtractText concatenates the plain text of every page, each followed by a
// newline. Unreadable or blank documents yield "".
func ExtractText(data []byte) (text string) {
	if len(data) == 0 {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("PDF reader panicked")
			text = ""
		}
	}()

	content, err := parsePDF(data)
	if err != nil {
		log.Error().Err(err).Msg("Error extracting text from PDF")
		return ""
	}
	if strings.TrimSpace(content) == "" {
		log.Warn().Msg("No text extracted from PDF")
		return ""
	}
	log.Debug().Int("chars", len(content)).Msg("Extracted text from PDF")
	return content
}

func parsePDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var content strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		content.WriteString(pageText)
		content.WriteString("\n")
	}
	return content.String(), nil
}

// ValidatePDF checks the structure of an uploaded file and returns its page count.
func ValidatePDF(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, ErrNotPDF
	}
	conf := model.NewDefaultConfiguration()
	pages, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	if pages == 0 {
		return 0, ErrNotPDF
	}
	return pages, nil
}
