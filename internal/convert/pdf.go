package convert

import (
	"context"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/textloom/textloom/internal/domain"
)

// PDFConverter extracts text from a PDF locally, one page at a time, and
// assembles numbered markdown. Plain-text extraction yields no headers, so
// documents converted this way typically split into a single section.
type PDFConverter struct{}

func NewPDFConverter() *PDFConverter {
	return &PDFConverter{}
}

func (c *PDFConverter) Convert(ctx context.Context, path string) (string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", domain.ConversionFailed(path, err)
	}
	defer f.Close()

	var pages []string
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page does not abort the document.
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}

	markdown := NumberPages(strings.Join(pages, PageBreakPlaceholder))
	if strings.TrimSpace(markdown) == "" {
		return "", domain.ConversionFailed(path, domain.NewDomainError(domain.ErrCodeConversion, "no extractable text"))
	}

	return markdown, nil
}
