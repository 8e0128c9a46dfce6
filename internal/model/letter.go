package model

import "time"

// PageSourceText and PageSourceOCR tag where a page's text came from.
const (
	PageSourceText = "text"
	PageSourceOCR  = "ocr"
)

// Letter-level text provenance derived from the per-page tags.
const (
	TextSourceNative = "native"
	TextSourceOCR    = "ocr"
	TextSourceMixed  = "mixed"
)

// NormalizedPage is one page of a letter after extraction and cleanup.
type NormalizedPage struct {
	Page      int
	Source    string
	CleanText string
	OCRUsed   bool
}

// NormalizedLetter is the cleaned, page-structured input to the routing core.
// It is immutable once built; routing never mutates it.
type NormalizedLetter struct {
	RequestID     string
	CreatedAt     time.Time
	SourceChannel string
	Filename      string
	Pages         []NormalizedPage
	Subject       string
	Issuer        string
	Addressee     string
	Topics        []string
	Attachments   []string
	CleanText     string
	Metadata      map[string]string
}

// TextSource derives the provenance tag for the letter's text from per-page
// OCR flags: native when no page needed OCR, ocr when all did, mixed otherwise.
func (l *NormalizedLetter) TextSource() string {
	if len(l.Pages) == 0 {
		return TextSourceNative
	}
	ocr := 0
	for _, page := range l.Pages {
		if page.OCRUsed {
			ocr++
		}
	}
	switch ocr {
	case 0:
		return TextSourceNative
	case len(l.Pages):
		return TextSourceOCR
	default:
		return TextSourceMixed
	}
}
