// Package letter adapts upstream extraction payloads into the normalized
// in-memory form the routing engine consumes.
package letter

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vsh-labs/chancery/internal/model"
)

// pagePayload is one extracted page as delivered by the upstream pipeline.
type pagePayload struct {
	Page        int      `json:"page"`
	Source      string   `json:"source"`
	CleanText   string   `json:"clean_text"`
	OCRUsed     *bool    `json:"ocr_used"`
	Subject     string   `json:"subject"`
	Issuer      string   `json:"issuer"`
	Addressee   string   `json:"addressee"`
	Topics      []string `json:"topics"`
	Attachments []string `json:"attachments"`
}

// letterPayload is the full upstream document: either a bare page array or
// an envelope with file metadata.
type letterPayload struct {
	RequestID     string            `json:"request_id"`
	SourceChannel string            `json:"source_channel"`
	Filename      string            `json:"filename"`
	Metadata      map[string]string `json:"metadata"`
	Pages         []pagePayload     `json:"pages"`
}

// Load reads an extraction payload from disk and normalizes it.
func Load(path string) (*model.NormalizedLetter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read letter file: %w", err)
	}
	letter, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if letter.Filename == "" {
		letter.Filename = path
	}
	return letter, nil
}

// Parse normalizes an extraction payload: pages are ordered by page number
// and joined with blank lines, document attributes come from the first page
// that declares them, topics and attachments are merged across pages.
func Parse(data []byte) (*model.NormalizedLetter, error) {
	var payload letterPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		// Bare page arrays are the historical upstream format.
		var pages []pagePayload
		if arrErr := json.Unmarshal(data, &pages); arrErr != nil {
			return nil, fmt.Errorf("payload is neither a letter object nor a page array: %w", err)
		}
		payload = letterPayload{Pages: pages}
	}
	if len(payload.Pages) == 0 {
		return nil, fmt.Errorf("payload contains no pages")
	}

	sort.SliceStable(payload.Pages, func(i, j int) bool {
		return payload.Pages[i].Page < payload.Pages[j].Page
	})

	letter := &model.NormalizedLetter{
		RequestID:     payload.RequestID,
		CreatedAt:     time.Now().UTC(),
		SourceChannel: payload.SourceChannel,
		Filename:      payload.Filename,
		Metadata:      payload.Metadata,
	}
	if letter.RequestID == "" {
		letter.RequestID = "REQ-" + uuid.NewString()
	}
	if letter.SourceChannel == "" {
		letter.SourceChannel = "file"
	}
	if letter.Metadata == nil {
		letter.Metadata = map[string]string{}
	}

	texts := make([]string, 0, len(payload.Pages))
	seenTopics := map[string]struct{}{}
	seenAttachments := map[string]struct{}{}

	for i, page := range payload.Pages {
		normalized := normalizePage(page, i)
		letter.Pages = append(letter.Pages, normalized)
		texts = append(texts, normalized.CleanText)

		if letter.Subject == "" {
			letter.Subject = strings.TrimSpace(page.Subject)
		}
		if letter.Issuer == "" {
			letter.Issuer = strings.TrimSpace(page.Issuer)
		}
		if letter.Addressee == "" {
			letter.Addressee = strings.TrimSpace(page.Addressee)
		}
		letter.Topics = mergeUnique(letter.Topics, page.Topics, seenTopics)
		letter.Attachments = mergeUnique(letter.Attachments, page.Attachments, seenAttachments)
	}

	letter.CleanText = strings.Join(texts, "\n\n")
	return letter, nil
}

func normalizePage(page pagePayload, index int) model.NormalizedPage {
	number := page.Page
	if number <= 0 {
		number = index + 1
	}

	source := page.Source
	if source != model.PageSourceOCR {
		source = model.PageSourceText
	}

	ocrUsed := source == model.PageSourceOCR
	if page.OCRUsed != nil {
		ocrUsed = *page.OCRUsed
	}

	return model.NormalizedPage{
		Page:      number,
		Source:    source,
		CleanText: strings.TrimSpace(page.CleanText),
		OCRUsed:   ocrUsed,
	}
}

func mergeUnique(dst, src []string, seen map[string]struct{}) []string {
	for _, item := range src {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		dst = append(dst, item)
	}
	return dst
}
