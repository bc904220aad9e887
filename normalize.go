package medcontent

import (
	"encoding/json"
	"strings"
)

// NormalizedContent is the flattened view of a WordPress content item that
// screens render directly: rendered HTML fields unwrapped, featured media
// and taxonomy terms pulled out of the _embedded envelope.
type NormalizedContent struct {
	ID            int64    `json:"id"`
	Slug          string   `json:"slug"`
	Link          string   `json:"link"`
	Status        string   `json:"status"`
	Date          string   `json:"date"`
	Modified      string   `json:"modified"`
	Title         string   `json:"title"`
	Content       string   `json:"content"`
	Excerpt       string   `json:"excerpt"`
	FeaturedImage string   `json:"featuredImage"`
	Categories    []string `json:"categories"`
	Tags          []string `json:"tags"`
}

type rendered struct {
	Rendered string `json:"rendered"`
}

type embeddedMedia struct {
	SourceURL    string `json:"source_url"`
	MediaDetails struct {
		Sizes map[string]struct {
			SourceURL string `json:"source_url"`
		} `json:"sizes"`
	} `json:"media_details"`
}

type embeddedTerm struct {
	Taxonomy string `json:"taxonomy"`
	Name     string `json:"name"`
}

type rawContent struct {
	ID       int64    `json:"id"`
	Slug     string   `json:"slug"`
	Link     string   `json:"link"`
	Status   string   `json:"status"`
	Date     string   `json:"date"`
	Modified string   `json:"modified"`
	Title    rendered `json:"title"`
	Content  rendered `json:"content"`
	Excerpt  rendered `json:"excerpt"`
	Embedded struct {
		FeaturedMedia []embeddedMedia  `json:"wp:featuredmedia"`
		Terms         [][]embeddedTerm `json:"wp:term"`
	} `json:"_embedded"`
}

// Normalize flattens one raw content item. Missing fields come back as zero
// values; the call only fails when the input is not a JSON object.
func Normalize(raw json.RawMessage) (*NormalizedContent, error) {
	var item rawContent
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, &ClientError{
			Type:    ErrorTypeClient,
			Message: "content item is not a JSON object",
			Cause:   err,
		}
	}

	normalized := &NormalizedContent{
		ID:       item.ID,
		Slug:     item.Slug,
		Link:     item.Link,
		Status:   item.Status,
		Date:     item.Date,
		Modified: item.Modified,
		Title:    strings.TrimSpace(item.Title.Rendered),
		Content:  item.Content.Rendered,
		Excerpt:  strings.TrimSpace(item.Excerpt.Rendered),
	}

	if len(item.Embedded.FeaturedMedia) > 0 {
		normalized.FeaturedImage = featuredImageURL(item.Embedded.FeaturedMedia[0])
	}
	for _, group := range item.Embedded.Terms {
		for _, term := range group {
			switch term.Taxonomy {
			case "category":
				normalized.Categories = append(normalized.Categories, term.Name)
			case "post_tag":
				normalized.Tags = append(normalized.Tags, term.Name)
			}
		}
	}
	return normalized, nil
}

// NormalizeAll flattens every item in a collection, skipping items that are
// not objects rather than failing the whole page.
func NormalizeAll(items []json.RawMessage) []*NormalizedContent {
	normalized := make([]*NormalizedContent, 0, len(items))
	for _, item := range items {
		content, err := Normalize(item)
		if err != nil {
			continue
		}
		normalized = append(normalized, content)
	}
	return normalized
}

// featuredImageURL preference order: medium_large, medium, full source URL.
func featuredImageURL(media embeddedMedia) string {
	for _, size := range []string{"medium_large", "medium"} {
		if variant, ok := media.MediaDetails.Sizes[size]; ok && variant.SourceURL != "" {
			return variant.SourceURL
		}
	}
	return media.SourceURL
}
