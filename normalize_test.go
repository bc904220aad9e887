package medcontent

import (
	"encoding/json"
	"testing"
)

const samplePost = `{
	"id": 101,
	"slug": "kham-tong-quat",
	"link": "https://benhvien.test/kham-tong-quat",
	"status": "publish",
	"date": "2024-03-01T08:00:00",
	"modified": "2024-03-02T09:30:00",
	"title": {"rendered": "Khám tổng quát "},
	"content": {"rendered": "<p>Nội dung</p>"},
	"excerpt": {"rendered": "Tóm tắt\n"},
	"_embedded": {
		"wp:featuredmedia": [{
			"source_url": "https://cdn.test/full.jpg",
			"media_details": {
				"sizes": {
					"medium": {"source_url": "https://cdn.test/medium.jpg"},
					"medium_large": {"source_url": "https://cdn.test/medium-large.jpg"}
				}
			}
		}],
		"wp:term": [
			[{"taxonomy": "category", "name": "Sức khỏe"}],
			[{"taxonomy": "post_tag", "name": "khám bệnh"}, {"taxonomy": "post_tag", "name": "tổng quát"}]
		]
	}
}`

func TestNormalize(t *testing.T) {
	content, err := Normalize(json.RawMessage(samplePost))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if content.ID != 101 {
		t.Errorf("ID = %d", content.ID)
	}
	if content.Title != "Khám tổng quát" {
		t.Errorf("Title = %q, want trimmed rendered title", content.Title)
	}
	if content.Content != "<p>Nội dung</p>" {
		t.Errorf("Content = %q", content.Content)
	}
	if content.Excerpt != "Tóm tắt" {
		t.Errorf("Excerpt = %q, want trimmed", content.Excerpt)
	}
	if content.FeaturedImage != "https://cdn.test/medium-large.jpg" {
		t.Errorf("FeaturedImage = %q, want medium_large preferred", content.FeaturedImage)
	}
	if len(content.Categories) != 1 || content.Categories[0] != "Sức khỏe" {
		t.Errorf("Categories = %v", content.Categories)
	}
	if len(content.Tags) != 2 {
		t.Errorf("Tags = %v", content.Tags)
	}
}

func TestNormalizeMissingEmbeds(t *testing.T) {
	content, err := Normalize(json.RawMessage(`{"id": 7, "title": {"rendered": "Bare"}}`))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if content.FeaturedImage != "" {
		t.Error("no embedded media means no featured image")
	}
	if content.Categories != nil || content.Tags != nil {
		t.Error("no embedded terms means no taxonomy")
	}
}

func TestNormalizeFeaturedImageFallsBackToSource(t *testing.T) {
	raw := `{"id": 1, "_embedded": {"wp:featuredmedia": [{"source_url": "https://cdn.test/full.jpg"}]}}`
	content, err := Normalize(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if content.FeaturedImage != "https://cdn.test/full.jpg" {
		t.Errorf("FeaturedImage = %q, want source_url fallback", content.FeaturedImage)
	}
}

func TestNormalizeRejectsNonObjects(t *testing.T) {
	if _, err := Normalize(json.RawMessage(`[1,2,3]`)); err == nil {
		t.Error("arrays should be rejected")
	}
}

func TestNormalizeAllSkipsBadItems(t *testing.T) {
	items := []json.RawMessage{
		json.RawMessage(`{"id": 1}`),
		json.RawMessage(`"just a string"`),
		json.RawMessage(`{"id": 2}`),
	}
	normalized := NormalizeAll(items)
	if len(normalized) != 2 {
		t.Errorf("NormalizeAll kept %d items, want 2", len(normalized))
	}
}
