package sanitize_test

import (
	"strings"
	"testing"

	"github.com/adcommander/adcmdr-tools/internal/models"
	"github.com/adcommander/adcmdr-tools/internal/sanitize"
	"github.com/adcommander/adcmdr-tools/internal/schema"
)

func newSanitizer() (*sanitize.Sanitizer, *schema.Registry) {
	reg := schema.NewRegistry(schema.DefaultPrefix)

	return sanitize.New(reg), reg
}

func TestEntity_ExactFieldSet(t *testing.T) {
	t.Parallel()

	s, reg := newSanitizer()

	for _, et := range models.AllEntityTypes() {
		raw := models.Row{"unexpected": "x", "another_unknown": "y"}

		got, err := s.Entity(et, raw)
		if err != nil {
			t.Fatalf("Entity(%s): %v", et, err)
		}

		want := reg.HeadingNames(et, schema.AllFields)
		if len(got) != len(want) {
			t.Errorf("%s: got %d fields, want %d", et, len(got), len(want))
		}

		for _, name := range want {
			if _, ok := got[name]; !ok {
				t.Errorf("%s: missing declared field %q", et, name)
			}
		}

		if _, ok := got["unexpected"]; ok {
			t.Errorf("%s: unknown input key leaked into output", et)
		}
	}
}

func TestEntity_MissingBoolIsZero(t *testing.T) {
	t.Parallel()

	s, _ := newSanitizer()

	got, err := s.Entity(models.EntityAds, models.Row{})
	if err != nil {
		t.Fatalf("Entity: %v", err)
	}

	if got["newwindow"] != int64(0) {
		t.Errorf("newwindow = %#v, want int64(0)", got["newwindow"])
	}

	if got["menu_order"] != int64(0) {
		t.Errorf("menu_order = %#v, want default 0", got["menu_order"])
	}

	if got["bannerurl"] != nil {
		t.Errorf("bannerurl = %#v, want nil", got["bannerurl"])
	}
}

func TestEntity_NamespacedKeyWins(t *testing.T) {
	t.Parallel()

	s, _ := newSanitizer()

	got, _ := s.Entity(models.EntityGroups, models.Row{
		"adcmdr_mode": "ordered",
		"mode":        "grid",
	})

	if got["mode"] != "ordered" {
		t.Errorf("mode = %#v, want %q", got["mode"], "ordered")
	}

	bare, _ := s.Entity(models.EntityGroups, models.Row{"mode": "grid"})
	if bare["mode"] != "grid" {
		t.Errorf("bare mode = %#v, want %q", bare["mode"], "grid")
	}
}

func TestEntity_RestrictedFallsBackToDefault(t *testing.T) {
	t.Parallel()

	s, _ := newSanitizer()

	got, _ := s.Entity(models.EntityAds, models.Row{"post_status": "trash", "adtype": "bogus"})

	if got["post_status"] != models.StatusDraft {
		t.Errorf("post_status = %#v, want draft", got["post_status"])
	}

	if got["adtype"] != "bannerad" {
		t.Errorf("adtype = %#v, want bannerad", got["adtype"])
	}
}

func TestEntity_TypeCoercion(t *testing.T) {
	t.Parallel()

	s, _ := newSanitizer()

	got, _ := s.Entity(models.EntityAds, models.Row{
		"ID":            "42",
		"menu_order":    "nope",
		"newwindow":     "yes",
		"sponsored":     "0",
		"post_date":     "2024-03-01 10:20:30",
		"post_date_gmt": "garbage",
		"post_title":    `<b>Summer</b> Sale & <script>alert(1)</script>`,
		"post_content":  `<p>Hi <a href="https://example.com">there</a></p><script>x()</script>`,
	})

	checks := map[string]any{
		"ID":            int64(42),
		"menu_order":    int64(0),
		"newwindow":     int64(1),
		"sponsored":     int64(0),
		"post_date":     "2024-03-01 10:20:30",
		"post_date_gmt": nil,
		"post_title":    "Summer Sale &",
	}

	for k, want := range checks {
		if got[k] != want {
			t.Errorf("%s = %#v, want %#v", k, got[k], want)
		}
	}

	content, _ := got["post_content"].(string)
	if content == "" || strings.Contains(content, "<script") {
		t.Errorf("post_content = %q, want rich markup without scripts", content)
	}

	if !strings.Contains(content, "<a href=") {
		t.Errorf("post_content lost allowed link markup: %q", content)
	}
}

func TestEntity_KeepsAuthoredTextAndLinks(t *testing.T) {
	t.Parallel()

	s, _ := newSanitizer()

	tests := []struct {
		field string
		in    string
		want  string
	}{
		{"post_content", `<a href="https://shop.example.com/?a=1" target="_blank" class="btn">Buy</a>`, ""},
		{"post_content", `<p style="text-align:center">Hi <a href="/deals" rel="sponsored">deals</a></p>`, ""},
		{"post_content", `<p onclick="x()">Hi</p>`, `<p>Hi</p>`},
		{"post_title", "Save >50% on A<B", ""},
		{"post_title", "1 < 2 and 3 > 2", ""},
		{"post_title", "Tom & Jerry's \"deal\"", ""},
		{"post_title", "<em>Big</em> sale", "Big sale"},
	}

	for _, tt := range tests {
		want := tt.want
		if want == "" {
			want = tt.in
		}

		got, _ := s.Entity(models.EntityAds, models.Row{tt.field: tt.in})
		if got[tt.field] != want {
			t.Errorf("%s(%q) = %#v, want %q", tt.field, tt.in, got[tt.field], want)
		}
	}
}

func TestEntity_UnfilteredKeepsMarkup(t *testing.T) {
	t.Parallel()

	s, _ := newSanitizer()
	code := `<script async src="https://ads.example.com/tag.js"></script>`

	got, _ := s.Entity(models.EntityAds, models.Row{
		"custom_code_before": code,
		"bannerurl":          code,
	})

	if got["custom_code_before"] != code {
		t.Errorf("custom_code_before = %#v, want unchanged", got["custom_code_before"])
	}

	if got["bannerurl"] == code {
		t.Error("bannerurl is filtered and must have its tags stripped")
	}
}

func TestEntity_UnfilteredRejectsSerializedObjects(t *testing.T) {
	t.Parallel()

	s, _ := newSanitizer()

	got, _ := s.Entity(models.EntityAds, models.Row{
		"custom_code_after": `O:8:"stdClass":0:{}`,
		"adcontent_text":    "ok\x00text",
	})

	if got["custom_code_after"] != "" {
		t.Errorf("custom_code_after = %#v, want empty", got["custom_code_after"])
	}

	if got["adcontent_text"] != "oktext" {
		t.Errorf("adcontent_text = %#v, want NUL stripped", got["adcontent_text"])
	}
}

func TestEntity_ListAndMapShapes(t *testing.T) {
	t.Parallel()

	s, _ := newSanitizer()

	got, _ := s.Entity(models.EntityGroups, models.Row{
		"ad_order":   `["3","x",5]`,
		"ad_weights": `{"3":"10","5":2}`,
	})

	order, ok := got["ad_order"].([]any)
	if !ok || len(order) != 3 || order[0] != int64(3) || order[1] != int64(0) || order[2] != int64(5) {
		t.Errorf("ad_order = %#v", got["ad_order"])
	}

	weights, ok := got["ad_weights"].(map[string]any)
	if !ok || weights["3"] != int64(10) || weights["5"] != int64(2) {
		t.Errorf("ad_weights = %#v", got["ad_weights"])
	}

	bad, _ := s.Entity(models.EntityGroups, models.Row{"ad_order": "not json"})
	if bad["ad_order"] != nil {
		t.Errorf("invalid list should fall back to default, got %#v", bad["ad_order"])
	}
}

func TestEntity_RepeaterDropsInvalidCandidates(t *testing.T) {
	t.Parallel()

	s, _ := newSanitizer()

	got, _ := s.Entity(models.EntityAds, models.Row{
		"schedule": `[{"start":"2024-01-01 00:00:00","days":"mon"},{"end":"2024-02-01 00:00:00"}]`,
	})

	list, ok := got["schedule"].([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("schedule = %#v, want one surviving record", got["schedule"])
	}

	rec := list[0].(map[string]any)
	if rec["start"] != "2024-01-01 00:00:00" || rec["days"] != "mon" || rec["end"] != nil {
		t.Errorf("record = %#v", rec)
	}
}

func TestEntity_RepeaterWrapsSingleObject(t *testing.T) {
	t.Parallel()

	s, _ := newSanitizer()

	got, _ := s.Entity(models.EntityAds, models.Row{
		"schedule": `{"start":"2024-01-01"}`,
	})

	list, ok := got["schedule"].([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("schedule = %#v, want single wrapped record", got["schedule"])
	}

	none, _ := s.Entity(models.EntityAds, models.Row{"schedule": `[{"days":"tue"}]`})
	if none["schedule"] != nil {
		t.Errorf("schedule with no valid records = %#v, want default nil", none["schedule"])
	}
}
