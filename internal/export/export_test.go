package export

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ziadkadry99/popup-studio/internal/catalog"
	"github.com/ziadkadry99/popup-studio/internal/db"
	"github.com/ziadkadry99/popup-studio/internal/widgets"
	"github.com/ziadkadry99/popup-studio/internal/widgetstore"
)

func TestFilterMatch(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		object string
		want   bool
	}{
		{"empty includes everything", Filter{}, "Sofa.001", true},
		{"include prefix", Filter{Include: []string{"Sofa*"}}, "Sofa.001", true},
		{"include miss", Filter{Include: []string{"Sofa*"}}, "Lamp", false},
		{"star stops at slash", Filter{Include: []string{"room/*"}}, "room/a/b", false},
		{"double star crosses slash", Filter{Include: []string{"room/**"}}, "room/a/b", true},
		{"exclude wins", Filter{Include: []string{"**"}, Exclude: []string{"*.draft"}}, "Sofa.draft", false},
		{"exclude only", Filter{Exclude: []string{"tmp_*"}}, "Sofa", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(tt.object); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.object, got, tt.want)
			}
		})
	}
}

func TestFilterValidate(t *testing.T) {
	if err := (Filter{Include: []string{"a/**", "b*"}}).Validate(); err != nil {
		t.Errorf("valid patterns rejected: %v", err)
	}
	if err := (Filter{Exclude: []string{"[oops"}}).Validate(); err == nil {
		t.Error("expected error for unterminated class")
	}
}

func TestFileName(t *testing.T) {
	tests := map[string]string{
		"Sofa.001":  "Sofa.001.html",
		"room/lamp": "room%2Flamp.html",
		"a b":       "a%20b.html",
	}
	for object, want := range tests {
		if got := FileName(object); got != want {
			t.Errorf("FileName(%q) = %q, want %q", object, got, want)
		}
	}
}

func seed(t *testing.T, objects ...string) *widgetstore.Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	reg, err := widgets.NewRegistry()
	if err != nil {
		t.Fatal(err)
	}
	tmpl, _ := reg.Get("info")
	svc := widgetstore.NewService(widgetstore.NewStore(database), nil, nil, reg)
	for _, object := range objects {
		cfg := tmpl.DefaultConfig()
		cfg["title"] = "About " + object
		b, err := catalog.RenderBundle("info", tmpl, object, cfg)
		if err != nil {
			t.Fatal(err)
		}
		_, err = svc.Save(context.Background(), "tester", widgetstore.SaveInput{
			Object: object, TemplateID: "info", Config: cfg, Bundle: b,
		})
		if err != nil {
			t.Fatalf("Save(%s): %v", object, err)
		}
	}
	return svc.Store()
}

func TestRunWritesDocumentsAndManifest(t *testing.T) {
	store := seed(t, "Sofa.001", "Lamp", "room/chair", "tmp_scratch")
	dir := filepath.Join(t.TempDir(), "out")

	m, err := Run(context.Background(), store, Options{
		OutputDir: dir,
		Filter:    Filter{Exclude: []string{"tmp_*"}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(m.Widgets) != 3 {
		t.Fatalf("exported %d widgets, want 3", len(m.Widgets))
	}
	if m.Widgets[0].Object != "Lamp" || m.Widgets[1].Object != "Sofa.001" || m.Widgets[2].Object != "room/chair" {
		t.Errorf("manifest order = %+v", m.Widgets)
	}

	doc, err := os.ReadFile(filepath.Join(dir, "Sofa.001.html"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(doc), "About Sofa.001") || !strings.Contains(string(doc), `data-popup-style="Sofa.001"`) {
		t.Errorf("document = %s", doc)
	}
	if _, err := os.Stat(filepath.Join(dir, "room%2Fchair.html")); err != nil {
		t.Errorf("escaped file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "tmp_scratch.html")); !os.IsNotExist(err) {
		t.Error("excluded widget was exported")
	}

	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		t.Fatal(err)
	}
	var onDisk Manifest
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatal(err)
	}
	if len(onDisk.Widgets) != 3 || onDisk.Widgets[1].Hash == "" || onDisk.Widgets[1].Revision != 1 {
		t.Errorf("manifest on disk = %+v", onDisk.Widgets)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".export-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestRunEmptyStore(t *testing.T) {
	store := seed(t)
	m, err := Run(context.Background(), store, Options{OutputDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if m.Widgets == nil || len(m.Widgets) != 0 {
		t.Errorf("widgets = %#v, want empty list", m.Widgets)
	}
}

func TestRunRejectsBadPattern(t *testing.T) {
	store := seed(t)
	_, err := Run(context.Background(), store, Options{OutputDir: t.TempDir(), Filter: Filter{Include: []string{"[x"}}})
	if err == nil {
		t.Fatal("expected error")
	}
}
