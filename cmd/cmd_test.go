package cmd

import (
	"testing"

	"github.com/ziadkadry99/popup-studio/internal/record"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		name    string
		current any
		raw     string
		want    any
		wantErr bool
	}{
		{"string", "old", "new", "new", false},
		{"nil keeps string", nil, "42", "42", false},
		{"bool", false, "true", true, false},
		{"bad bool", true, "maybe", nil, true},
		{"number", float64(1), " 2.5 ", 2.5, false},
		{"int field", 3, "7", float64(7), false},
		{"bad number", float64(0), "lots", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerce(tt.current, tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("coerce: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestSetFieldAppendsRows(t *testing.T) {
	cfg := record.Record{"name": "", "contacts": []any{}}
	if err := setField(cfg, "contacts[1].value", "j@x.com"); err != nil {
		t.Fatalf("setField: %v", err)
	}
	if n := len(cfg.List("contacts")); n != 2 {
		t.Fatalf("expected 2 rows, got %d", n)
	}
	if v, _ := cfg.Get("contacts[1].value"); v != "j@x.com" {
		t.Errorf("contacts[1].value = %v", v)
	}
	if err := setField(cfg, "name", "Jean"); err != nil {
		t.Fatalf("setField: %v", err)
	}
	if cfg["name"] != "Jean" {
		t.Errorf("name = %v", cfg["name"])
	}
}

func TestSetFieldRejectsBadPath(t *testing.T) {
	if err := setField(record.Record{}, "contacts[x", "v"); err == nil {
		t.Error("expected error for malformed path")
	}
}
