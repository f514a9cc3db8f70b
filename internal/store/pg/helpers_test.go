package pg

import (
	"testing"

	"github.com/google/uuid"
)

func TestPlaceholders(t *testing.T) {
	tests := []struct {
		start, n int
		want     string
	}{
		{1, 1, "$1"},
		{1, 3, "$1, $2, $3"},
		{4, 2, "$4, $5"},
		{1, 0, ""},
	}
	for _, tt := range tests {
		if got := placeholders(tt.start, tt.n); got != tt.want {
			t.Errorf("placeholders(%d, %d) = %q, want %q", tt.start, tt.n, got, tt.want)
		}
	}
}

func TestMarshalJSONEmpty(t *testing.T) {
	var nilMap map[string]any
	got, err := marshalJSON(nilMap, "{}")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "{}" {
		t.Errorf("marshalJSON(nil map) = %s, want {}", got)
	}

	var nilIDs []uuid.UUID
	got, _ = marshalJSON(nilIDs, "[]")
	if string(got) != "[]" {
		t.Errorf("marshalJSON(nil slice) = %s, want []", got)
	}

	got, _ = marshalJSON(map[string]any{"a": 1}, "{}")
	if string(got) != `{"a":1}` {
		t.Errorf("marshalJSON = %s", got)
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var up, down int
	for _, e := range entries {
		switch {
		case len(e.Name()) > 7 && e.Name()[len(e.Name())-7:] == ".up.sql":
			up++
		case len(e.Name()) > 9 && e.Name()[len(e.Name())-9:] == ".down.sql":
			down++
		}
	}
	if up == 0 || up != down {
		t.Errorf("migrations: %d up, %d down", up, down)
	}
}
