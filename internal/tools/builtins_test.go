package tools

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCalculator(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"2 + 2", 4},
		{"2 + 2; alert(1)", 4},
		{"2 + 2; alert(5)", 4},
		{"(2 + 3) * 4", 20},
		{"10 / 4", 2.5},
		{"-3 + 5", 2},
		{"2 * -3", -6},
		{"1 + 2 * 3", 7},
		{".5 + .25", 0.75},
		{"  7  ", 7},
		{"8 - 3 - 2", 3},
		{"2*(3+(4-1))", 12},
		{"2 + 2; alert()", 4},
		{"3 (2)", 3},
		{"1 + 1; f(2)(3)", 2},
	}
	calc := NewCalculator()
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			out, err := calc.Execute(context.Background(), map[string]any{"expression": tt.expr})
			if err != nil {
				t.Fatalf("Execute(%q): %v", tt.expr, err)
			}
			m := out.(map[string]any)
			if got := m["result"].(float64); got != tt.want {
				t.Errorf("result = %v, want %v", got, tt.want)
			}
			if m["expression"] != tt.expr {
				t.Errorf("expression = %v, want original %q", m["expression"], tt.expr)
			}
		})
	}
}

func TestCalculatorErrors(t *testing.T) {
	calc := NewCalculator()
	for _, expr := range []string{
		"", "abc", "alert()", "(1 + 2", "1 / 0", "*",
		"1 2", "5 )", "2 + 2 3 4", "2 + 2 (1", "2 (3 +)",
	} {
		_, err := calc.Execute(context.Background(), map[string]any{"expression": expr})
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("Execute(%q) err = %v, want ValidationError", expr, err)
		}
	}
}

func TestDataAnalyzer(t *testing.T) {
	out, err := NewDataAnalyzer().Execute(context.Background(), map[string]any{
		"data": []any{1.0, 2.0, 3.0, 4.0},
	})
	if err != nil {
		t.Fatal(err)
	}
	s := out.(Stats)
	if s.Count != 4 || s.Sum != 10 || s.Mean != 2.5 || s.Median != 2.5 {
		t.Errorf("stats = %+v", s)
	}
	if s.Min != 1 || s.Max != 4 || s.Range != 3 || s.Variance != 1.25 {
		t.Errorf("stats = %+v", s)
	}
	if math.Abs(s.StandardDeviation-1.118) > 0.001 {
		t.Errorf("std = %v, want ~1.118", s.StandardDeviation)
	}

	data, _ := json.Marshal(s)
	if !strings.Contains(string(data), `"standardDeviation"`) {
		t.Errorf("json = %s", data)
	}
}

func TestDataAnalyzerCoercion(t *testing.T) {
	out, err := NewDataAnalyzer().Execute(context.Background(), map[string]any{
		"data": []any{"3", 1.0, "x", nil, "", true, map[string]any{}},
	})
	if err != nil {
		t.Fatal(err)
	}
	s := out.(Stats)
	// "3", 1, null, "" and true coerce to 3, 1, 0, 0, 1.
	if s.Count != 5 || s.Sum != 5 || s.Median != 1 || s.Min != 0 {
		t.Errorf("stats = %+v", s)
	}

	out, err = NewDataAnalyzer().Execute(context.Background(), map[string]any{
		"data": []any{nil, "", 4.0},
	})
	if err != nil {
		t.Fatal(err)
	}
	if s := out.(Stats); s.Count != 3 || s.Sum != 4 {
		t.Errorf("stats = %+v", s)
	}
}

func TestDataAnalyzerErrors(t *testing.T) {
	tests := []map[string]any{
		{},
		{"data": []any{}},
		{"data": "1,2,3"},
		{"data": []any{"a", "b"}},
	}
	for _, args := range tests {
		_, err := NewDataAnalyzer().Execute(context.Background(), args)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("Execute(%v) err = %v, want ValidationError", args, err)
		}
	}
}

func TestCurrentDatetime(t *testing.T) {
	fixed := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	c := &CurrentDatetime{now: func() time.Time { return fixed }}

	out, err := c.Execute(context.Background(), map[string]any{"timezone": "IST"})
	if err != nil {
		t.Fatal(err)
	}
	m := out.(map[string]any)
	if m["iso"] != "2025-03-14T09:26:53.000Z" {
		t.Errorf("iso = %v", m["iso"])
	}
	if m["timestamp"] != fixed.Unix() {
		t.Errorf("timestamp = %v", m["timestamp"])
	}
	if m["timezone"] != "Asia/Kolkata" {
		t.Errorf("timezone = %v", m["timezone"])
	}
	if m["inTimezone"] != "3/14/2025, 2:56:53 PM" {
		t.Errorf("inTimezone = %v", m["inTimezone"])
	}

	out, err = c.Execute(context.Background(), map[string]any{"timezone": "Europe/Paris"})
	if err != nil {
		t.Fatal(err)
	}
	if got := out.(map[string]any)["inTimezone"]; got != "3/14/2025, 10:26:53 AM" {
		t.Errorf("Europe/Paris = %v", got)
	}

	out, _ = c.Execute(context.Background(), nil)
	if _, ok := out.(map[string]any)["timezone"]; ok {
		t.Error("timezone should be absent when not requested")
	}

	if _, err := c.Execute(context.Background(), map[string]any{"timezone": "Mars/Olympus"}); err == nil {
		t.Error("expected error for unknown zone")
	}
}

func TestUUIDGenerator(t *testing.T) {
	g := NewUUIDGenerator()
	a, _ := g.Execute(context.Background(), nil)
	b, _ := g.Execute(context.Background(), nil)
	idA := a.(map[string]any)["uuid"].(string)
	idB := b.(map[string]any)["uuid"].(string)
	if idA == idB {
		t.Errorf("two calls returned the same id %s", idA)
	}
	parsed, err := uuid.Parse(idA)
	if err != nil || parsed.Version() != 4 {
		t.Errorf("id %s is not a v4 uuid (err=%v)", idA, err)
	}

	g.newRandom = func() (uuid.UUID, error) { return uuid.Nil, errors.New("no entropy") }
	out, err := g.Execute(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if tok := out.(map[string]any)["uuid"].(string); tok == "" || strings.Count(tok, "-") != 1 {
		t.Errorf("fallback token = %q", tok)
	}
}

func TestAPICaller(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/json":
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Trace", "abc")
			json.NewEncoder(w).Encode(map[string]any{
				"method":       r.Method,
				"content_type": r.Header.Get("Content-Type"),
				"custom":       r.Header.Get("X-Custom"),
			})
		case "/echo":
			body, _ := io.ReadAll(r.Body)
			w.WriteHeader(http.StatusCreated)
			w.Write(body)
		case "/text":
			w.WriteHeader(http.StatusTeapot)
			io.WriteString(w, "short and stout")
		}
	}))
	defer srv.Close()

	api := NewAPICaller(srv.Client())
	ctx := context.Background()

	out, err := api.Execute(ctx, map[string]any{
		"url":     srv.URL + "/json",
		"headers": map[string]any{"X-Custom": "yes"},
	})
	if err != nil {
		t.Fatal(err)
	}
	m := out.(map[string]any)
	if m["status"] != 200 || m["statusText"] != "OK" {
		t.Errorf("status = %v %v", m["status"], m["statusText"])
	}
	if m["headers"].(map[string]string)["x-trace"] != "abc" {
		t.Errorf("headers = %v", m["headers"])
	}
	data := m["data"].(map[string]any)
	if data["method"] != "GET" || data["content_type"] != "application/json" || data["custom"] != "yes" {
		t.Errorf("data = %v", data)
	}

	out, err = api.Execute(ctx, map[string]any{
		"url":    srv.URL + "/echo",
		"method": "post",
		"body":   map[string]any{"n": 1.0},
	})
	if err != nil {
		t.Fatal(err)
	}
	m = out.(map[string]any)
	if m["status"] != 201 {
		t.Errorf("status = %v", m["status"])
	}
	if echoed := m["data"].(map[string]any); echoed["n"] != 1.0 {
		t.Errorf("echoed body = %v", echoed)
	}

	out, err = api.Execute(ctx, map[string]any{"url": srv.URL + "/text"})
	if err != nil {
		t.Fatal(err)
	}
	m = out.(map[string]any)
	if m["status"] != 418 || m["data"] != "short and stout" {
		t.Errorf("text response = %v", m)
	}
}

func TestAPICallerErrors(t *testing.T) {
	api := NewAPICaller(nil)
	_, err := api.Execute(context.Background(), map[string]any{"url": "ftp://example.com"})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("bad scheme err = %v, want ValidationError", err)
	}

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()
	_, err = api.Execute(context.Background(), map[string]any{"url": addr})
	var ee *ExecutionError
	if !errors.As(err, &ee) {
		t.Errorf("closed server err = %v, want ExecutionError", err)
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	want := []string{"api_caller", "calculator", "current_datetime", "data_analyzer", "uuid_generator"}
	got := r.List()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("List() = %v, want %v", got, want)
	}
	for _, name := range got {
		b, _ := r.Get(name)
		def := Definition(b)
		if !def.Builtin || def.Description == "" {
			t.Errorf("%s: definition = %+v", name, def)
		}
	}
}
