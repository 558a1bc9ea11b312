package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGenerateTasks(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		decodeJSON(t, r, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"mensaje":"Generación automática completada: 42 tareas para 2026-08","detalles":["42 tareas"],"stats":{"tareas":42}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	summary, err := c.GenerateTasks(context.Background(), "2026-08")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if gotPath != "/engine/generate-tasks" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotBody["periodo"] != "2026-08" {
		t.Fatalf("request body = %v", gotBody)
	}
	if !summary.Success || summary.Stats["tareas"] != 42 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestReassignRequestShape(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decodeJSON(t, r, &gotBody)
		_, _ = w.Write([]byte(`{"success":true,"mensaje":"Se reasignaron exitosamente 3 tareas"}`))
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL, time.Second).Reassign(context.Background(), "colab-7"); err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if gotBody["colaborador_id"] != "colab-7" {
		t.Fatalf("request body = %v", gotBody)
	}
}

func TestUpstreamFailureSurfacedVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"mensaje":"configuracion de auto-generacion deshabilitada"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).RefreshRisk(context.Background(), "2026-08")
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("got %v, want UpstreamError", err)
	}
	if upstream.Status != http.StatusInternalServerError {
		t.Fatalf("status = %d", upstream.Status)
	}
	if upstream.Body != `{"success":false,"mensaje":"configuracion de auto-generacion deshabilitada"}` {
		t.Fatalf("body not verbatim: %q", upstream.Body)
	}
}

func decodeJSON(t *testing.T, r *http.Request, dst any) {
	t.Helper()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		t.Fatalf("decode request: %v", err)
	}
}
