package recognizer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestSymbol(t *testing.T) {
	cases := []struct {
		label  string
		wantID int
	}{
		{"1", 11}, {"9", 19},
		{"A", 20}, {"Z", 35},
		{"Up", 36}, {"Down", 37}, {"Right", 38}, {"Left", 39},
		{"Stop", 40},
	}
	for _, c := range cases {
		id, ok := Symbol(c.label)
		if !ok || id != c.wantID {
			t.Errorf("Symbol(%q) = (%d, %v), want (%d, true)", c.label, id, ok, c.wantID)
		}
	}
	if _, ok := Symbol("?"); ok {
		t.Error("expected Symbol to reject an unknown label")
	}
}

func TestFirst_SkipsUnresolvable(t *testing.T) {
	detections := []Detect{
		{ClassLabel: "?", Resolvable: false},
		{ClassLabel: "A", ResolvedID: 20, Resolvable: true},
		{ClassLabel: "B", ResolvedID: 21, Resolvable: true},
	}
	got, ok := First(detections)
	if !ok || got.ResolvedID != 20 {
		t.Errorf("First = %+v, %v, want the first resolvable detection", got, ok)
	}

	if _, ok := First([]Detect{{Resolvable: false}}); ok {
		t.Error("expected First to report false when nothing is resolvable")
	}
}

func writeTempJPEG(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "frame.jpg")
	if err := os.WriteFile(path, []byte("fake jpeg bytes"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestDetect_PrefersImgIDOverSymbolTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart form: %v", err)
		}
		if r.FormValue("object_id") != "3" {
			t.Errorf("object_id = %q, want 3", r.FormValue("object_id"))
		}
		fmt.Fprint(w, `{"detected":1,"count":1,"objects":[{"class_label":"A","img_id":7}]}`)
	}))
	defer srv.Close()

	c := New(srv.URL)
	detections, err := c.Detect(context.Background(), writeTempJPEG(t), 3)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(detections) != 1 || detections[0].ResolvedID != 7 || !detections[0].Resolvable {
		t.Errorf("detections = %+v, want ResolvedID=7", detections)
	}
}

func TestDetect_FallsBackToSymbolTableWhenImgIDAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"detected":1,"count":1,"objects":[{"class_label":"Stop"}]}`)
	}))
	defer srv.Close()

	c := New(srv.URL)
	detections, err := c.Detect(context.Background(), writeTempJPEG(t), 1)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(detections) != 1 || detections[0].ResolvedID != 40 || !detections[0].Resolvable {
		t.Errorf("detections = %+v, want ResolvedID=40", detections)
	}
}

func TestDetect_UnresolvedLabelIsSkippedNotErrored(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"detected":1,"count":1,"objects":[{"class_label":"???"}]}`)
	}))
	defer srv.Close()

	c := New(srv.URL)
	detections, err := c.Detect(context.Background(), writeTempJPEG(t), 1)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(detections) != 1 || detections[0].Resolvable {
		t.Errorf("detections = %+v, want one unresolvable detection", detections)
	}
}

func TestDetect_ZeroCountReturnsNilWithoutError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"detected":0,"count":0,"objects":[]}`)
	}))
	defer srv.Close()

	c := New(srv.URL)
	detections, err := c.Detect(context.Background(), writeTempJPEG(t), 1)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if detections != nil {
		t.Errorf("detections = %+v, want nil", detections)
	}
}
