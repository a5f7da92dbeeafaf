package main

import (
    "io"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "drivesafe/internal/modules/telemetry"
)

func get(t *testing.T, h http.Handler) string {
    t.Helper()
    w := httptest.NewRecorder()
    h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/obd.json", nil))
    if w.Code != http.StatusOK {
        t.Fatalf("status = %d", w.Code)
    }
    b, _ := io.ReadAll(w.Body)
    return string(b)
}

func TestLoadLines(t *testing.T) {
    lines, err := LoadLines(strings.NewReader("{\"speed\":1}\n\n  {\"speed\":2}\n"))
    if err != nil || len(lines) != 2 {
        t.Fatalf("lines = %q, %v", lines, err)
    }
    if _, err := LoadLines(strings.NewReader("{\"speed\":1}\nnot json\n")); err == nil || !strings.Contains(err.Error(), "line 2") {
        t.Errorf("err = %v, want line 2 error", err)
    }
    if _, err := LoadLines(strings.NewReader("\n")); err == nil {
        t.Errorf("empty recording should fail")
    }
}

func TestReplayer_RepeatsLastReading(t *testing.T) {
    r := NewReplayer([][]byte{[]byte(`{"speed":1}`), []byte(`{"speed":2}`)}, false, false)
    got := []string{get(t, r), get(t, r), get(t, r)}
    want := []string{`{"speed":1}`, `{"speed":2}`, `{"speed":2}`}
    for i := range want {
        if got[i] != want[i] {
            t.Errorf("request %d = %s, want %s", i, got[i], want[i])
        }
    }
    if r.Served() != 3 {
        t.Errorf("served = %d", r.Served())
    }
}

func TestReplayer_LoopAndNested(t *testing.T) {
    r := NewReplayer([][]byte{[]byte(`{"speed":1}`), []byte(`{"speed":2}`)}, true, true)
    get(t, r)
    get(t, r)
    if got := get(t, r); got != `{"data":{"speed":1}}` {
        t.Errorf("looped nested = %s", got)
    }

    w := httptest.NewRecorder()
    r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/obd.json", nil))
    if w.Code != http.StatusMethodNotAllowed {
        t.Errorf("POST status = %d", w.Code)
    }
}

func TestSynthetic_DrivesThenIdles(t *testing.T) {
    lines := Synthetic(5, 3)
    if len(lines) != 8 {
        t.Fatalf("lines = %d", len(lines))
    }
    for i, line := range lines {
        s, err := telemetry.Normalize(line, time.Now())
        if err != nil {
            t.Fatalf("line %d: %v", i, err)
        }
        if moving := i < 5; s.Moving() != moving {
            t.Errorf("line %d moving = %v, want %v", i, s.Moving(), moving)
        }
    }
    first, _ := telemetry.Normalize(lines[5], time.Now())
    last, _ := telemetry.Normalize(lines[7], time.Now())
    if first.Fingerprint() != last.Fingerprint() {
        t.Errorf("idle readings should share a fingerprint")
    }
}
