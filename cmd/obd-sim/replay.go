// README: Replays recorded OBD readings over HTTP, one per request, the way the phone app serves them.
package main

import (
    "bufio"
    "bytes"
    "encoding/json"
    "fmt"
    "io"
    "math"
    "net/http"
    "sync"
)

type Replayer struct {
    mu     sync.Mutex
    lines  [][]byte
    next   int
    loop   bool
    nested bool
    served int
}

// LoadLines reads a JSON-lines recording. Blank lines are skipped; any other
// line must be a JSON object.
func LoadLines(r io.Reader) ([][]byte, error) {
    var out [][]byte
    sc := bufio.NewScanner(r)
    sc.Buffer(make([]byte, 64*1024), 1<<20)
    n := 0
    for sc.Scan() {
        n++
        line := bytes.TrimSpace(sc.Bytes())
        if len(line) == 0 {
            continue
        }
        var obj map[string]any
        if err := json.Unmarshal(line, &obj); err != nil {
            return nil, fmt.Errorf("line %d: %w", n, err)
        }
        out = append(out, append([]byte(nil), line...))
    }
    if err := sc.Err(); err != nil {
        return nil, err
    }
    if len(out) == 0 {
        return nil, fmt.Errorf("recording has no readings")
    }
    return out, nil
}

// Synthetic builds a drive of moving readings followed by idle ones.
func Synthetic(moving, idle int) [][]byte {
    lines := make([][]byte, 0, moving+idle)
    lat, lng := 25.0330, 121.5654
    for i := 0; i < moving; i++ {
        speed := 20 + 30*math.Sin(float64(i)/6)
        if speed < 5 {
            speed = 5
        }
        lat += 0.0002
        lng += 0.0001
        lines = append(lines, mustJSON(map[string]any{
            "vehicle_id":         "1",
            "speed":              math.Round(speed),
            "rpm":                math.Round(900 + speed*40),
            "throttle_position":  math.Round(10 + speed/3),
            "engine_load":        math.Round(25 + speed/2),
            "engine_temperature": 88,
            "system_voltage":     14.1,
            "latitude":           lat,
            "longitude":          lng,
        }))
    }
    for i := 0; i < idle; i++ {
        lines = append(lines, mustJSON(map[string]any{
            "vehicle_id":         "1",
            "speed":              0,
            "rpm":                0,
            "throttle_position":  0,
            "engine_temperature": 80,
            "system_voltage":     12.4,
            "latitude":           lat,
            "longitude":          lng,
        }))
    }
    return lines
}

func mustJSON(v any) []byte {
    b, err := json.Marshal(v)
    if err != nil {
        panic(err)
    }
    return b
}

// NewReplayer serves lines in order. When exhausted it keeps serving the last
// line, or starts over if loop is set. nested wraps each reading as {"data": ...}.
func NewReplayer(lines [][]byte, loop, nested bool) *Replayer {
    return &Replayer{lines: lines, loop: loop, nested: nested}
}

func (r *Replayer) current() []byte {
    r.mu.Lock()
    defer r.mu.Unlock()
    line := r.lines[r.next]
    r.served++
    switch {
    case r.next < len(r.lines)-1:
        r.next++
    case r.loop:
        r.next = 0
    }
    return line
}

func (r *Replayer) Served() int {
    r.mu.Lock()
    defer r.mu.Unlock()
    return r.served
}

func (r *Replayer) ServeHTTP(w http.ResponseWriter, req *http.Request) {
    if req.Method != http.MethodGet {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    body := r.current()
    if r.nested {
        body = append(append([]byte(`{"data":`), body...), '}')
    }
    w.Header().Set("Content-Type", "application/json")
    w.Header().Set("Cache-Control", "no-cache")
    _, _ = w.Write(body)
}
