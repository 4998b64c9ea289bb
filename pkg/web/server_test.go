package web

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ritzau/load-factors/pkg/analysis"
	"github.com/ritzau/load-factors/pkg/model"
	"github.com/ritzau/load-factors/pkg/pubsub"
)

func newTestServer(t *testing.T, strict bool) *httptest.Server {
	t.Helper()
	pub := pubsub.NewSSEPublisher()
	pub.ConfigureTopic(pubsub.TopicLoadFactors, pubsub.TopicConfig{BufferSize: 1})
	s := NewServer(analysis.NewRunner(pub), pub, strict)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		_ = pub.Close()
		ts.Close()
	})
	return ts
}

func postCompute(t *testing.T, ts *httptest.Server, req ComputeRequest) *http.Response {
	t.Helper()
	body, _ := json.Marshal(req)
	resp, err := http.Post(ts.URL+"/api/compute", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/compute: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

var sampleRequest = ComputeRequest{
	Declarations: []string{
		"logging=",
		"user=logging",
		"implementations=user|foobar",
		"cores=implementations|user|foobar",
		"dashboard=cores|implementations|foobar|user",
	},
	Entry: "dashboard",
}

func TestCompute(t *testing.T) {
	ts := newTestServer(t, false)

	resp := postCompute(t, ts, sampleRequest)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID header")
	}

	var decoded struct {
		Entry string         `json:"entry"`
		Loads map[string]int `json:"loads"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	want := map[string]int{"dashboard": 1, "cores": 1, "implementations": 2, "user": 4, "logging": 4}
	for name, load := range want {
		if decoded.Loads[name] != load {
			t.Errorf("%s: expected %d, got %d", name, load, decoded.Loads[name])
		}
	}
	if _, ok := decoded.Loads["foobar"]; ok {
		t.Error("foobar should not be in the result")
	}
}

func TestComputeMalformed(t *testing.T) {
	ts := newTestServer(t, false)

	resp := postCompute(t, ts, ComputeRequest{Declarations: []string{"badline_no_equals"}, Entry: "x"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", resp.StatusCode)
	}

	var body errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Line != "badline_no_equals" || body.LineNumber != 1 {
		t.Errorf("Expected offending line 1 in response, got %+v", body)
	}
}

func TestComputeValidation(t *testing.T) {
	ts := newTestServer(t, false)

	resp := postCompute(t, ts, ComputeRequest{Declarations: []string{"a="}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing entry, got %d", resp.StatusCode)
	}

	raw, err := http.Post(ts.URL+"/api/compute", "application/json", strings.NewReader(`{"nope":1}`))
	if err != nil {
		t.Fatal(err)
	}
	defer raw.Body.Close()
	if raw.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown field, got %d", raw.StatusCode)
	}
}

func TestComputeStrictCycle(t *testing.T) {
	ts := newTestServer(t, true)

	resp := postCompute(t, ts, ComputeRequest{Declarations: []string{"a=b", "b=a"}, Entry: "a"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422, got %d", resp.StatusCode)
	}
}

func TestResultAndGraph(t *testing.T) {
	ts := newTestServer(t, false)

	resp, err := http.Get(ts.URL + "/api/result")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 before any compute, got %d", resp.StatusCode)
	}

	postCompute(t, ts, sampleRequest)

	resp, err = http.Get(ts.URL + "/api/result")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 after compute, got %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/graph")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var g model.Graph
	if err := json.NewDecoder(resp.Body).Decode(&g); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if g.Entry != "dashboard" || g.Nodes["implementations"].Load != 2 {
		t.Errorf("Unexpected graph %+v", g)
	}
}

func TestSubscribeReplaysLastEvent(t *testing.T) {
	ts := newTestServer(t, false)
	postCompute(t, ts, sampleRequest)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/subscribe/load_factors", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected event stream, got %q", ct)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var event pubsub.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			t.Fatalf("invalid event: %v", err)
		}
		if event.Type != pubsub.EventComputed {
			t.Errorf("Expected computed event, got %s", event.Type)
		}
		return
	}
	t.Fatal("stream ended without an event")
}
