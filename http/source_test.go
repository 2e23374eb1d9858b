package http_test

import (
	"fmt"
	"io"
	"net"
	gohttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pilosa/dsk"
	"github.com/pilosa/dsk/http"
)

func names(ex *dsk.Example) []string {
	ret := []string{}
	for _, f := range ex.Features() {
		ret = append(ret, f.Name)
	}
	return ret
}

func TestJSONSource(t *testing.T) {
	ln, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("listening: %v", err)
	}

	j, err := http.NewJSONSource(http.WithListener(ln), http.WithBuffer(10))
	if err != nil {
		t.Fatalf("getting json source: %v", err)
	}
	defer j.Close()

	tests := []struct {
		method  string
		path    string
		data    string
		exp     [][]string
		expCode int
	}{
		{
			method:  "POST",
			path:    "/",
			data:    `{"output": "x", "features": [{"name": "a", "value": 1}]}`,
			exp:     [][]string{{"a"}},
			expCode: 200,
		},
		{
			method: "POST",
			path:   "/blah",
			data: `{"output": "x", "features": [{"name": "a", "value": 1}]}
  {"output": "y", "features": [{"name": "b", "value": 1}, {"name": "c", "value": 2}]}`,
			exp:     [][]string{{"a"}, {"b", "c"}},
			expCode: 200,
		},
		{
			method:  "POST",
			path:    "/",
			data:    `{"output": "x", "features": [{"name": "a", "value": 1}]}{"output": "x", "features": [`,
			exp:     [][]string{{"a"}},
			expCode: 400,
		},
		{
			method:  "POST",
			path:    "/",
			data:    `{"output": "x", "features": [{"name": "a", "value": 1}, {"name": "a", "value": 2}]}`,
			expCode: 400,
		},
		{
			method:  "GET",
			path:    "/",
			expCode: 405,
		},
	}

	for i, test := range tests {
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			w := httptest.NewRecorder()
			j.ServeHTTP(w, httptest.NewRequest(test.method, test.path, strings.NewReader(test.data)))
			if w.Code != test.expCode {
				t.Fatalf("unexpected status %d, exp: %d", w.Code, test.expCode)
			}
			got := [][]string{}
			for range test.exp {
				ex, err := j.Record()
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				got = append(got, names(ex))
			}
			if len(test.exp) > 0 {
				if diff := cmp.Diff(test.exp, got); diff != "" {
					t.Fatalf("unexpected examples (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestJSONSourceServe(t *testing.T) {
	j, err := http.NewJSONSource(http.WithAddr("localhost:0"))
	if err != nil {
		t.Fatalf("getting json source: %v", err)
	}
	if !strings.HasPrefix(j.Location(), "http://") || strings.HasSuffix(j.Location(), ":0") {
		t.Errorf("unexpected location %s", j.Location())
	}

	done := make(chan error, 1)
	go func() {
		resp, err := gohttp.Post(j.Location(), "application/json",
			strings.NewReader(`{"output": "x", "weight": 2, "features": [{"name": "a", "value": 1}]}`))
		if err == nil {
			resp.Body.Close()
		}
		done <- err
	}()
	ex, err := j.Record()
	if err != nil {
		t.Fatalf("getting record: %v", err)
	}
	if ex.Weight() != 2 || ex.Output() != dsk.Output(dsk.Label("x")) {
		t.Errorf("unexpected example %v", ex)
	}
	if err := <-done; err != nil {
		t.Fatalf("posting: %v", err)
	}

	if err := j.Close(); err != nil {
		t.Fatalf("closing: %v", err)
	}
	if _, err := j.Record(); err != io.EOF {
		t.Fatalf("expected io.EOF after close, got %v", err)
	}
}
