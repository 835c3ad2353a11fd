package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/nao1215/scanexport/internal/config"
)

// pageResponse renders one vendor list envelope with the given record
// names and continuation token.
func pageResponse(names []string, nextPageID string) string {
	var sb strings.Builder
	sb.WriteString(`{"list":{"objects":[`)
	for i, name := range names {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"uuid":"u-%s","meta":{"name":"%s"}}`, name, name)
	}
	sb.WriteString(`],"response":{`)
	if nextPageID != "" {
		fmt.Fprintf(&sb, `"next_page_id":"%s"`, nextPageID)
	}
	sb.WriteString(`}}}`)
	return sb.String()
}

// TestListAllFollowsContinuationTokens verifies that every page is
// fetched exactly once and the results keep page order.
func TestListAllFollowsContinuationTokens(t *testing.T) {
	t.Parallel()

	// Three pages chained by tokens plus a final empty page without one.
	pages := map[string]string{
		"":       pageResponse([]string{"a", "b"}, "tok-2"),
		"tok-2":  pageResponse([]string{"c"}, "tok-3"),
		"tok-3":  pageResponse([]string{"d", "e"}, "tok-4"),
		"tok-4":  pageResponse(nil, ""),
	}

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		pageID := r.URL.Query().Get("list_parameters.page_id")
		body, ok := pages[pageID]
		if !ok {
			t.Errorf("unexpected page_id %q", pageID)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(body)) //nolint:errcheck // Test handler
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, config.Credentials{Token: "t"},
		WithRetryPolicy(testRetryPolicy(1)))

	records, err := client.ListAll(t.Context(), "namespaces/acme/findings", ListParams{PageSize: 2})
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}

	want := []string{"a", "b", "c", "d", "e"}
	if len(records) != len(want) {
		t.Fatalf("record count = %d, want %d", len(records), len(want))
	}
	for i, name := range want {
		if got := records[i].Name(); got != name {
			t.Errorf("records[%d].Name() = %q, want %q", i, got, name)
		}
	}
	if got := calls.Load(); got != 4 {
		t.Errorf("server calls = %d, want 4 (one per page)", got)
	}
}

// TestListAllAdaptivePageSize verifies the shrink-and-retry behavior on
// oversized pages.
func TestListAllAdaptivePageSize(t *testing.T) {
	t.Parallel()

	t.Run("halves until the page fits", func(t *testing.T) {
		t.Parallel()

		var sizes []string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			size := r.URL.Query().Get("list_parameters.page_size")
			sizes = append(sizes, size)
			// The server chokes on anything above 50 records per page.
			if size != "50" {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(pageResponse([]string{"a"}, ""))) //nolint:errcheck // Test handler
		}))
		t.Cleanup(srv.Close)

		client := NewClient(srv.URL, config.Credentials{Token: "t"},
			WithRetryPolicy(testRetryPolicy(1)))

		records, err := client.ListAll(t.Context(), "namespaces/acme/findings", ListParams{
			PageSize:         200,
			AdaptivePageSize: true,
			MinPageSize:      50,
		})
		if err != nil {
			t.Fatalf("ListAll() error = %v", err)
		}
		if len(records) != 1 {
			t.Errorf("record count = %d, want 1", len(records))
		}

		want := []string{"200", "100", "50"}
		if len(sizes) != len(want) {
			t.Fatalf("requested page sizes = %v, want %v", sizes, want)
		}
		for i := range want {
			if sizes[i] != want[i] {
				t.Errorf("page size request %d = %q, want %q", i, sizes[i], want[i])
			}
		}
	})

	t.Run("failure at the floor is final", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		t.Cleanup(srv.Close)

		client := NewClient(srv.URL, config.Credentials{Token: "t"},
			WithRetryPolicy(testRetryPolicy(1)))

		_, err := client.ListAll(t.Context(), "namespaces/acme/findings", ListParams{
			PageSize:         100,
			AdaptivePageSize: true,
			MinPageSize:      50,
		})

		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("expected StatusError, got %v", err)
		}
	})
}

// TestListAllMalformedEnvelope verifies that an unparseable response is
// reported as a data shape error, not retried forever.
func TestListAllMalformedEnvelope(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway error</html>`)) //nolint:errcheck // Test handler
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, config.Credentials{Token: "t"},
		WithRetryPolicy(testRetryPolicy(1)))

	_, err := client.ListAll(t.Context(), "namespaces/acme/findings", ListParams{})
	if !errors.Is(err, ErrDataShape) {
		t.Errorf("expected ErrDataShape, got %v", err)
	}
}

// TestListParamsQuery verifies the list_parameters query encoding.
func TestListParamsQuery(t *testing.T) {
	t.Parallel()

	params := ListParams{
		Filter:        "context.type==CONTEXT_TYPE_MAIN",
		Mask:          "uuid,meta.name",
		Traverse:      true,
		ServerTimeout: "240s",
	}

	query := params.query(100, "tok-9")

	want := map[string]string{
		"list_parameters.filter":    "context.type==CONTEXT_TYPE_MAIN",
		"list_parameters.mask":      "uuid,meta.name",
		"list_parameters.page_size": "100",
		"list_parameters.traverse":  "true",
		"list_parameters.timeout":   "240s",
		"list_parameters.page_id":   "tok-9",
	}
	for key, value := range want {
		if got := query.Get(key); got != value {
			t.Errorf("query[%s] = %q, want %q", key, got, value)
		}
	}

	// Zero values omit their parameters entirely.
	empty := ListParams{}.query(0, "")
	if len(empty) != 0 {
		t.Errorf("empty params produced query %v, want none", empty)
	}
}
