package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"autofc2/internal/fnametemplate"
)

func TestDispatchSubstitutesTemplateIntoBody(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	target := Target{URL: srv.URL, Message: "%(channel_name)s is live: %(title)s"}
	fields := fnametemplate.Fields{ChannelName: "alice", Title: "hello world"}

	if err := Dispatch(context.Background(), target, fields); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if want := "alice is live: hello world"; gotBody != want {
		t.Errorf("posted body = %q, want %q", gotBody, want)
	}
}

func TestDispatchReturnsErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := Dispatch(context.Background(), Target{URL: srv.URL, Message: "x"}, fnametemplate.Fields{})
	if err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}
