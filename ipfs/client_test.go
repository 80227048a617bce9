package ipfs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAddBytesReturnsHash(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v0/add" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		gotBody, _ = io.ReadAll(file)
		fmt.Fprintln(w, `{"Name":"note","Hash":"bafytest123","Size":"42"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	hash, err := c.AddBytes(context.Background(), "note", []byte("sealed payload"))
	if err != nil {
		t.Fatalf("AddBytes: %v", err)
	}
	if hash != "bafytest123" {
		t.Errorf("hash = %q, want bafytest123", hash)
	}
	if string(gotBody) != "sealed payload" {
		t.Errorf("uploaded body = %q", gotBody)
	}
}

func TestCatRoundtrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("arg"); got != "bafytest123" {
			t.Errorf("arg = %q", got)
		}
		w.Write([]byte("sealed payload"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	data, err := c.Cat(context.Background(), "bafytest123")
	if err != nil {
		t.Fatalf("Cat: %v", err)
	}
	if string(data) != "sealed payload" {
		t.Errorf("data = %q", data)
	}
}

func TestCatErrorsIncludeBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "merkledag: not found", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	if _, err := c.Cat(context.Background(), "bafymissing"); err == nil {
		t.Fatal("expected error for missing block")
	}
}

func TestCatRejectsEmptyCID(t *testing.T) {
	c := NewClient("http://127.0.0.1:5001", time.Second)
	if _, err := c.Cat(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty cid")
	}
}
