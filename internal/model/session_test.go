package model

import (
	"errors"
	"testing"
)

func TestNormalizeDefaults(t *testing.T) {
	req := CreateRequest{SourceURL: "https://instagram.com/alice"}
	if err := req.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if req.Quality != QualityHighest {
		t.Fatalf("quality = %q, want %q", req.Quality, QualityHighest)
	}
	if req.ContentType != ContentAll {
		t.Fatalf("contentType = %q, want %q", req.ContentType, ContentAll)
	}
}

func TestNormalizeRejectsBadInput(t *testing.T) {
	cases := []CreateRequest{
		{SourceURL: "https://example.com/alice"},
		{SourceURL: "not a url"},
		{SourceURL: ""},
		{SourceURL: "https://instagram.com/alice", Quality: "ultra"},
		{SourceURL: "https://instagram.com/alice", ContentType: "reels"},
	}
	for _, req := range cases {
		err := req.Normalize()
		if err == nil {
			t.Fatalf("expected error for %+v", req)
		}
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("error %v does not wrap ErrValidation", err)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	if StatusPending.Terminal() || StatusProcessing.Terminal() {
		t.Fatalf("pending/processing must not be terminal")
	}
	if !StatusCompleted.Terminal() || !StatusFailed.Terminal() {
		t.Fatalf("completed/failed must be terminal")
	}
}
