package gdrive

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/api/googleapi"

	"neurotutor/internal/remote"
)

func TestWrapMapsNotFound(t *testing.T) {
	t.Parallel()

	err := wrap("download x", &googleapi.Error{Code: http.StatusNotFound})
	if !errors.Is(err, remote.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	err = wrap("download x", fmt.Errorf("boom"))
	if errors.Is(err, remote.ErrNotFound) {
		t.Fatalf("plain error must not map to ErrNotFound")
	}
}

func TestEscapeQuery(t *testing.T) {
	t.Parallel()

	if got := escapeQuery(`a'b\c`); got != `a\'b\\c` {
		t.Fatalf("escapeQuery=%q", got)
	}
}
