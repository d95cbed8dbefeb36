package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestDataErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("run: %w", NewDataError("align", "no overlapping instruments"))
	if !IsDataError(err) {
		t.Fatalf("expected wrapped DataError to be detected")
	}
	var de *DataError
	if !errors.As(err, &de) || de.Op != "align" {
		t.Fatalf("unexpected data error: %v", de)
	}
	if got := de.Error(); got != "data error: align: no overlapping instruments" {
		t.Fatalf("unexpected message: %s", got)
	}
}

func TestIsDataErrorFalse(t *testing.T) {
	if IsDataError(ErrInvalidParameter) {
		t.Fatalf("sentinel must not be a data error")
	}
}
