package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRetriable(t *testing.T) {
	i := 0
	ctx := context.Background()
	tim := time.Now()
	err := Retriable(ctx, func() error {
		i++
		return fmt.Errorf("%d", i)
	}, time.Microsecond, 3)

	if time.Since(tim) < 2*time.Microsecond {
		t.Errorf("err: excepted at least 2µs got %v", time.Since(tim))
	}

	if err == nil {
		t.Fatal("err: excepted 3 got nil")
	}
	if err.Error() != "3" {
		t.Error("err: excepted 3 got " + err.Error())
	}
}

func TestRetriableStopsOnFatal(t *testing.T) {
	i := 0
	err := Retriable(context.Background(), func() error {
		i++
		return MakeFatal(fmt.Errorf("fatal"))
	}, time.Microsecond, 3)
	if err == nil || i != 1 {
		t.Errorf("expected a single call, got %d (%v)", i, err)
	}
}

func TestMergeErrors(t *testing.T) {
	tmp := MakeTemporary(fmt.Errorf("tmp"))
	fatal := fmt.Errorf("fatal")

	if err := MergeErrors(false, fatal, nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if err := MergeErrors(false, fatal, tmp); !Temporary(err) {
		t.Errorf("expected temporary error, got %v", err)
	}
	if err := MergeErrors(true, tmp, fatal); Temporary(err) {
		t.Errorf("expected fatal error first, got %v", err)
	}
}

func TestTaxonomyWrapping(t *testing.T) {
	err := fmt.Errorf("Download.%w", fmt.Errorf("%w: status 404", ErrDownloadFailed))
	if !errors.Is(err, ErrDownloadFailed) {
		t.Errorf("expected ErrDownloadFailed in %v", err)
	}
	if errors.Is(err, ErrCorruptArchive) {
		t.Errorf("unexpected ErrCorruptArchive in %v", err)
	}
	if !Temporary(fmt.Errorf("Download: %w", ErrTransport)) {
		t.Error("transport errors must be temporary")
	}
}
