package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
)

func TestValidateWindow(t *testing.T) {
	cases := []struct {
		offset, span, duration float64
		ok                     bool
	}{
		{0, 10, 30, true},
		{20, 10, 30, true},
		{20.0000001, 10, 30, true},
		{20.5, 10, 30, false},
		{-0.1, 10, 30, false},
		{100, 10, 0, true},
		{0, 10, 5, false},
		{math.NaN(), 10, 30, false},
		{math.NaN(), 10, 0, false},
		{math.Inf(1), 10, 0, false},
		{math.Inf(-1), 10, 30, false},
		{0, math.NaN(), 30, false},
		{0, 10, math.Inf(1), false},
	}
	for _, tc := range cases {
		err := ValidateWindow(tc.offset, tc.span, tc.duration)
		if tc.ok && err != nil {
			t.Errorf("ValidateWindow(%v, %v, %v) = %v", tc.offset, tc.span, tc.duration, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidWindow) {
			t.Errorf("ValidateWindow(%v, %v, %v) should fail, got %v", tc.offset, tc.span, tc.duration, err)
		}
	}
}

func TestVideoFilter(t *testing.T) {
	if got := (FilterDirective{Kind: FilterCopy}).VideoFilter(); got != "" {
		t.Fatalf("copy should have no filter, got %q", got)
	}
	if got := (FilterDirective{Kind: FilterScaleOnly, TargetHeight: 1280}).VideoFilter(); got != "scale=-2:1280" {
		t.Fatalf("unexpected scale filter %q", got)
	}
	got := (FilterDirective{Kind: FilterScaleCrop, TargetHeight: 1280}).VideoFilter()
	if got != "scale=-2:1280,crop=ih*(9/16):ih:(iw-ow)/2:0" {
		t.Fatalf("unexpected crop filter %q", got)
	}
	got = (FilterDirective{Kind: FilterScaleCrop, TargetHeight: 720, AspectNum: 4, AspectDen: 5}).VideoFilter()
	if got != "scale=-2:720,crop=ih*(4/5):ih:(iw-ow)/2:0" {
		t.Fatalf("unexpected custom crop filter %q", got)
	}
}

func TestRenderErrorMessageAndKind(t *testing.T) {
	cause := errors.New("exit status 1")
	err := &RenderError{Kind: KindExecution, Index: 2, TrackID: "abc", Err: cause}

	if msg := err.Error(); msg != "track 2 (abc): execution: exit status 1" {
		t.Fatalf("unexpected message %q", msg)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause not unwrapped")
	}

	wrapped := fmt.Errorf("run: %w", err)
	if kind, ok := KindOf(wrapped); !ok || kind != KindExecution {
		t.Fatalf("KindOf = %v, %v", kind, ok)
	}
	if _, ok := KindOf(cause); ok {
		t.Fatalf("plain error should carry no kind")
	}

	fatal := &RenderError{Kind: KindEngineUnavailable, Index: -1, Err: ErrEngineUnavailable}
	if !strings.HasPrefix(fatal.Error(), "engine_unavailable: ") || !fatal.Kind.Fatal() {
		t.Fatalf("unexpected fatal error %q", fatal.Error())
	}
	if KindStaging.Fatal() {
		t.Fatalf("staging failures are per track")
	}
}
