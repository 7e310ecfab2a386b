package apperr

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestKind_Determinism(t *testing.T) {
	deterministic := []Kind{KindSyntax, KindType, KindArgument, KindFieldAccess, KindValidation,
		KindUnknownIdentifier, KindCircularDependency, KindArithmetic}
	for _, k := range deterministic {
		if !k.Deterministic() {
			t.Errorf("%s should be deterministic", k)
		}
	}
	transient := []Kind{KindNetwork, KindTimeout, KindResourceUnavailable, KindPermission, KindExternalService}
	for _, k := range transient {
		if k.Deterministic() {
			t.Errorf("%s should not be deterministic", k)
		}
	}
}

func TestParseKind_RoundTrip(t *testing.T) {
	for k, name := range kindNames {
		got, ok := ParseKind(name)
		if !ok || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", name, got, ok)
		}
	}
	if _, ok := ParseKind("bogus"); ok {
		t.Error("bogus kind should not parse")
	}
}

type offsetErr struct{}

func (offsetErr) Error() string    { return "unterminated string" }
func (offsetErr) ErrorKind() Kind  { return KindSyntax }
func (offsetErr) ErrorOffset() int { return 7 }

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"already classified", New(KindArithmetic, 3, "division by zero"), KindArithmetic},
		{"wrapped classified", fmt.Errorf("outer: %w", New(KindValidation, 0, "bare date")), KindValidation},
		{"kinded", offsetErr{}, KindSyntax},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"permission", fmt.Errorf("open: %w", fs.ErrPermission), KindPermission},
		{"not found", fmt.Errorf("lookup: %w", ErrNotFound), KindResourceUnavailable},
		{"keyword timeout", errors.New("request timed out"), KindTimeout},
		{"keyword network", errors.New("dial tcp: connection refused"), KindNetwork},
		{"keyword service", errors.New("upstream returned bad gateway"), KindExternalService},
		{"unknown", errors.New("something odd"), KindType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.err)
			if got.Kind != tc.want {
				t.Errorf("Classify(%v) = %s, want %s", tc.err, got.Kind, tc.want)
			}
		})
	}
}

func TestClassify_KeepsOffset(t *testing.T) {
	got := Classify(offsetErr{})
	if got.Offset != 7 {
		t.Errorf("offset = %d, want 7", got.Offset)
	}
}

func TestEncodeDecode(t *testing.T) {
	e := New(KindFieldAccess, 4, "number has no property %q", "path")
	w := e.Encode()
	if w.Type != "field_access" {
		t.Errorf("wire type = %q", w.Type)
	}
	back := Decode(w)
	if back.Kind != e.Kind || back.Message != e.Message || back.Offset != e.Offset {
		t.Errorf("decoded %+v, want %+v", back, e)
	}
}
