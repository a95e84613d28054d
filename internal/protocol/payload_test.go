package protocol

import (
	"errors"
	"testing"
	"time"
)

func withFixedNow(t *testing.T, at time.Time) {
	t.Helper()
	orig := nowFunc
	nowFunc = func() time.Time { return at }
	t.Cleanup(func() { nowFunc = orig })
}

func u8(v uint8) *uint8 { return &v }

func TestValidateRequiresName(t *testing.T) {
	_, err := ClientPayload{}.Validate()
	if !errors.Is(err, ErrEmptyName) {
		t.Fatalf("err = %v, want ErrEmptyName", err)
	}
}

func TestValidateRejectsUnknownRI6(t *testing.T) {
	p := ClientPayload{Name: "dev-1", RI6: u8(7)}
	_, err := p.Validate()
	var ri6Err *ErrInvalidRI6
	if !errors.As(err, &ri6Err) {
		t.Fatalf("err = %v, want *ErrInvalidRI6", err)
	}
}

func TestValidateAcceptsKnownRI6Bands(t *testing.T) {
	for _, band := range []uint8{0, 3, 5, 40} {
		p := ClientPayload{Name: "dev-1", RI6: u8(band)}
		if _, err := p.Validate(); err != nil {
			t.Fatalf("band %d: unexpected error %v", band, err)
		}
	}
}

func TestValidateDefaultsDT(t *testing.T) {
	fixed := time.Date(2026, 7, 30, 12, 0, 0, 500_000_000, time.UTC)
	withFixedNow(t, fixed)

	got, err := ClientPayload{Name: "dev-1"}.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got.DT == nil {
		t.Fatal("DT not defaulted")
	}
	want := "2026-07-30T12:00:00Z"
	if *got.DT != want {
		t.Fatalf("DT = %q, want %q", *got.DT, want)
	}
}

func TestValidatePreservesExplicitDT(t *testing.T) {
	dt := "2020-01-01T00:00:00Z"
	p := ClientPayload{Name: "dev-1", DT: &dt}
	got, err := p.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got.DT == nil || *got.DT != dt {
		t.Fatalf("DT = %v, want %q", got.DT, dt)
	}
}
