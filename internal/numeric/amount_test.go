package numeric

import "testing"

func TestAmountArithmetic(t *testing.T) {
	a, err := FromString("1.5")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	b := FromInt(2)

	if got := a.Add(b).String(); got != "7/2" {
		t.Fatalf("add: got %s", got)
	}
	if got := b.Sub(a).Float64(); got != 0.5 {
		t.Fatalf("sub: got %v", got)
	}
	if got := a.Mul(b).Float64(); got != 3 {
		t.Fatalf("mul: got %v", got)
	}
}

func TestAmountDivByZero(t *testing.T) {
	a := FromInt(10)
	if got := a.Div(Zero()); !got.IsZero() {
		t.Fatalf("expected zero, got %s", got)
	}
}

func TestAmountFeeSplitExactness(t *testing.T) {
	gross := FromString1(t, "1.0")
	reserve := FromString1(t, "0.1")
	transferable := gross.Sub(reserve)
	fee := transferable.MulFloat(0.10)
	ownerShare := transferable.Sub(fee)

	total := fee.Add(ownerShare).Add(reserve)
	if total.Cmp(gross) != 0 {
		t.Fatalf("split should reconstruct gross exactly: got %s want %s", total, gross)
	}
}

func TestAmountScanRoundTrip(t *testing.T) {
	var a Amount
	if err := a.Scan([]byte("3.14159")); err != nil {
		t.Fatalf("scan: %v", err)
	}
	val, err := a.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	if val == nil {
		t.Fatalf("expected non-nil driver value")
	}
}

func TestAmountDecimalString(t *testing.T) {
	a := FromString1(t, "12.5")
	if got := a.DecimalString(6); got != "12.500000" {
		t.Fatalf("got %s", got)
	}
}

func FromString1(t *testing.T, s string) Amount {
	t.Helper()
	a, err := FromString(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return a
}
