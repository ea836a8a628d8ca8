package engine

import "testing"

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindInit, "INIT"},
		{KindCreate, "CREATE"},
		{KindUnpack, "UNPACK"},
		{KindMissing, "MISSING"},
		{KindFatal, "FATAL"},
		{KindDone, "DONE"},
		{Kind(99), "Kind(99)"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(tt.kind), got, tt.want)
		}
	}
}

func TestParseKind(t *testing.T) {
	for k := KindInit; k <= KindDone; k++ {
		got, ok := ParseKind(k.String())
		if !ok || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", k.String(), got, ok)
		}
	}
	if got, ok := ParseKind("modify"); !ok || got != KindModify {
		t.Errorf("ParseKind is case-insensitive: got %v, %v", got, ok)
	}
	if _, ok := ParseKind("BOGUS"); ok {
		t.Error("ParseKind(BOGUS) should fail")
	}
}

func TestEventString(t *testing.T) {
	ev := newEvent(KindCopy, "a.bin", "RECOVERY", "Success")
	if got := ev.String(); got != "[COPY] a.bin RECOVERY Success" {
		t.Errorf("String() = %q", got)
	}
}
