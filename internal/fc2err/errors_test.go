package fc2err

import "testing"

func TestNewServerDisconnectionMapsKnownCodes(t *testing.T) {
	cases := []struct {
		code   int
		reason string
	}{
		{4101, "Paid program"},
		{4507, "Login required"},
		{4512, "Multiple connections"},
		{9999, ""},
	}
	for _, c := range cases {
		err := NewServerDisconnection(c.code)
		if err.Reason != c.reason {
			t.Errorf("NewServerDisconnection(%d).Reason = %q, want %q", c.code, err.Reason, c.reason)
		}
	}
}

func TestDisconnectionPredicates(t *testing.T) {
	if !IsPaidProgram(NewServerDisconnection(4101)) {
		t.Error("IsPaidProgram should match 4101")
	}
	if !IsLoginRequired(NewServerDisconnection(4507)) {
		t.Error("IsLoginRequired should match 4507")
	}
	if !IsMultipleConnection(NewServerDisconnection(4512)) {
		t.Error("IsMultipleConnection should match 4512")
	}
	if IsPaidProgram(NewServerDisconnection(4507)) {
		t.Error("IsPaidProgram should not match 4507")
	}
	if IsPaidProgram(&StreamEnded{}) {
		t.Error("IsPaidProgram should not match an unrelated error type")
	}
}
