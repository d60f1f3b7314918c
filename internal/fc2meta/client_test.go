package fc2meta

import "testing"

func TestSplitJWTThreeParts(t *testing.T) {
	parts := splitJWT("header.body.signature")
	if len(parts) != 3 {
		t.Fatalf("splitJWT returned %d parts, want 3: %v", len(parts), parts)
	}
	if parts[0] != "header" || parts[1] != "body" || parts[2] != "signature" {
		t.Fatalf("splitJWT = %v", parts)
	}
}

func TestDecodeControlTokenFC2ID(t *testing.T) {
	// {"fc2_id":"42"} base64url-encoded without padding, as a JWT segment
	// typically appears.
	body := "eyJmYzJfaWQiOiI0MiJ9"
	jwt := "header." + body + ".sig"

	id, err := decodeControlTokenFC2ID(jwt)
	if err != nil {
		t.Fatalf("decodeControlTokenFC2ID: %v", err)
	}
	if id != "42" {
		t.Errorf("decodeControlTokenFC2ID = %q, want 42", id)
	}
}

func TestDecodeControlTokenFC2IDRejectsMalformedJWT(t *testing.T) {
	if _, err := decodeControlTokenFC2ID("not-a-jwt"); err == nil {
		t.Fatal("expected an error for a non-three-part token")
	}
}
