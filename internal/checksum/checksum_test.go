package checksum

import "testing"

func TestDigest(t *testing.T) {
	// Well-known SHA-256 of the empty input.
	if got := Digest(nil); got != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Fatalf("unexpected digest for empty input: %s", got)
	}
	a := Digest([]byte("hello"))
	b := Digest([]byte("hello"))
	if a != b {
		t.Fatal("same bytes must hash identically")
	}
	if a == Digest([]byte("hello!")) {
		t.Fatal("different bytes must not collide")
	}
}
