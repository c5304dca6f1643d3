package secrets

import "testing"

func TestBox_SealOpen(t *testing.T) {
	box := NewBox("passphrase")

	sealed, err := box.Seal("wJalrXUtnFEMI/K7MDENG")
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if sealed == "wJalrXUtnFEMI/K7MDENG" {
		t.Fatal("Seal() returned the plaintext")
	}

	opened, err := box.Open(sealed)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if opened != "wJalrXUtnFEMI/K7MDENG" {
		t.Errorf("Open() = %q", opened)
	}

	if _, err := NewBox("other").Open(sealed); err == nil {
		t.Error("Open() with a different key should fail")
	}
}

func TestBox_Fingerprint(t *testing.T) {
	box := NewBox("passphrase")

	if box.Fingerprint("a") != box.Fingerprint("a") {
		t.Error("Fingerprint() is not stable")
	}
	if box.Fingerprint("a") == box.Fingerprint("b") {
		t.Error("Fingerprint() collides for different secrets")
	}
	if box.Fingerprint("a") == NewBox("other").Fingerprint("a") {
		t.Error("Fingerprint() ignores the key")
	}
}
