package auth

import (
	"crypto/md5"
	"encoding/hex"
	"testing"

	"github.com/warpzone/server/internal/player"
)

// TestHashBufferMatchesSpecLayout is the S6 scenario: hash("Alice",
// "secret") with MD5/hex equals the hex of MD5 of the 56-byte buffer
// "alice" + 19 NUL + "secret" + 26 NUL.
func TestHashBufferMatchesSpecLayout(t *testing.T) {
	want := make([]byte, 0, 56)
	want = append(want, []byte("alice")...)
	want = append(want, make([]byte, 19)...)
	want = append(want, []byte("secret")...)
	want = append(want, make([]byte, 26)...)
	sum := md5.Sum(want)
	wantHex := hex.EncodeToString(sum[:])

	got := encodeHash(hashBuffer("Alice", "secret", "md5"), "hex")
	if got != wantHex {
		t.Fatalf("got %s, want %s", got, wantHex)
	}
}

func TestAuthenticateMatchesStoredHash(t *testing.T) {
	p := &Provider{alg: "md5", encoding: "hex", users: map[string]string{}}
	p.users["alice"] = encodeHash(hashBuffer("Alice", "secret", "md5"), "hex")

	var result player.AuthResult
	p.Authenticate(player.AuthRequest{Name: "Alice", Password: "secret"}, func(r player.AuthResult) { result = r })
	if !result.OK {
		t.Fatalf("expected matching password to authenticate")
	}

	p.Authenticate(player.AuthRequest{Name: "Alice", Password: "wrong"}, func(r player.AuthResult) { result = r })
	if result.OK {
		t.Fatalf("expected mismatched password to fail")
	}
}

func TestLiteralLockDeniesUnconditionally(t *testing.T) {
	p := &Provider{alg: "md5", encoding: "hex", users: map[string]string{"bob": "lock"}}
	var result player.AuthResult
	p.Authenticate(player.AuthRequest{Name: "bob", Password: "anything"}, func(r player.AuthResult) { result = r })
	if result.OK {
		t.Fatalf("expected lock entry to always deny")
	}
}

func TestLiteralAnyAcceptsUnconditionally(t *testing.T) {
	p := &Provider{alg: "md5", encoding: "hex", users: map[string]string{"carl": "any"}}
	var result player.AuthResult
	p.Authenticate(player.AuthRequest{Name: "carl", Password: "whatever"}, func(r player.AuthResult) { result = r })
	if !result.OK {
		t.Fatalf("expected any entry to always accept")
	}
}

func TestUnknownNameHonorsAllowUnknown(t *testing.T) {
	allow := &Provider{alg: "md5", encoding: "hex", users: map[string]string{}, allowUnknown: true}
	var result player.AuthResult
	allow.Authenticate(player.AuthRequest{Name: "nobody", Password: "x"}, func(r player.AuthResult) { result = r })
	if !result.OK {
		t.Fatalf("expected AllowUnknown=true to accept an absent name")
	}

	deny := &Provider{alg: "md5", encoding: "hex", users: map[string]string{}, allowUnknown: false}
	deny.Authenticate(player.AuthRequest{Name: "nobody", Password: "x"}, func(r player.AuthResult) { result = r })
	if result.OK {
		t.Fatalf("expected AllowUnknown=false to deny an absent name")
	}
}

func TestSetLocalPasswordRefusesToOverwriteExisting(t *testing.T) {
	p := &Provider{alg: "md5", encoding: "hex", users: map[string]string{"dave": "any"}}
	if p.SetLocalPassword("dave", "newpass") {
		t.Fatalf("expected SetLocalPassword to refuse overwriting an existing entry")
	}
	if p.SetLocalPassword("erin", "newpass") != true {
		t.Fatalf("expected SetLocalPassword to succeed for a fresh name")
	}
}

func TestPasswdRequiresAuthenticationWhenConfigured(t *testing.T) {
	p := &Provider{alg: "md5", encoding: "hex", users: map[string]string{}, requireAuthToSetPassword: true}
	if p.Passwd("frank", "x", false) {
		t.Fatalf("expected passwd to refuse an unauthenticated caller when required")
	}
	if !p.Passwd("frank", "x", true) {
		t.Fatalf("expected passwd to succeed for an authenticated caller")
	}
}

func TestAddAllowedAcceptsUnderBase64Encoding(t *testing.T) {
	p := &Provider{alg: "sha256", encoding: "base64", users: map[string]string{}}
	p.AddAllowed("gina")
	var result player.AuthResult
	p.Authenticate(player.AuthRequest{Name: "gina", Password: "x"}, func(r player.AuthResult) { result = r })
	if !result.OK {
		t.Fatalf("expected addallowed entry to authenticate regardless of encoding")
	}
}
