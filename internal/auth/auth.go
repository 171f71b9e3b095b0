// Package auth implements the C9 auth-file adapter: one reference IAuth
// provider that checks a login against a local salted-hash file. Grounded
// on the teacher's internal/persist/account_repo.go password-check shape
// (load a stored hash, compare against a freshly computed one), but using
// the spec's fixed 56-byte buffer + MD5/SHA-256/SHA-512 format rather than
// bcrypt, since this format is a specified on-disk compatibility contract,
// not a general password-storage design choice — bcrypt's variable-cost,
// self-salting output can't reproduce the fixed digest S6 requires.
package auth

import (
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"os"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/warpzone/server/internal/player"
)

const (
	nameBufLen = 24
	passBufLen = 32
)

// fileFormat is passwd.conf's on-disk shape: a General section for the
// hash settings, and a flat users table of name -> stored hash string.
type fileFormat struct {
	General struct {
		HashAlgorithm                      string `toml:"HashAlgorithm"`
		HashEncoding                        string `toml:"HashEncoding"`
		AllowUnknown                        bool   `toml:"AllowUnknown"`
		RequireAuthenticationToSetPassword bool   `toml:"RequireAuthenticationToSetPassword"`
	} `toml:"General"`
	Users map[string]string `toml:"users"`
}

// Provider is the default IAuth implementation: a local passwd.conf file of
// salted-hash entries, one of literal "lock" (deny unconditionally) or
// literal "any" (accept unconditionally), matched against the freshly
// computed hash otherwise.
type Provider struct {
	path string

	mu       sync.Mutex
	alg      string
	encoding string
	allowUnknown bool
	requireAuthToSetPassword bool
	users    map[string]string
}

// NewProvider loads path (a TOML passwd.conf) and returns a Provider ready
// to authenticate requests.
func NewProvider(path string) (*Provider, error) {
	var f fileFormat
	if _, err := toml.DecodeFile(path, &f); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}
	if f.General.HashAlgorithm == "" {
		f.General.HashAlgorithm = "sha256"
	}
	if f.General.HashEncoding == "" {
		f.General.HashEncoding = "hex"
	}
	if f.Users == nil {
		f.Users = make(map[string]string)
	}
	return &Provider{
		path:                     path,
		alg:                      f.General.HashAlgorithm,
		encoding:                 f.General.HashEncoding,
		allowUnknown:             f.General.AllowUnknown,
		requireAuthToSetPassword: f.General.RequireAuthenticationToSetPassword,
		users:                    f.Users,
	}, nil
}

// Authenticate implements player.AuthProvider. It runs entirely
// synchronously (no I/O beyond the already-loaded in-memory table), and
// calls done before returning, which is valid per §4.9's "may be
// synchronous or asynchronous."
func (p *Provider) Authenticate(req player.AuthRequest, done func(player.AuthResult)) {
	name := strings.ToLower(req.Name)

	p.mu.Lock()
	stored, ok := p.users[name]
	alg, enc, allowUnknown := p.alg, p.encoding, p.allowUnknown
	p.mu.Unlock()

	if !ok {
		done(player.AuthResult{OK: allowUnknown, Name: req.Name, AllowUnknown: allowUnknown})
		return
	}
	switch stored {
	case "lock":
		done(player.AuthResult{OK: false, Name: req.Name})
		return
	case "any":
		done(player.AuthResult{OK: true, Name: req.Name})
		return
	}

	computed := encodeHash(hashBuffer(req.Name, req.Password, alg), enc)
	done(player.AuthResult{OK: computed == stored, Name: req.Name})
}

// hashBuffer builds the 56-byte input and digests it per §4.9: name
// truncated to 23 characters, lowercased, zero-padded into 24 bytes;
// password truncated to 31 characters, zero-padded into 32 bytes.
func hashBuffer(name, password, alg string) []byte {
	buf := make([]byte, nameBufLen+passBufLen)

	n := strings.ToLower(name)
	if len(n) > nameBufLen-1 {
		n = n[:nameBufLen-1]
	}
	copy(buf[:nameBufLen], n)

	pw := password
	if len(pw) > passBufLen-1 {
		pw = pw[:passBufLen-1]
	}
	copy(buf[nameBufLen:], pw)

	h := newHasher(alg)
	h.Write(buf)
	return h.Sum(nil)
}

func newHasher(alg string) hash.Hash {
	switch strings.ToLower(alg) {
	case "sha512":
		return sha512.New()
	case "sha256":
		return sha256.New()
	default:
		return md5.New()
	}
}

func encodeHash(sum []byte, encoding string) string {
	if strings.EqualFold(encoding, "base64") {
		return base64.StdEncoding.EncodeToString(sum)
	}
	return hex.EncodeToString(sum)
}

// SetLocalPassword implements the `set_local_password` command (§4.9): it
// stores the hash computed from (target, password) under target, but only if
// target has no stored hash yet (refuses to overwrite an existing entry).
func (p *Provider) SetLocalPassword(target, password string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := strings.ToLower(target)
	if _, exists := p.users[key]; exists {
		return false
	}
	p.users[key] = encodeHash(hashBuffer(target, password, p.alg), p.encoding)
	return true
}

// Passwd implements the `passwd` command: change name's own stored
// password. authenticated reflects whether the caller's current session is
// itself authenticated, gating the change when
// RequireAuthenticationToSetPassword is set.
func (p *Provider) Passwd(name, newPassword string, authenticated bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.requireAuthToSetPassword && !authenticated {
		return false
	}
	p.users[strings.ToLower(name)] = encodeHash(hashBuffer(name, newPassword, p.alg), p.encoding)
	return true
}

// AddAllowed implements the `addallowed` command: grants name access with
// the literal "any" sentinel, bypassing hash comparison entirely.
func (p *Provider) AddAllowed(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[strings.ToLower(name)] = "any"
}
