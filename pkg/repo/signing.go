package repo

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

const signaturePrefix = "sshsig-v1"

var ErrBadSignature = errors.New("bad commit signature")

// Signer produces a detached signature over a commit payload. The returned
// string is stored verbatim in the commit's signature header.
type Signer interface {
	Sign(payload []byte) (string, error)
}

type sshSigner struct {
	signer ssh.Signer
	pubB64 string
}

// NewSSHSigner loads an SSH private key and returns a Signer for it, along
// with the resolved key path. An empty keyPath falls back to the usual
// ~/.ssh default key names.
func NewSSHSigner(keyPath string) (Signer, string, error) {
	resolved, err := resolveSigningKeyPath(keyPath)
	if err != nil {
		return nil, "", err
	}

	raw, err := os.ReadFile(resolved)
	if err != nil {
		return nil, "", fmt.Errorf("read signing key %q: %w", resolved, err)
	}
	signer, err := ssh.ParsePrivateKey(raw)
	if err != nil {
		return nil, "", fmt.Errorf("parse signing key %q: %w", resolved, err)
	}

	pub := signer.PublicKey()
	return &sshSigner{
		signer: signer,
		pubB64: base64.StdEncoding.EncodeToString(pub.Marshal()),
	}, resolved, nil
}

func (s *sshSigner) Sign(payload []byte) (string, error) {
	sig, err := s.signer.Sign(rand.Reader, payload)
	if err != nil {
		return "", err
	}
	sigB64 := base64.StdEncoding.EncodeToString(sig.Blob)
	return fmt.Sprintf("%s:%s:%s:%s", signaturePrefix, sig.Format, s.pubB64, sigB64), nil
}

// VerifySignature checks an sshsig-v1 signature string against the payload
// it should cover and returns the embedded public key on success.
func VerifySignature(signature string, payload []byte) (ssh.PublicKey, error) {
	parts := strings.SplitN(signature, ":", 4)
	if len(parts) != 4 || parts[0] != signaturePrefix {
		return nil, fmt.Errorf("%w: unrecognized format", ErrBadSignature)
	}
	pubRaw, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: public key: %v", ErrBadSignature, err)
	}
	sigRaw, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return nil, fmt.Errorf("%w: signature blob: %v", ErrBadSignature, err)
	}
	pub, err := ssh.ParsePublicKey(pubRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: public key: %v", ErrBadSignature, err)
	}
	sig := &ssh.Signature{Format: parts[1], Blob: sigRaw}
	if err := pub.Verify(payload, sig); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return pub, nil
}

func resolveSigningKeyPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path != "" {
		return expandUserPath(path)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	candidates := []string{
		filepath.Join(home, ".ssh", "id_ed25519"),
		filepath.Join(home, ".ssh", "id_ecdsa"),
		filepath.Join(home, ".ssh", "id_rsa"),
	}
	for _, candidate := range candidates {
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no default SSH private key found in ~/.ssh (id_ed25519, id_ecdsa, id_rsa)")
}

func expandUserPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(path)
}
