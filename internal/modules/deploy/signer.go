package deploy

import (
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/logger"
)

// LoadSigner turns the DROPLET_SSH_PRIVATE_KEY value into a signer. The value is either a PEM
// block or its base64 encoding; Ed25519 keys are used as-is, then RSA. Unusable input is
// logged and returns nil.
func LoadSigner(log *logger.Logger, raw string) ssh.Signer {
	pemBytes, err := decodeKeyMaterial(raw)
	if err != nil {
		log.Error("ssh private key unreadable", "error", err)
		return nil
	}
	key, err := ssh.ParseRawPrivateKey(pemBytes)
	if err != nil {
		log.Error("ssh private key parse failed", "error", err)
		return nil
	}

	var signer ssh.Signer
	switch k := key.(type) {
	case ed25519.PrivateKey:
		signer, err = ssh.NewSignerFromKey(k)
	case *ed25519.PrivateKey:
		signer, err = ssh.NewSignerFromKey(*k)
	case *rsa.PrivateKey:
		signer, err = ssh.NewSignerFromKey(k)
	default:
		err = fmt.Errorf("unsupported key type %T", key)
	}
	if err != nil {
		log.Error("ssh signer init failed", "error", err)
		return nil
	}
	log.Debug("ssh signer loaded", "key_type", signer.PublicKey().Type())
	return signer
}

func decodeKeyMaterial(raw string) ([]byte, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("empty key")
	}
	// Keys pasted into single-line env files carry literal \n sequences.
	if !strings.Contains(s, "\n") && strings.Contains(s, `\n`) {
		s = strings.ReplaceAll(s, `\n`, "\n")
	}
	if strings.Contains(s, "-----BEGIN") {
		return []byte(s + "\n"), nil
	}

	compact := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
	compact = strings.TrimRight(compact, "=")
	if rem := len(compact) % 4; rem != 0 {
		compact += strings.Repeat("=", 4-rem)
	}
	decoded, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("key is neither PEM nor base64: %w", err)
	}
	if !strings.Contains(string(decoded), "-----BEGIN") {
		return nil, fmt.Errorf("decoded key is not PEM")
	}
	return decoded, nil
}
