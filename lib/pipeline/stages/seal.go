package stages

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dNet/lib/pipeline"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
	"io"
	"sync"
)

// KeySize is the key length required by Seal
const KeySize = chacha20poly1305.KeySize

var (
	errSealDisabled = errors.New("seal stage is not enabled")
	errShortMessage = errors.New("sealed message too short")
)

// Seal encrypts and authenticates outbound data with XChaCha20-Poly1305 and opens inbound data.
// Every sealed message is the random 24 byte nonce followed by the ciphertext.
type Seal struct {
	dir pipeline.Direction
	key []byte

	mu   sync.RWMutex
	aead cipher.AEAD
}

// NewSeal creates a seal stage for dir. The key must be KeySize bytes long, this is checked
// when the stage is enabled.
func NewSeal(dir pipeline.Direction, key []byte) *Seal {
	k := make([]byte, len(key))
	copy(k, key)
	return &Seal{dir: dir, key: k}
}

// DeriveKey derives a KeySize key from a passphrase with HKDF-SHA256
func DeriveKey(passphrase string) ([]byte, error) {
	key := make([]byte, KeySize)
	r := hkdf.New(sha256.New, []byte(passphrase), nil, []byte("dnet seal stage"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

func (s *Seal) Name() string {
	return "seal/" + s.dir.String()
}

func (s *Seal) OnEnable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		pipeline.Logger.Errorf("seal: %v", err)
		return false
	}
	s.aead = aead
	return true
}

func (s *Seal) OnDisable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aead = nil
	return true
}

func (s *Seal) Process(data []byte) ([]byte, error) {
	s.mu.RLock()
	aead := s.aead
	s.mu.RUnlock()

	if aead == nil {
		return nil, errSealDisabled
	}

	if s.dir == pipeline.Out {
		nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(data)+aead.Overhead())
		if _, err := rand.Read(nonce); err != nil {
			return nil, err
		}
		return aead.Seal(nonce, nonce, data, nil), nil
	}

	if len(data) < aead.NonceSize()+aead.Overhead() {
		return nil, errShortMessage
	}
	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, nil)
}
