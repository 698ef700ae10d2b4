// Package wallet implements the deep-link connect protocol spoken with an
// external Phantom-compatible wallet app. There is no socket between the two
// apps; every round trip is a URL opened through the OS and a callback URL
// delivered back. Payloads are sealed with a nacl box shared secret derived
// from the local keypair and the wallet's encryption public key.
package wallet

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/nacl/box"
)

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	ErrNotConnected      = errors.New("wallet is not connected")
	ErrAlreadyConnecting = errors.New("connect already in progress")
	ErrDecryptionFailure = errors.New("fail to decrypt wallet payload")
	ErrMalformedCallback = errors.New("malformed wallet callback")
)

// RemoteError is an error the wallet app reported through the callback URL.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("wallet error %s: %s", e.Code, e.Message)
}

// URLOpener hands a URL to the host platform for OS-level redirection. The
// mobile shell supplies the real implementation.
type URLOpener interface {
	OpenURL(rawURL string) error
}

type Config struct {
	// WalletHost is the universal-link host of the wallet app, e.g. phantom.app.
	WalletHost string
	// AppURL identifies this dapp to the wallet.
	AppURL string
	// Cluster is the Solana cluster to connect on.
	Cluster string
	// RedirectBase is the deep link prefix routed back into this app. The
	// connect/disconnect/transaction callbacks are built under it.
	RedirectBase string
}

// Handshake owns the local keypair and, once connected, the shared secret and
// session token for one wallet session. The keypair lives for the process;
// everything else is cleared on disconnect. All methods are safe for
// concurrent use, though callbacks are expected to arrive one at a time from
// the platform's URL event delivery.
type Handshake struct {
	cfg    Config
	logger *logrus.Logger

	publicKey *[32]byte
	secretKey *[32]byte

	mu              sync.Mutex
	state           State
	sharedSecret    *[32]byte
	session         string
	walletPublicKey string
	walletEncKey    *[32]byte
}

func NewHandshake(cfg Config) (*Handshake, error) {
	pub, sec, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("fail to generate keypair: %w", err)
	}
	return &Handshake{
		cfg:       cfg,
		logger:    logrus.WithField("service", "wallet-handshake").Logger,
		publicKey: pub,
		secretKey: sec,
		state:     StateIdle,
	}, nil
}

func (h *Handshake) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// PublicKey returns the base58 encoded dapp encryption public key.
func (h *Handshake) PublicKey() string {
	return base58.Encode(h.publicKey[:])
}

// Session returns the wallet-issued session token, or an empty string when
// not connected.
func (h *Handshake) Session() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session
}

// WalletPublicKey returns the connected wallet's account public key.
func (h *Handshake) WalletPublicKey() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.walletPublicKey
}

// ConnectURL builds the universal link that starts the connect handshake.
func (h *Handshake) ConnectURL() string {
	q := url.Values{}
	q.Set("dapp_encryption_public_key", h.PublicKey())
	q.Set("cluster", h.cfg.Cluster)
	q.Set("app_url", h.cfg.AppURL)
	q.Set("redirect_link", h.cfg.RedirectBase+"/onConnect")
	u := url.URL{
		Scheme:   "https",
		Host:     h.cfg.WalletHost,
		Path:     "/ul/v1/connect",
		RawQuery: q.Encode(),
	}
	return u.String()
}

// InitiateConnect opens the connect URL through the host platform and moves
// to Connecting. Completion is driven entirely by a later HandleCallback;
// nothing is awaited here. The component enforces no timeout of its own, so
// a wallet that never calls back leaves the state in Connecting until the
// user disconnects or retries.
func (h *Handshake) InitiateConnect(opener URLOpener) error {
	h.mu.Lock()
	if h.state == StateConnecting {
		h.mu.Unlock()
		return ErrAlreadyConnecting
	}
	h.state = StateConnecting
	h.mu.Unlock()

	if err := opener.OpenURL(h.ConnectURL()); err != nil {
		h.mu.Lock()
		h.state = StateIdle
		h.mu.Unlock()
		return fmt.Errorf("fail to open connect url: %w", err)
	}
	h.logger.WithFields(logrus.Fields{
		"cluster": h.cfg.Cluster,
	}).Info("Connect initiated, waiting for wallet callback")
	return nil
}

// Disconnect clears the shared secret, session and wallet keys immediately,
// regardless of any in-flight callback. The local keypair is kept for the
// process lifetime.
func (h *Handshake) Disconnect() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clearSessionLocked()
	h.state = StateDisconnected
}

func (h *Handshake) clearSessionLocked() {
	h.sharedSecret = nil
	h.session = ""
	h.walletPublicKey = ""
	h.walletEncKey = nil
}

// Encrypt seals payload under the session's shared secret with a fresh
// random 24-byte nonce. Both return values are raw bytes ready for base58
// encoding into a deep link.
func (h *Handshake) Encrypt(payload any) (nonce [24]byte, ciphertext []byte, err error) {
	h.mu.Lock()
	secret := h.sharedSecret
	connected := h.state == StateConnected
	h.mu.Unlock()
	if !connected || secret == nil {
		return nonce, nil, ErrNotConnected
	}
	if _, err = rand.Read(nonce[:]); err != nil {
		return nonce, nil, fmt.Errorf("fail to generate nonce: %w", err)
	}
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nonce, nil, fmt.Errorf("fail to marshal payload: %w", err)
	}
	ciphertext = box.SealAfterPrecomputation(nil, plaintext, &nonce, secret)
	return nonce, ciphertext, nil
}

// Decrypt opens an authenticated envelope from the wallet. Authentication
// failure is terminal for the attempt: the caller must surface it, never
// fall back to the ciphertext.
func (h *Handshake) Decrypt(nonce [24]byte, ciphertext []byte) ([]byte, error) {
	h.mu.Lock()
	secret := h.sharedSecret
	connected := h.state == StateConnected
	h.mu.Unlock()
	if !connected || secret == nil {
		return nil, ErrNotConnected
	}
	plaintext, ok := box.OpenAfterPrecomputation(nil, ciphertext, &nonce, secret)
	if !ok {
		return nil, ErrDecryptionFailure
	}
	return plaintext, nil
}

// connectPayload is the JSON the wallet seals into the connect callback.
type connectPayload struct {
	PublicKey string `json:"public_key"`
	Session   string `json:"session"`
}

// completeConnect derives the shared secret from the wallet's encryption key,
// opens the sealed connect data and installs the session.
func (h *Handshake) completeConnect(walletEncKeyB58 string, nonce [24]byte, data []byte) error {
	rawKey, err := base58.Decode(walletEncKeyB58)
	if err != nil || len(rawKey) != 32 {
		return ErrDecryptionFailure
	}
	var peerKey [32]byte
	copy(peerKey[:], rawKey)

	var secret [32]byte
	box.Precompute(&secret, &peerKey, h.secretKey)

	plaintext, ok := box.OpenAfterPrecomputation(nil, data, &nonce, &secret)
	if !ok {
		return ErrDecryptionFailure
	}
	var payload connectPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return ErrDecryptionFailure
	}
	if payload.PublicKey == "" || payload.Session == "" {
		return ErrDecryptionFailure
	}

	h.mu.Lock()
	h.sharedSecret = &secret
	h.session = payload.Session
	h.walletPublicKey = payload.PublicKey
	h.walletEncKey = &peerKey
	h.state = StateConnected
	h.mu.Unlock()

	h.logger.WithFields(logrus.Fields{
		"wallet": payload.PublicKey,
	}).Info("Wallet connected")
	return nil
}
