package wallet

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/nacl/box"
)

var testConfig = Config{
	WalletHost:   "phantom.app",
	AppURL:       "https://takes.app",
	Cluster:      "mainnet-beta",
	RedirectBase: "takes://wallet",
}

type fakeOpener struct {
	opened []string
	err    error
}

func (f *fakeOpener) OpenURL(rawURL string) error {
	if f.err != nil {
		return f.err
	}
	f.opened = append(f.opened, rawURL)
	return nil
}

// fakeWallet plays the remote wallet app's side of the handshake.
type fakeWallet struct {
	publicKey *[32]byte
	secretKey *[32]byte
	session   string
	account   string
}

func newFakeWallet(t *testing.T) *fakeWallet {
	t.Helper()
	pub, sec, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)
	account := make([]byte, 32)
	_, err = rand.Read(account)
	require.NoError(t, err)
	return &fakeWallet{
		publicKey: pub,
		secretKey: sec,
		session:   "session-token-1",
		account:   base58.Encode(account),
	}
}

func (w *fakeWallet) sharedSecretWith(dappPublicKeyB58 string) [32]byte {
	raw, _ := base58.Decode(dappPublicKeyB58)
	var dappPub [32]byte
	copy(dappPub[:], raw)
	var secret [32]byte
	box.Precompute(&secret, &dappPub, w.secretKey)
	return secret
}

// connectCallbackURL builds the deep link the wallet would deliver after the
// user approves the connection.
func (w *fakeWallet) connectCallbackURL(t *testing.T, h *Handshake) string {
	t.Helper()
	secret := w.sharedSecretWith(h.PublicKey())
	payload, err := json.Marshal(map[string]string{
		"public_key": w.account,
		"session":    w.session,
	})
	require.NoError(t, err)
	var nonce [24]byte
	_, err = rand.Read(nonce[:])
	require.NoError(t, err)
	data := box.SealAfterPrecomputation(nil, payload, &nonce, &secret)

	q := url.Values{}
	q.Set("phantom_encryption_public_key", base58.Encode(w.publicKey[:]))
	q.Set("nonce", base58.Encode(nonce[:]))
	q.Set("data", base58.Encode(data))
	return "takes://wallet/onConnect?" + q.Encode()
}

func connectedHandshake(t *testing.T) (*Handshake, *fakeWallet) {
	t.Helper()
	h, err := NewHandshake(testConfig)
	require.NoError(t, err)
	require.NoError(t, h.InitiateConnect(&fakeOpener{}))
	w := newFakeWallet(t)
	ev, err := h.HandleCallback(w.connectCallbackURL(t, h))
	require.NoError(t, err)
	require.IsType(t, ConnectedEvent{}, ev)
	return h, w
}

func TestInitiateConnect(t *testing.T) {
	h, err := NewHandshake(testConfig)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, h.State())

	opener := &fakeOpener{}
	require.NoError(t, h.InitiateConnect(opener))
	assert.Equal(t, StateConnecting, h.State())
	require.Len(t, opener.opened, 1)

	u, err := url.Parse(opener.opened[0])
	require.NoError(t, err)
	assert.Equal(t, "phantom.app", u.Host)
	assert.Equal(t, "/ul/v1/connect", u.Path)
	assert.Equal(t, h.PublicKey(), u.Query().Get("dapp_encryption_public_key"))
	assert.Equal(t, "mainnet-beta", u.Query().Get("cluster"))
	assert.Equal(t, "takes://wallet/onConnect", u.Query().Get("redirect_link"))

	// a second connect while one is pending is rejected
	assert.ErrorIs(t, h.InitiateConnect(opener), ErrAlreadyConnecting)
}

func TestInitiateConnectOpenFailure(t *testing.T) {
	h, err := NewHandshake(testConfig)
	require.NoError(t, err)
	opener := &fakeOpener{err: errors.New("no handler for url")}
	assert.Error(t, h.InitiateConnect(opener))
	assert.Equal(t, StateIdle, h.State())
}

func TestConnectHandshake(t *testing.T) {
	h, err := NewHandshake(testConfig)
	require.NoError(t, err)
	require.NoError(t, h.InitiateConnect(&fakeOpener{}))

	w := newFakeWallet(t)
	ev, err := h.HandleCallback(w.connectCallbackURL(t, h))
	require.NoError(t, err)

	connected, ok := ev.(ConnectedEvent)
	require.True(t, ok)
	assert.Equal(t, w.account, connected.WalletPublicKey)
	assert.False(t, connected.Duplicate)
	assert.Equal(t, StateConnected, h.State())
	assert.Equal(t, w.session, h.Session())
	assert.Equal(t, w.account, h.WalletPublicKey())
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	h, _ := connectedHandshake(t)

	payload := map[string]string{"transaction": "AQIDBA", "session": h.Session()}
	nonce, ciphertext, err := h.Encrypt(payload)
	require.NoError(t, err)

	plaintext, err := h.Decrypt(nonce, ciphertext)
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal(plaintext, &got))
	assert.Equal(t, payload, got)
}

func TestEncryptFreshNonce(t *testing.T) {
	h, _ := connectedHandshake(t)
	n1, c1, err := h.Encrypt("payload")
	require.NoError(t, err)
	n2, c2, err := h.Encrypt("payload")
	require.NoError(t, err)
	assert.NotEqual(t, n1, n2)
	assert.NotEqual(t, c1, c2)
}

func TestDecryptWrongSecret(t *testing.T) {
	h, _ := connectedHandshake(t)
	nonce, ciphertext, err := h.Encrypt("payload")
	require.NoError(t, err)

	// a second session with a different wallet derives a different secret
	other, _ := connectedHandshake(t)
	_, err = other.Decrypt(nonce, ciphertext)
	assert.ErrorIs(t, err, ErrDecryptionFailure)

	// corrupted ciphertext fails authentication under the right secret too
	ciphertext[0] ^= 0xff
	_, err = h.Decrypt(nonce, ciphertext)
	assert.ErrorIs(t, err, ErrDecryptionFailure)
}

func TestEncryptNotConnected(t *testing.T) {
	h, err := NewHandshake(testConfig)
	require.NoError(t, err)
	_, _, err = h.Encrypt("payload")
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = h.Decrypt([24]byte{}, []byte("junk"))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSignAndSendTransactionURL(t *testing.T) {
	h, w := connectedHandshake(t)
	rawURL, err := h.SignAndSendTransactionURL("3Bxs4h24hBtQy9rw")
	require.NoError(t, err)

	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	assert.Equal(t, "/ul/v1/signAndSendTransaction", u.Path)
	assert.Equal(t, "takes://wallet/onSignAndSendTransaction", u.Query().Get("redirect_link"))

	// the wallet can open the payload with its copy of the shared secret
	secret := w.sharedSecretWith(h.PublicKey())
	nonceRaw, err := base58.Decode(u.Query().Get("nonce"))
	require.NoError(t, err)
	var nonce [24]byte
	copy(nonce[:], nonceRaw)
	data, err := base58.Decode(u.Query().Get("payload"))
	require.NoError(t, err)
	plaintext, ok := box.OpenAfterPrecomputation(nil, data, &nonce, &secret)
	require.True(t, ok)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(plaintext, &payload))
	assert.Equal(t, "3Bxs4h24hBtQy9rw", payload["transaction"])
	assert.Equal(t, w.session, payload["session"])
}

func TestSignAndSendTransactionURLNotConnected(t *testing.T) {
	h, err := NewHandshake(testConfig)
	require.NoError(t, err)
	_, err = h.SignAndSendTransactionURL("3Bxs4h24hBtQy9rw")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestDisconnect(t *testing.T) {
	h, _ := connectedHandshake(t)
	h.Disconnect()
	assert.Equal(t, StateDisconnected, h.State())
	assert.Empty(t, h.Session())
	_, _, err := h.Encrypt("payload")
	assert.ErrorIs(t, err, ErrNotConnected)

	// the process keypair survives the session
	assert.NotEmpty(t, h.PublicKey())
	require.NoError(t, h.InitiateConnect(&fakeOpener{}))
	assert.Equal(t, StateConnecting, h.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "state(9)", fmt.Sprintf("%v", State(9)))
}
