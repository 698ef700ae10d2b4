package wallet

import (
	"net/url"

	"github.com/mr-tron/base58"
)

type signAndSendPayload struct {
	// Transaction is the base58 encoded serialized Solana transaction. How
	// the transaction itself is built (swap route, token accounts) is the
	// execution layer's business.
	Transaction string `json:"transaction"`
	Session     string `json:"session"`
}

type disconnectPayload struct {
	Session string `json:"session"`
}

// SignAndSendTransactionURL builds the universal link asking the wallet to
// sign and broadcast a serialized transaction. The result comes back on the
// onSignAndSendTransaction callback as a TransactionEvent.
func (h *Handshake) SignAndSendTransactionURL(serializedTx string) (string, error) {
	session := h.Session()
	if session == "" {
		return "", ErrNotConnected
	}
	nonce, ciphertext, err := h.Encrypt(signAndSendPayload{
		Transaction: serializedTx,
		Session:     session,
	})
	if err != nil {
		return "", err
	}
	return h.buildMethodURL("signAndSendTransaction", "/onSignAndSendTransaction", nonce, ciphertext), nil
}

// DisconnectURL builds the universal link telling the wallet to end the
// session on its side. Local state is cleared separately via Disconnect.
func (h *Handshake) DisconnectURL() (string, error) {
	session := h.Session()
	if session == "" {
		return "", ErrNotConnected
	}
	nonce, ciphertext, err := h.Encrypt(disconnectPayload{Session: session})
	if err != nil {
		return "", err
	}
	return h.buildMethodURL("disconnect", "/onDisconnect", nonce, ciphertext), nil
}

func (h *Handshake) buildMethodURL(method, callbackPath string, nonce [24]byte, ciphertext []byte) string {
	q := url.Values{}
	q.Set("dapp_encryption_public_key", h.PublicKey())
	q.Set("nonce", base58.Encode(nonce[:]))
	q.Set("redirect_link", h.cfg.RedirectBase+callbackPath)
	q.Set("payload", base58.Encode(ciphertext))
	u := url.URL{
		Scheme:   "https",
		Host:     h.cfg.WalletHost,
		Path:     "/ul/v1/" + method,
		RawQuery: q.Encode(),
	}
	return u.String()
}
