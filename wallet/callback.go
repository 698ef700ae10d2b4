package wallet

import (
	"net/url"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"
)

// Event is the decoded outcome of one wallet callback. Exactly one concrete
// shape is produced per callback; anything that does not decode cleanly is a
// failure, never a partial event.
type Event interface {
	isWalletEvent()
}

// ConnectedEvent reports a completed connect handshake.
type ConnectedEvent struct {
	WalletPublicKey string
	// Duplicate is set when a connect callback arrived while a session was
	// already established. The existing session is kept untouched.
	Duplicate bool
}

// DisconnectedEvent reports that the wallet ended the session.
type DisconnectedEvent struct{}

// TransactionEvent reports a signed-and-sent transaction.
type TransactionEvent struct {
	Signature string
}

func (ConnectedEvent) isWalletEvent()    {}
func (DisconnectedEvent) isWalletEvent() {}
func (TransactionEvent) isWalletEvent()  {}

// HandleCallback parses a deep link delivered by the host platform and
// applies it to the handshake state machine. Cryptographic failures abort
// the current attempt and reset to Idle; the user has to re-initiate rather
// than the component retrying on possibly stale keys.
func (h *Handshake) HandleCallback(rawURL string) (Event, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, ErrMalformedCallback
	}
	q := u.Query()

	if code := q.Get("errorCode"); code != "" {
		remoteErr := &RemoteError{Code: code, Message: q.Get("errorMessage")}
		h.logger.WithFields(logrus.Fields{
			"code":    code,
			"message": remoteErr.Message,
		}).Error("Wallet reported an error")
		h.mu.Lock()
		h.clearSessionLocked()
		h.state = StateIdle
		h.mu.Unlock()
		return nil, remoteErr
	}

	switch {
	case strings.Contains(u.Path, "onConnect"):
		return h.handleConnectCallback(q)
	case strings.Contains(u.Path, "onDisconnect"):
		h.mu.Lock()
		h.clearSessionLocked()
		h.state = StateDisconnected
		h.mu.Unlock()
		return DisconnectedEvent{}, nil
	case strings.Contains(u.Path, "onSignAndSendTransaction"):
		sig := q.Get("signature")
		if sig == "" {
			return nil, ErrMalformedCallback
		}
		return TransactionEvent{Signature: sig}, nil
	default:
		return nil, ErrMalformedCallback
	}
}

func (h *Handshake) handleConnectCallback(q url.Values) (Event, error) {
	encKey := q.Get("phantom_encryption_public_key")
	nonceB58 := q.Get("nonce")
	dataB58 := q.Get("data")
	if encKey == "" || nonceB58 == "" || dataB58 == "" {
		// Partially populated connect callback. The pending connect stays
		// pending; the wallet may still deliver the real one.
		return nil, ErrMalformedCallback
	}

	h.mu.Lock()
	if h.state == StateConnected {
		// A duplicate or delayed connect callback must not clobber the
		// established session mid-transaction. Ignore it.
		existing := h.walletPublicKey
		h.mu.Unlock()
		h.logger.Warn("Ignoring connect callback while already connected")
		return ConnectedEvent{WalletPublicKey: existing, Duplicate: true}, nil
	}
	h.mu.Unlock()

	nonce, err := decodeNonce(nonceB58)
	if err != nil {
		return nil, h.failConnect()
	}
	data, err := base58.Decode(dataB58)
	if err != nil {
		return nil, h.failConnect()
	}
	if err := h.completeConnect(encKey, nonce, data); err != nil {
		return nil, h.failConnect()
	}
	return ConnectedEvent{WalletPublicKey: h.WalletPublicKey()}, nil
}

// failConnect aborts the attempt after a decode or decrypt failure.
func (h *Handshake) failConnect() error {
	h.mu.Lock()
	h.clearSessionLocked()
	h.state = StateIdle
	h.mu.Unlock()
	return ErrDecryptionFailure
}

func decodeNonce(s string) ([24]byte, error) {
	var nonce [24]byte
	raw, err := base58.Decode(s)
	if err != nil {
		return nonce, err
	}
	if len(raw) != len(nonce) {
		return nonce, ErrDecryptionFailure
	}
	copy(nonce[:], raw)
	return nonce, nil
}
