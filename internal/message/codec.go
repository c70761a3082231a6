package message

import (
	"fmt"

	"attester/internal/keys"
	dErrors "attester/pkg/domain-errors"
)

// Envelope is the encrypted wire container for one protocol message. Only the
// holder of the receiver's private keyAgreement key can open it; tampering
// surfaces as a decryption failure, never as corrupted plaintext.
type Envelope struct {
	Ciphertext     []byte      `json:"ciphertext"`
	Nonce          []byte      `json:"nonce"`
	SenderKeyURI   keys.KeyURI `json:"senderKeyUri"`
	ReceiverKeyURI keys.KeyURI `json:"receiverKeyUri"`
}

// Codec encrypts outbound bodies and decrypts inbound envelopes using the
// attester's keyAgreement key. Peer keys come out of the key URIs on the
// envelope, which are self-certifying.
type Codec struct {
	keyring *keys.Keyring
}

func NewCodec(keyring *keys.Keyring) *Codec {
	return &Codec{keyring: keyring}
}

// EncryptBody encodes and seals a body for the peer addressed by
// recipientKeyURI.
func (c *Codec) EncryptBody(body Body, recipientKeyURI keys.KeyURI) (Envelope, error) {
	peerPub, err := peerPublicKey(recipientKeyURI)
	if err != nil {
		return Envelope{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid recipient key URI")
	}

	plaintext, err := EncodeBody(body)
	if err != nil {
		return Envelope{}, dErrors.Wrap(err, dErrors.CodeInternal, "encode message body")
	}

	sealed, err := c.keyring.Encrypt(plaintext, peerPub)
	if err != nil {
		return Envelope{}, dErrors.Wrap(err, dErrors.CodeInternal, "encrypt message body")
	}

	return Envelope{
		Ciphertext:     sealed.Ciphertext,
		Nonce:          sealed.Nonce[:],
		SenderKeyURI:   sealed.KeyURI,
		ReceiverKeyURI: recipientKeyURI,
	}, nil
}

// DecryptBody opens an inbound envelope and returns its validated body. MAC
// or key mismatches yield a crypto_failure; recognized-but-broken bodies and
// unknown types yield bad_request so the boundary can distinguish them.
func (c *Codec) DecryptBody(envelope Envelope) (Body, error) {
	plaintext, err := c.decrypt(envelope)
	if err != nil {
		return nil, err
	}

	body, err := DecodeBody(plaintext)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid message body")
	}
	return body, nil
}

func (c *Codec) decrypt(envelope Envelope) ([]byte, error) {
	if len(envelope.Nonce) != keys.NonceSize {
		return nil, dErrors.Newf(dErrors.CodeCryptoFailure, "nonce must be %d bytes", keys.NonceSize)
	}
	if envelope.ReceiverKeyURI != c.keyring.EncryptionKeyURI() {
		return nil, dErrors.New(dErrors.CodeCryptoFailure, "envelope is not addressed to this attester")
	}

	peerPub, err := peerPublicKey(envelope.SenderKeyURI)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeCryptoFailure, "invalid sender key URI")
	}

	var nonce [keys.NonceSize]byte
	copy(nonce[:], envelope.Nonce)

	plaintext, err := c.keyring.Decrypt(envelope.Ciphertext, nonce, peerPub)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeCryptoFailure, "failed to decrypt envelope")
	}
	return plaintext, nil
}

func peerPublicKey(uri keys.KeyURI) ([32]byte, error) {
	var pub [32]byte
	raw, err := uri.PublicKey()
	if err != nil {
		return pub, err
	}
	if len(raw) != 32 {
		return pub, fmt.Errorf("encryption key must be 32 bytes, got %d", len(raw))
	}
	copy(pub[:], raw)
	return pub, nil
}
