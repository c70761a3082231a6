// Package message implements the encrypted protocol message layer: the wire
// envelope, the closed set of message body types, and body validation.
package message

import (
	"encoding/json"
	"errors"
	"fmt"

	"attester/internal/claim"
	"attester/internal/ctype"
)

// Type discriminates protocol message bodies. The set is closed; DecodeBody
// matches it exhaustively so a new type is a compile-visible update there.
type Type string

const (
	TypeRequestTerms       Type = "request-terms"
	TypeSubmitTerms        Type = "submit-terms"
	TypeRejectTerms        Type = "reject-terms"
	TypeRequestAttestation Type = "request-attestation"
	TypeSubmitAttestation  Type = "submit-attestation"
	TypeReject             Type = "reject"
	TypeRequestPayment     Type = "request-payment"
	TypeConfirmPayment     Type = "confirm-payment"
)

var (
	// ErrUnrecognizedMessageType marks a body whose type is outside the
	// closed set.
	ErrUnrecognizedMessageType = errors.New("unrecognized message type")

	// ErrMalformedBody marks a body of a known type missing required fields
	// or carrying structurally invalid ones.
	ErrMalformedBody = errors.New("malformed message body")
)

// Body is one protocol message body. Implementations form a closed sum over
// the Type constants.
type Body interface {
	MessageType() Type
}

// RequestTerms asks the attester for terms for a claim the wallet drafted.
type RequestTerms struct {
	Claim claim.Claim `json:"claim"`
}

func (RequestTerms) MessageType() Type { return TypeRequestTerms }

// SubmitTerms is the attester's offer: the drafted claim, a signed quote, and
// the schemas needed to render it.
type SubmitTerms struct {
	Claim         claim.Claim        `json:"claim"`
	Legitimations []claim.Credential `json:"legitimations"`
	Quote         *claim.SignedQuote `json:"quote,omitempty"`
	CTypes        []ctype.CType      `json:"cTypes,omitempty"`
}

func (SubmitTerms) MessageType() Type { return TypeSubmitTerms }

// RejectTerms is the wallet declining an offer. A legitimate outcome, not an
// error.
type RejectTerms struct {
	Message string `json:"message,omitempty"`
}

func (RejectTerms) MessageType() Type { return TypeRejectTerms }

// RequestAttestation is the wallet submitting a credential for attestation,
// optionally echoing the agreed quote.
type RequestAttestation struct {
	Credential claim.Credential      `json:"credential"`
	Quote      *claim.QuoteAgreement `json:"quote,omitempty"`
}

func (RequestAttestation) MessageType() Type { return TypeRequestAttestation }

// SubmitAttestation is the attester announcing a finished attestation.
type SubmitAttestation struct {
	ClaimHash string `json:"claimHash"`
	CTypeHash string `json:"cTypeHash"`
}

func (SubmitAttestation) MessageType() Type { return TypeSubmitAttestation }

// Reject terminates the flow from either side.
type Reject struct {
	Message string `json:"message,omitempty"`
}

func (Reject) MessageType() Type { return TypeReject }

// RequestPayment asks the wallet to pay for a staged credential.
type RequestPayment struct {
	ClaimHash string `json:"claimHash"`
}

func (RequestPayment) MessageType() Type { return TypeRequestPayment }

// ConfirmPayment reports a settled payment back to the attester.
type ConfirmPayment struct {
	ClaimHash string `json:"claimHash"`
	TxHash    string `json:"txHash"`
}

func (ConfirmPayment) MessageType() Type { return TypeConfirmPayment }

// wireBody is the JSON shape of every body: a type discriminator plus a
// content payload whose shape depends on the type.
type wireBody struct {
	Type    Type            `json:"type"`
	Content json.RawMessage `json:"content"`
}

// EncodeBody serializes a body into its wire form.
func EncodeBody(body Body) ([]byte, error) {
	content, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s content: %w", body.MessageType(), err)
	}
	return json.Marshal(wireBody{Type: body.MessageType(), Content: content})
}

// DecodeBody parses and validates a decrypted body. The type switch covers
// the full closed set; anything else is ErrUnrecognizedMessageType. A known
// type with missing or invalid required fields is ErrMalformedBody.
func DecodeBody(raw []byte) (Body, error) {
	var wire wireBody
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}

	var body Body
	switch wire.Type {
	case TypeRequestTerms:
		body = &RequestTerms{}
	case TypeSubmitTerms:
		body = &SubmitTerms{}
	case TypeRejectTerms:
		body = &RejectTerms{}
	case TypeRequestAttestation:
		body = &RequestAttestation{}
	case TypeSubmitAttestation:
		body = &SubmitAttestation{}
	case TypeReject:
		body = &Reject{}
	case TypeRequestPayment:
		body = &RequestPayment{}
	case TypeConfirmPayment:
		body = &ConfirmPayment{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnrecognizedMessageType, wire.Type)
	}

	if len(wire.Content) > 0 {
		if err := json.Unmarshal(wire.Content, body); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}
	}

	if err := validate(body); err != nil {
		return nil, err
	}
	return body, nil
}

// validate enforces the per-type required fields before a body is trusted.
func validate(body Body) error {
	switch b := body.(type) {
	case *RequestTerms:
		if len(b.Claim.Contents) == 0 {
			return fmt.Errorf("%w: request-terms requires claim contents", ErrMalformedBody)
		}
	case *SubmitTerms:
		if len(b.Claim.Contents) == 0 || b.Claim.CTypeHash == "" {
			return fmt.Errorf("%w: submit-terms requires a claim", ErrMalformedBody)
		}
	case *RequestAttestation:
		if b.Credential.RootHash == "" || len(b.Credential.Claim.Contents) == 0 {
			return fmt.Errorf("%w: request-attestation requires a credential", ErrMalformedBody)
		}
	case *SubmitAttestation:
		if b.ClaimHash == "" || b.CTypeHash == "" {
			return fmt.Errorf("%w: submit-attestation requires claim and ctype hashes", ErrMalformedBody)
		}
	case *RequestPayment:
		if b.ClaimHash == "" {
			return fmt.Errorf("%w: request-payment requires a claim hash", ErrMalformedBody)
		}
	case *ConfirmPayment:
		if b.ClaimHash == "" || b.TxHash == "" {
			return fmt.Errorf("%w: confirm-payment requires claim and tx hashes", ErrMalformedBody)
		}
	case *RejectTerms, *Reject:
		// No required fields; the type alone carries the meaning.
	}
	return nil
}

// IsRejection reports whether a body is one of the rejection types that
// terminate the flow as a negotiated outcome.
func IsRejection(body Body) bool {
	switch body.(type) {
	case *Reject, *RejectTerms:
		return true
	default:
		return false
	}
}
