package claim

import (
	"encoding/json"
	"fmt"
	"time"

	id "attester/pkg/domain"
)

// Cost breaks an issuance price into net, gross, and tax components.
type Cost struct {
	Net   int            `json:"net"`
	Gross int            `json:"gross"`
	Tax   map[string]int `json:"tax"`
}

// Quote is the attester's statement of price and terms for issuing a
// credential of one claim type. Timeframe bounds how long the client may act
// on it.
type Quote struct {
	AttesterDid        id.DID    `json:"attesterDid"`
	CTypeHash          string    `json:"cTypeHash"`
	Cost               Cost      `json:"cost"`
	Currency           string    `json:"currency"`
	Timeframe          time.Time `json:"timeframe"`
	TermsAndConditions string    `json:"termsAndConditions"`
}

// SignedQuote carries a quote together with the attester's assertion-key
// signature over its canonical encoding.
type SignedQuote struct {
	Quote
	AttesterSignature Signature `json:"attesterSignature"`
}

// QuoteAgreement is a signed quote the claimer countersigned, binding it to
// the root hash of the claim being attested.
type QuoteAgreement struct {
	SignedQuote
	ClaimerSignature Signature `json:"claimerSignature"`
	RootHash         string    `json:"rootHash"`
}

// Signature is a detached signature plus the URI of the key that made it.
type Signature struct {
	Signature []byte `json:"signature"`
	KeyURI    string `json:"keyUri"`
}

// SigningPayload is the canonical byte encoding the quote signature covers.
func (q Quote) SigningPayload() []byte {
	payload, err := json.Marshal(q)
	if err != nil {
		panic(fmt.Sprintf("marshal quote: %v", err))
	}
	return payload
}

// Expired reports whether the quote's validity window has passed.
func (q Quote) Expired(now time.Time) bool {
	return now.After(q.Timeframe)
}
