// Package claim models the protocol-level claim artifacts exchanged between
// wallet and attester: claims, signed quotes, and the credential shape the
// wallet submits for attestation.
package claim

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"attester/internal/ctype"
	id "attester/pkg/domain"
	dErrors "attester/pkg/domain-errors"
)

// Contents maps property names to subject-specific values.
type Contents map[string]any

// Claim is an instance of a claim type's fields filled with subject values.
type Claim struct {
	CTypeHash string   `json:"cTypeHash"`
	Owner     id.DID   `json:"owner"`
	Contents  Contents `json:"contents"`
}

// New builds a claim from a claim type and submitted contents, validating
// every property against the schema. Unknown properties and type mismatches
// are invalid input.
func New(ct ctype.CType, contents Contents, owner id.DID) (Claim, error) {
	if len(contents) == 0 {
		return Claim{}, dErrors.New(dErrors.CodeInvalidInput, "claim contents must not be empty")
	}
	for name, value := range contents {
		prop, ok := ct.Property(name)
		if !ok {
			return Claim{}, dErrors.Newf(dErrors.CodeInvalidInput, "property %q is not declared by claim type %s", name, ct.Title)
		}
		if err := checkType(prop, value); err != nil {
			return Claim{}, err
		}
	}
	return Claim{
		CTypeHash: ct.Hash(),
		Owner:     owner,
		Contents:  contents,
	}, nil
}

// Verify re-validates a claim received over the wire against its schema.
func (c Claim) Verify(ct ctype.CType) error {
	if c.CTypeHash != ct.Hash() {
		return dErrors.New(dErrors.CodeInvalidInput, "claim references a different claim type")
	}
	_, err := New(ct, c.Contents, c.Owner)
	return err
}

// RootHash is the deterministic hash the attestation is registered under.
// encoding/json writes map keys in sorted order, so the encoding is canonical.
func (c Claim) RootHash() string {
	payload, err := json.Marshal(c)
	if err != nil {
		// Contents came from JSON, so re-encoding cannot fail.
		panic(fmt.Sprintf("marshal claim: %v", err))
	}
	sum := blake2b.Sum256(payload)
	return "0x" + hex.EncodeToString(sum[:])
}

func checkType(prop ctype.Property, value any) error {
	ok := false
	switch prop.Type {
	case ctype.TypeString:
		_, ok = value.(string)
	case ctype.TypeBoolean:
		_, ok = value.(bool)
	case ctype.TypeNumber:
		// JSON numbers decode as float64.
		_, ok = value.(float64)
	}
	if !ok {
		return dErrors.Newf(dErrors.CodeInvalidInput, "property %q must be of type %s", prop.Name, prop.Type)
	}
	return nil
}
