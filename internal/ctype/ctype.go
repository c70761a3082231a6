// Package ctype defines the closed set of claim types the attester issues
// credentials for, together with their schemas and the static cost table. The
// set is fixed at deploy time; membership checks go through ParseKey.
package ctype

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"

	dErrors "attester/pkg/domain-errors"
)

// Key names a supported claim type.
type Key string

const (
	KeyEmail   Key = "email"
	KeyTwitter Key = "twitter"
)

// PropertyType is the primitive type of a claim property.
type PropertyType string

const (
	TypeString  PropertyType = "string"
	TypeBoolean PropertyType = "boolean"
	TypeNumber  PropertyType = "number"
)

// Property is one named, typed field of a claim type schema.
type Property struct {
	Name string       `json:"name"`
	Type PropertyType `json:"type"`
}

// CType is a claim type schema. Instances are immutable; the ID is derived
// from the schema content so identical schemas always share an identifier.
type CType struct {
	ID         string     `json:"$id"`
	Title      string     `json:"title"`
	Properties []Property `json:"properties"`
}

// Supported is the closed supported set, keyed by the public claim type key.
var Supported = map[Key]CType{
	KeyEmail: newCType("Email", []Property{
		{Name: "Email", Type: TypeString},
	}),
	KeyTwitter: newCType("Twitter", []Property{
		{Name: "Twitter", Type: TypeString},
	}),
}

// Cost is the static issuance price per claim type.
var Cost = map[Key]int{
	KeyEmail:   2,
	KeyTwitter: 3,
}

// Currency all quotes are denominated in.
const Currency = "KILT"

// ParseKey validates external input against the supported set.
func ParseKey(s string) (Key, error) {
	k := Key(s)
	if _, ok := Supported[k]; !ok {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unsupported claim type %q", s)
	}
	return k, nil
}

// ByHash finds a supported claim type by its content-derived hash. Returns
// false when the hash belongs to no supported schema.
func ByHash(hash string) (CType, bool) {
	for _, ct := range Supported {
		if ct.Hash() == hash {
			return ct, true
		}
	}
	return CType{}, false
}

// Hash is the bare content hash of the schema, without the id scheme prefix.
func (c CType) Hash() string {
	return c.ID[len("ctype:"):]
}

// Property looks up a schema property by name.
func (c CType) Property(name string) (Property, bool) {
	for _, p := range c.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

func newCType(title string, props []Property) CType {
	payload, err := json.Marshal(struct {
		Title      string     `json:"title"`
		Properties []Property `json:"properties"`
	}{Title: title, Properties: props})
	if err != nil {
		panic(fmt.Sprintf("marshal ctype schema %q: %v", title, err))
	}
	sum := blake2b.Sum256(payload)
	return CType{
		ID:         "ctype:0x" + hex.EncodeToString(sum[:]),
		Title:      title,
		Properties: props,
	}
}
