// Package bitem implements the signed data item and bundle container that
// the scheduler unit schedules, builds, and persists. Encoding is treated
// as a black box by the rest of this module: callers only ever see
// Parse/AsBytes and GetMessage, never the wire format itself.
package bitem

import (
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/permaweb/scheduler-unit/rlp"
)

// Tag is an ordered name/value pair attached to a data item or a bundle.
// Duplicate names are permitted; order is preserved through encode/decode.
type Tag struct {
	Name  string
	Value string
}

// DataItem is a signed envelope: an owner's public key material, an
// optional target process id, an ordered tag vector, opaque data, and a
// signature over the canonical message derived from the other fields.
//
// id is derived, not transmitted: it is recomputed from the signature on
// every parse so that two items with identical wire bytes always report
// the same id.
type DataItem struct {
	Signature []byte
	Owner     []byte
	Target    string
	Tags      []Tag
	Data      []byte

	id string
}

// ErrCodec is returned for any malformed-input condition while parsing or
// encoding a data item or bundle. Callers map it to the Codec error kind.
var ErrCodec = errors.New("bitem: malformed data item")

// New constructs an unsigned DataItem. Signature is left empty until the
// caller signs GetMessage() and assigns the result.
func New(owner []byte, target string, tags []Tag, data []byte) *DataItem {
	return &DataItem{
		Owner:  owner,
		Target: target,
		Tags:   append([]Tag(nil), tags...),
		Data:   data,
	}
}

// Parse decodes wire bytes produced by AsBytes back into a DataItem.
func Parse(raw []byte) (*DataItem, error) {
	var item DataItem
	if err := rlp.DecodeBytes(raw, &item); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	item.id = deriveID(item.Signature)
	return &item, nil
}

// AsBytes returns the deterministic wire encoding of the item.
func (d *DataItem) AsBytes() ([]byte, error) {
	b, err := rlp.EncodeToBytes(d)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	return b, nil
}

// ID returns the digest-derived identifier for this item. It is stable
// once the item carries a signature; an unsigned item's id reflects an
// empty signature and must not be relied upon.
func (d *DataItem) ID() string {
	if d.id == "" {
		d.id = deriveID(d.Signature)
	}
	return d.id
}

// GetMessage returns the canonical pre-signature digest input: the
// message the signer signs and the verifier checks the signature
// against. It never includes the signature field itself.
func (d *DataItem) GetMessage() ([]byte, error) {
	unsigned := &DataItem{Owner: d.Owner, Target: d.Target, Tags: d.Tags, Data: d.Data}
	payload, err := rlp.EncodeToBytes(unsigned)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	sum := blake2b.Sum256(payload)
	return sum[:], nil
}

// deriveID computes the digest-derived id for a signature. An empty
// signature still yields a deterministic (if meaningless) id rather than
// panicking, so callers can construct-then-sign without special-casing.
func deriveID(signature []byte) string {
	sum := blake2b.Sum256(signature)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Bundle is an ordered collection of data items plus bundle-level tags.
// Serialisation is deterministic: the same items in the same order and
// the same tags always produce the same bytes.
type Bundle struct {
	Tags  []Tag
	Items []*DataItem
}

// NewBundle creates an empty bundle carrying the given bundle-level tags.
func NewBundle(tags []Tag) *Bundle {
	return &Bundle{Tags: append([]Tag(nil), tags...)}
}

// AddItem appends a data item to the bundle, preserving insertion order.
func (b *Bundle) AddItem(item *DataItem) {
	b.Items = append(b.Items, item)
}

// wireBundle is the RLP shape of a Bundle: DataItem already stores its
// signature, so the inner items round-trip without extra bookkeeping.
type wireBundle struct {
	Tags  []Tag
	Items []*DataItem
}

// ToBytes returns the deterministic wire encoding of the bundle.
func (b *Bundle) ToBytes() ([]byte, error) {
	wb := wireBundle{Tags: b.Tags, Items: b.Items}
	raw, err := rlp.EncodeToBytes(wb)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	return raw, nil
}

// ParseBundle decodes wire bytes produced by ToBytes back into a Bundle,
// re-deriving each inner item's id.
func ParseBundle(raw []byte) (*Bundle, error) {
	var wb wireBundle
	if err := rlp.DecodeBytes(raw, &wb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	for _, item := range wb.Items {
		item.id = deriveID(item.Signature)
	}
	return &Bundle{Tags: wb.Tags, Items: wb.Items}, nil
}

// Find looks up the first tag with the given name, returning ok=false if
// absent. Duplicate names resolve to the first occurrence, matching the
// order-preserving contract of the tag vector.
func Find(tags []Tag, name string) (string, bool) {
	for _, t := range tags {
		if t.Name == name {
			return t.Value, true
		}
	}
	return "", false
}
