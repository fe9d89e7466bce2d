// Package verifier validates an inbound data item's signature and owner,
// with an optional gateway-backed existence check for tag-referenced
// transactions.
package verifier

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"

	"github.com/permaweb/scheduler-unit/bitem"
	"github.com/permaweb/scheduler-unit/dal"
	"github.com/permaweb/scheduler-unit/pipeline"
)

// Policy gates optional verification behavior that is not required on
// the hot path.
type Policy struct {
	// RequireTxRefCheck, when true, causes Verify to call
	// Gateway.CheckHead for any tag named "Tx-Ref" present on the item,
	// failing verification if the referenced transaction is absent.
	RequireTxRefCheck bool
}

// Verifier checks an inbound data item's signature and owner against
// gateway-visible key material. It is side-effect free and safe to call
// concurrently; no internal state is mutated by Verify.
type Verifier struct {
	gateway dal.Gateway
	policy  Policy
}

// New constructs a Verifier backed by the given gateway.
func New(gateway dal.Gateway, policy Policy) *Verifier {
	return &Verifier{gateway: gateway, policy: policy}
}

// Verify recomputes the canonical pre-signature digest via the codec and
// checks it against the item's signature under its owner key. When the
// policy requires it, it additionally consults the gateway for any
// referenced transaction's existence.
func (v *Verifier) Verify(ctx context.Context, item *bitem.DataItem) error {
	if len(item.Owner) == 0 {
		return pipeline.New(pipeline.Verification, "missing owner key material")
	}
	if len(item.Signature) == 0 {
		return pipeline.New(pipeline.Verification, "missing signature")
	}

	message, err := item.GetMessage()
	if err != nil {
		return pipeline.Wrap(pipeline.Codec, "compute canonical message", err)
	}

	pub, err := x509.ParsePKCS1PublicKey(item.Owner)
	if err != nil {
		return pipeline.Wrap(pipeline.Verification, "parse owner public key", err)
	}

	digest := sha256.Sum256(message)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], item.Signature); err != nil {
		return pipeline.Wrap(pipeline.Verification, "signature check failed", err)
	}

	if v.policy.RequireTxRefCheck {
		if txRef, ok := bitem.Find(item.Tags, "Tx-Ref"); ok {
			exists, err := v.gateway.CheckHead(ctx, txRef)
			if err != nil {
				return pipeline.Wrap(pipeline.GatewayUnavailable, "check_head failed", err)
			}
			if !exists {
				return pipeline.New(pipeline.Verification, "referenced transaction not found: "+txRef)
			}
		}
	}

	return nil
}
