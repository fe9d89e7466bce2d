// Package builder parses an inbound data item, verifies it, attaches
// schedule tags, assembles the outer bundle, and signs it. Message and
// process-creation builds differ only in their tag set, so both are one
// parameterised operation selected by a Kind.
package builder

import (
	"context"
	"strconv"

	"github.com/permaweb/scheduler-unit/bitem"
	"github.com/permaweb/scheduler-unit/dal"
	"github.com/permaweb/scheduler-unit/log"
	"github.com/permaweb/scheduler-unit/pipeline"
	"github.com/permaweb/scheduler-unit/scheduler"
	"github.com/permaweb/scheduler-unit/verifier"
)

const (
	bundleFormat  = "binary"
	bundleVersion = "2.0.0"
)

// Kind selects which tag set Build attaches to the outer bundle.
type Kind int

const (
	// Message builds for an item targeting an existing process: the
	// full schedule tag set (Process/Epoch/Nonce/Hash-Chain) is attached.
	Message Kind = iota
	// Process builds for a process-creation item: no schedule tags are
	// attached, since the process is not yet in any sequence.
	Process
)

// Result is the outcome of a successful build.
type Result struct {
	Binary []byte
	Bundle *bitem.Bundle
}

// Builder parses, verifies, and assembles signed outer bundles.
type Builder struct {
	verifier *verifier.Verifier
	gateway  dal.Gateway
	signer   dal.Signer
	logger   *log.Logger
}

// New constructs a Builder from its collaborators.
func New(v *verifier.Verifier, gateway dal.Gateway, signer dal.Signer, logger *log.Logger) *Builder {
	return &Builder{verifier: v, gateway: gateway, signer: signer, logger: logger}
}

// Parse decodes inbound bytes into a DataItem, failing fast on a codec
// error.
func (b *Builder) Parse(raw []byte) (*bitem.DataItem, error) {
	item, err := bitem.Parse(raw)
	if err != nil {
		return nil, pipeline.Wrap(pipeline.Codec, "parse inbound data item", err)
	}
	return item, nil
}

// Build runs the common algorithm: parse, verify, fetch network height,
// construct the tag vector appropriate to kind, assemble a bundle around
// the single inner item, and sign an outer data item wrapping it.
func (b *Builder) Build(ctx context.Context, raw []byte, kind Kind, snapshot scheduler.Snapshot, processID string) (Result, error) {
	item, err := b.Parse(raw)
	if err != nil {
		return Result{}, err
	}

	b.logger.Info("attempting to verify data item", "id", item.ID(), "target", item.Target)
	if err := b.verifier.Verify(ctx, item); err != nil {
		return Result{}, err
	}
	b.logger.Info("verified data item", "id", item.ID())

	info, err := b.gateway.NetworkInfo(ctx)
	if err != nil {
		return Result{}, pipeline.Wrap(pipeline.GatewayUnavailable, "fetch network info", err)
	}

	tags := tagsFor(kind, snapshot, processID, info.Height)
	b.logger.Info("generated tags", "count", len(tags))

	bundle := bitem.NewBundle(tags)
	bundle.AddItem(item)
	buffer, err := bundle.ToBytes()
	if err != nil {
		return Result{}, pipeline.Wrap(pipeline.Codec, "serialise bundle", err)
	}

	outer := bitem.New(b.signer.PublicKey(), "", tags, buffer)
	message, err := outer.GetMessage()
	if err != nil {
		return Result{}, pipeline.Wrap(pipeline.Codec, "compute outer message", err)
	}

	signature, err := b.signer.Sign(ctx, message)
	if err != nil {
		return Result{}, pipeline.Wrap(pipeline.Internal, "sign outer data item", err)
	}
	outer.Signature = signature
	b.logger.Info("signature succeeded", "id", outer.ID())

	binary, err := outer.AsBytes()
	if err != nil {
		return Result{}, pipeline.Wrap(pipeline.Codec, "encode outer data item", err)
	}

	return Result{Binary: binary, Bundle: bundle}, nil
}

// tagsFor constructs the bundle-level tag vector for the given kind.
// Order follows the external contract for debuggability, not semantics.
func tagsFor(kind Kind, snapshot scheduler.Snapshot, processID, height string) []bitem.Tag {
	base := []bitem.Tag{
		{Name: "Bundle-Format", Value: bundleFormat},
		{Name: "Bundle-Version", Value: bundleVersion},
	}

	if kind == Process {
		return append(base,
			bitem.Tag{Name: "Block-Height", Value: height},
			bitem.Tag{Name: "Timestamp", Value: strconv.FormatUint(snapshot.Timestamp, 10)},
		)
	}

	return append(base,
		bitem.Tag{Name: "Process", Value: processID},
		bitem.Tag{Name: "Epoch", Value: snapshot.Epoch},
		bitem.Tag{Name: "Nonce", Value: strconv.FormatUint(snapshot.Nonce, 10)},
		bitem.Tag{Name: "Hash-Chain", Value: snapshot.HashChain},
		bitem.Tag{Name: "Block-Height", Value: height},
		bitem.Tag{Name: "Timestamp", Value: strconv.FormatUint(snapshot.Timestamp, 10)},
	)
}
