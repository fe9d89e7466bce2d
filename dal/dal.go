// Package dal (data access layer) declares the external collaborator
// contracts the scheduling and bundling core depends on but does not
// implement itself: the gateway, the signer, the wallet, the uploader,
// and the durable store. Concrete implementations live in the gateway,
// signer, uploader, and store packages; the core only ever depends on
// these interfaces.
package dal

import (
	"context"

	"github.com/permaweb/scheduler-unit/bitem"
)

// NetworkInfo is the gateway's view of current chain state relevant to
// bundling: the height tag attached to every built bundle.
type NetworkInfo struct {
	Height  string
	Current string
}

// Gateway resolves network state and, optionally, transaction existence
// for tag-referenced checks.
type Gateway interface {
	NetworkInfo(ctx context.Context) (NetworkInfo, error)
	CheckHead(ctx context.Context, txID string) (bool, error)
}

// Signer produces signatures over a pre-computed message digest and
// exposes the public key material used as the outer data item's owner.
type Signer interface {
	PublicKey() []byte
	Sign(ctx context.Context, message []byte) ([]byte, error)
}

// Wallet exposes the scheduler unit's own address, used by the
// supplemental health endpoint.
type Wallet interface {
	Address() (string, error)
}

// UploadReceipt is returned by a successful upload.
type UploadReceipt struct {
	ID   string
	Size int
}

// Uploader persists built bundle binaries to durable object storage.
// Upload must be idempotent by content hash: uploading the same bytes
// twice succeeds both times and settles on the same receipt ID.
type Uploader interface {
	Upload(ctx context.Context, binary []byte) (UploadReceipt, error)
}

// ScheduleRecord is the durable form of a process's schedule cursor, as
// persisted by and loaded from the store.
type ScheduleRecord struct {
	ProcessID string
	Epoch     string
	Nonce     uint64
	HashChain string
	Timestamp uint64
}

// DataStore persists built bundles and their inner items, and is the
// authoritative source for the latest schedule cursor of a process.
type DataStore interface {
	SaveMessage(ctx context.Context, bundle *bitem.Bundle, binary []byte, schedule ScheduleRecord) error
	SaveProcess(ctx context.Context, bundle *bitem.Bundle, binary []byte, schedule ScheduleRecord) error

	GetMessage(ctx context.Context, id string) ([]byte, error)
	GetProcess(ctx context.Context, id string) ([]byte, error)
	GetMessages(ctx context.Context, processID string, from, to uint64, limit int) ([][]byte, error)

	// GetSchedule returns the latest persisted schedule cursor for a
	// process, and ok=false if the process has never been written.
	GetSchedule(ctx context.Context, processID string) (ScheduleRecord, bool, error)
}
