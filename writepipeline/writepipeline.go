// Package writepipeline is the single orchestrated write path binding
// the builder and the scheduler under one locking discipline so
// ordering, hash-chaining, and durability compose correctly under
// concurrency and partial failure.
package writepipeline

import (
	"context"
	"time"

	"github.com/permaweb/scheduler-unit/bitem"
	"github.com/permaweb/scheduler-unit/builder"
	"github.com/permaweb/scheduler-unit/dal"
	"github.com/permaweb/scheduler-unit/log"
	"github.com/permaweb/scheduler-unit/metrics"
	"github.com/permaweb/scheduler-unit/pipeline"
	"github.com/permaweb/scheduler-unit/scheduler"
)

// Result is the user-visible response to a successful write.
type Result struct {
	Timestamp uint64
	ID        string
}

// Pipeline orchestrates classify, lock, advance, build, upload, persist,
// release for a single inbound write.
type Pipeline struct {
	builder   *builder.Builder
	scheduler *scheduler.Scheduler
	store     dal.DataStore
	uploader  dal.Uploader
	logger    *log.Logger
	epoch     string
	metrics   *metrics.Collectors
}

// New constructs a Pipeline from its collaborators. epoch is the opaque,
// externally supplied label attached to every schedule advance; this
// core never invents or rolls it over. metrics may be nil, in which case
// writes are not instrumented.
func New(b *builder.Builder, s *scheduler.Scheduler, store dal.DataStore, uploader dal.Uploader, logger *log.Logger, epoch string, mc *metrics.Collectors) *Pipeline {
	return &Pipeline{builder: b, scheduler: s, store: store, uploader: uploader, logger: logger, epoch: epoch, metrics: mc}
}

// classify inspects the inner item's tags and returns the build kind and
// the scheduler key: the item's own id for a process creation, or its
// target for a message.
func classify(item *bitem.DataItem) (builder.Kind, string, error) {
	if _, ok := bitem.Find(item.Tags, "Data-Protocol"); !ok {
		return 0, "", pipeline.New(pipeline.Classification, "missing Data-Protocol tag")
	}

	typ, ok := bitem.Find(item.Tags, "Type")
	if !ok {
		return 0, "", pipeline.New(pipeline.Classification, "missing Type tag")
	}

	switch typ {
	case "Process":
		if _, ok := bitem.Find(item.Tags, "Module"); !ok {
			return 0, "", pipeline.New(pipeline.Classification, "process item missing Module tag")
		}
		if _, ok := bitem.Find(item.Tags, "Scheduler"); !ok {
			return 0, "", pipeline.New(pipeline.Classification, "process item missing Scheduler tag")
		}
		return builder.Process, item.ID(), nil
	case "Message":
		if item.Target == "" {
			return 0, "", pipeline.New(pipeline.Classification, "message item missing target")
		}
		return builder.Message, item.Target, nil
	default:
		return 0, "", pipeline.New(pipeline.Classification, "unrecognised Type tag value: "+typ)
	}
}

// Write runs the full classify->lock->advance->build->upload->persist->
// release sequence for one inbound item and returns its user-visible
// response. Any failure aborts before commit: the in-memory schedule
// cursor for the target process is left untouched, so a retry re-derives
// the same snapshot and both the upload and the persist are safe to
// repeat.
func (p *Pipeline) Write(ctx context.Context, raw []byte) (result Result, err error) {
	started := time.Now()
	kindLabel := "unknown"
	defer func() {
		metrics.WriteLatencyMS.Observe(float64(time.Since(started).Milliseconds()))
		if err != nil {
			metrics.WritesRejected.Inc()
		} else {
			metrics.WritesAccepted.Inc()
		}

		if p.metrics == nil {
			return
		}
		outcome := "ok"
		if err != nil {
			outcome = errorOutcome(err)
		}
		p.metrics.ObserveWrite(kindLabel, outcome, time.Since(started))
	}()

	item, err := p.builder.Parse(raw)
	if err != nil {
		return Result{}, err
	}

	kind, key, err := classify(item)
	if err != nil {
		return Result{}, err
	}
	if kind == builder.Process {
		kindLabel = "process"
	} else {
		kindLabel = "message"
	}

	handle, err := p.scheduler.Acquire(ctx, key)
	if err != nil {
		return Result{}, err
	}
	defer handle.Release()

	creation := kind == builder.Process
	if !creation && !handle.Found() {
		return Result{}, pipeline.New(pipeline.Classification, "unknown process: "+key)
	}

	state := handle.State()
	snapshot, err := scheduler.NextSnapshot(state, key, []byte(item.ID()), creation, p.epoch)
	if err != nil {
		return Result{}, err
	}

	built, err := p.builder.Build(ctx, raw, kind, snapshot, key)
	if err != nil {
		return Result{}, err
	}

	if _, err := p.uploader.Upload(ctx, built.Binary); err != nil {
		return Result{}, pipeline.Wrap(pipeline.UploadFailed, "upload bundle binary", err)
	}

	record := dal.ScheduleRecord{
		ProcessID: key,
		Epoch:     snapshot.Epoch,
		Nonce:     snapshot.Nonce,
		HashChain: snapshot.HashChain,
		Timestamp: snapshot.Timestamp,
	}

	if creation {
		err = p.store.SaveProcess(ctx, built.Bundle, built.Binary, record)
	} else {
		err = p.store.SaveMessage(ctx, built.Bundle, built.Binary, record)
	}
	if err != nil {
		return Result{}, pipeline.Wrap(pipeline.PersistFailed, "persist bundle", err)
	}

	handle.Commit(snapshot)
	metrics.ScheduleAdvances.Inc()
	p.logger.Info("write committed", "process", key, "nonce", snapshot.Nonce, "id", item.ID())
	if p.metrics != nil {
		p.metrics.SetLastNonce(key, snapshot.Nonce)
	}

	return Result{Timestamp: scheduler.NowMS(), ID: item.ID()}, nil
}

func errorOutcome(err error) string {
	if kind, ok := pipeline.KindOf(err); ok {
		return kind.String()
	}
	return "internal"
}
