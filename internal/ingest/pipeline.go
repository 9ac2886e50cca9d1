// Package ingest drives the end-to-end pipeline: parse each raw activity
// entry, extract entities/relationships, write vertices/edges, and fold the
// resulting vertex ids into the witness-complex builder, with periodic
// checkpointing so a long run can resume after an interruption.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"simplexkg/internal/activity"
	"simplexkg/internal/checkpoint"
	"simplexkg/internal/extractor"
	"simplexkg/internal/logging"
	"simplexkg/internal/store"
	"simplexkg/internal/witness"
)

const checkpointEvery = 10

// Config configures one pipeline run.
type Config struct {
	InputPath      string
	UserID         string
	Limit          int // 0 means no limit
	Delay          time.Duration
	CheckpointPath string
	Resume         bool
}

// Pipeline wires together the knowledge store, extractor, and witness
// builder for one ingest run.
type Pipeline struct {
	cfg       Config
	knowledge *store.KnowledgeStore
	extractor extractor.Extractor
	builder   *witness.Builder
}

// New constructs a Pipeline. tree is used both for knowledge-store access
// and for the witness builder's simplex inserts, matching the single
// database connection the original pipeline shares across both roles.
func New(cfg Config, tree *store.Store, ext extractor.Extractor, windowMinutes int) (*Pipeline, error) {
	ks, err := store.NewKnowledgeStore(tree, cfg.UserID, ext)
	if err != nil {
		return nil, fmt.Errorf("initialize knowledge store: %w", err)
	}
	return &Pipeline{
		cfg:       cfg,
		knowledge: ks,
		extractor: ext,
		builder:   witness.New(tree, cfg.UserID, windowMinutes),
	}, nil
}

// Summary reports what a Run accomplished.
type Summary struct {
	TotalEntries        int
	ProcessedThisRun    int
	EntriesWithVertices int
}

// Run processes cfg.InputPath's entries, checkpointing every
// checkpointEvery processed entries and flushing the witness builder's
// remaining state on both normal completion and ctx cancellation.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	records, err := loadRecords(p.cfg.InputPath)
	if err != nil {
		return Summary{}, err
	}
	if p.cfg.Limit > 0 && len(records) > p.cfg.Limit {
		records = records[:p.cfg.Limit]
	}

	var state *checkpoint.State
	if p.cfg.Resume {
		state, err = checkpoint.Load(p.cfg.CheckpointPath)
		if err != nil {
			return Summary{}, fmt.Errorf("load checkpoint: %w", err)
		}
	} else {
		state = checkpoint.Empty()
	}

	if len(state.ProcessedIndices) > 0 {
		logging.Ingest("resuming from checkpoint: %d entries already processed", len(state.ProcessedIndices))
	}

	eg, egCtx := errgroup.WithContext(ctx)
	checkpointTick := make(chan struct{})
	eg.Go(func() error { return p.periodicCheckpointSaver(egCtx, checkpointTick, state) })

	summary := Summary{TotalEntries: len(records)}

	runErr := func() error {
		for i, rec := range records {
			if egCtx.Err() != nil {
				return egCtx.Err()
			}
			if state.Processed(i) {
				continue
			}

			vertexIDs, ts, err := p.processEntry(egCtx, rec)
			if err != nil {
				return fmt.Errorf("process entry %d: %w", i, err)
			}

			if len(vertexIDs) > 0 {
				state.EntriesWithVertices = append(state.EntriesWithVertices, checkpoint.Entry{
					VertexIDs: vertexIDs,
					Timestamp: rec.Time,
				})
				summary.EntriesWithVertices++

				location, _ := activity.ExtractLocation(rec.LocationInfos)
				var locPtr *string
				if location != "" {
					locPtr = &location
				}
				if err := p.builder.AddEntry(vertexIDs, ts, locPtr); err != nil {
					return fmt.Errorf("fold entry %d into witness builder: %w", i, err)
				}
			}

			state.MarkProcessed(i)
			summary.ProcessedThisRun++

			if len(state.ProcessedIndices)%checkpointEvery == 0 {
				select {
				case checkpointTick <- struct{}{}:
				case <-egCtx.Done():
					return egCtx.Err()
				}
			}

			if p.cfg.Delay > 0 {
				select {
				case <-time.After(p.cfg.Delay):
				case <-egCtx.Done():
					return egCtx.Err()
				}
			}
		}
		return nil
	}()

	close(checkpointTick)
	waitErr := eg.Wait()

	if saveErr := checkpoint.Save(p.cfg.CheckpointPath, state); saveErr != nil {
		logging.Get(logging.CategoryIngest).Error("final checkpoint save failed: %v", saveErr)
	}
	if err := p.builder.Finalize(); err != nil {
		logging.Get(logging.CategoryIngest).Error("witness builder finalize failed: %v", err)
	}

	if runErr != nil && runErr != context.Canceled {
		return summary, runErr
	}
	if waitErr != nil && waitErr != context.Canceled {
		return summary, waitErr
	}
	return summary, nil
}

// periodicCheckpointSaver drains tick signals and writes the checkpoint to
// disk, decoupling the (possibly slow) durable write from the hot
// processing loop.
func (p *Pipeline) periodicCheckpointSaver(ctx context.Context, tick <-chan struct{}, state *checkpoint.State) error {
	for {
		select {
		case _, ok := <-tick:
			if !ok {
				return nil
			}
			if err := checkpoint.Save(p.cfg.CheckpointPath, state); err != nil {
				return fmt.Errorf("periodic checkpoint save: %w", err)
			}
			logging.Ingest("checkpointed %d entries", len(state.ProcessedIndices))
		case <-ctx.Done():
			return nil
		}
	}
}

// processEntry mirrors the original pipeline's process_entry: notifications
// yield vertices straight from their subtitle topics, everything else goes
// through the extractor for entity/relationship extraction.
func (p *Pipeline) processEntry(ctx context.Context, rec activity.Record) ([]int64, time.Time, error) {
	parsed := activity.ParseTitle(rec.Title)
	ts, err := time.Parse(time.RFC3339, activity.NormalizeTimestamp(rec.Time))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("parse timestamp %q: %w", rec.Time, err)
	}

	if parsed.Type == activity.TypeNotification {
		topics := activity.ExtractNotificationTopics(rec.Subtitles)
		var ids []int64
		for _, topic := range topics {
			id, err := p.knowledge.GetOrCreateVertex(ctx, topic, ts)
			if err != nil {
				return nil, ts, fmt.Errorf("create vertex for notification topic %q: %w", topic, err)
			}
			ids = append(ids, id)
		}
		return ids, ts, nil
	}

	if parsed.Content == "" {
		return nil, ts, nil
	}

	extraction, err := p.extractor.Extract(ctx, parsed)
	if err != nil {
		return nil, ts, fmt.Errorf("extract entities from %q: %w", parsed.Content, err)
	}

	entityToVertex := make(map[string]int64, len(extraction.Entities))
	var ids []int64
	for _, entity := range extraction.Entities {
		id, err := p.knowledge.GetOrCreateVertex(ctx, entity, ts)
		if err != nil {
			return nil, ts, fmt.Errorf("create vertex for entity %q: %w", entity, err)
		}
		entityToVertex[strings.ToLower(entity)] = id
		ids = append(ids, id)
	}

	for _, rel := range extraction.Relationships {
		subjID, okS := entityToVertex[strings.ToLower(rel.Subject)]
		objID, okO := entityToVertex[strings.ToLower(rel.Object)]
		if !okS || !okO {
			continue
		}
		if _, err := p.knowledge.CreateEdge(subjID, objID, rel.Predicate, ts); err != nil {
			return nil, ts, fmt.Errorf("create edge %s-%s->%s: %w", rel.Subject, rel.Predicate, rel.Object, err)
		}
	}

	return ids, ts, nil
}

func loadRecords(path string) ([]activity.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read activity file %s: %w", path, err)
	}
	var records []activity.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse activity file %s: %w", path, err)
	}
	return records, nil
}
