package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"pulseworks.app/conductor/common/id"
	"pulseworks.app/conductor/common/llm"
	"pulseworks.app/conductor/common/logger"
	"pulseworks.app/conductor/internal/model"
	"pulseworks.app/conductor/internal/notify"
	"pulseworks.app/conductor/internal/platform"
	"pulseworks.app/conductor/internal/store"
)

type Config struct {
	GenerationTimeout time.Duration
	SourceLookback    time.Duration
	MaxTokens         int
}

// Engine produces deliverable versions. One Execute call is one version: the
// row is created in generating before any I/O, and every exit path leaves it
// in staged or failed. Version failures are recorded on the version, never
// propagated to the deliverable.
type Engine struct {
	versions     store.VersionStore
	deliverables store.DeliverableStore
	logs         store.ExecutionLogStore
	fetcher      SnapshotFetcher
	llm          llm.Client
	producer     notify.Producer
	clock        clockwork.Clock

	timeout   time.Duration
	lookback  time.Duration
	maxTokens int
}

func New(versions store.VersionStore, deliverables store.DeliverableStore, logs store.ExecutionLogStore, fetcher SnapshotFetcher, client llm.Client, producer notify.Producer, clock clockwork.Clock, cfg Config) *Engine {
	return &Engine{
		versions:     versions,
		deliverables: deliverables,
		logs:         logs,
		fetcher:      fetcher,
		llm:          client,
		producer:     producer,
		clock:        clock,
		timeout:      cfg.GenerationTimeout,
		lookback:     cfg.SourceLookback,
		maxTokens:    cfg.MaxTokens,
	}
}

type generatorOutput struct {
	Content string `json:"content" jsonschema_description:"The complete deliverable body in markdown"`
	Summary string `json:"summary" jsonschema_description:"One-sentence summary of what was produced"`
}

var generatorSchema = llm.GenerateSchema[generatorOutput]()

const generatorSystemPrompt = `You produce finished work deliverables for a busy professional from snapshots of their calendar, inbox, and chat channels.

Write the deliverable itself, ready to use: a meeting prep brief, a follow-up email draft, a channel digest, or a status report, as directed. Ground every statement in the provided snapshots; never invent facts. Keep it tight.`

type provenance struct {
	SignalRefs json.RawMessage `json:"signal_refs,omitempty"`
	Sources    []SourceRef     `json:"sources"`
	Model      string          `json:"model"`
}

// Execute runs one generation attempt for the deliverable. The returned
// version is in staged or failed status; err is non-nil only when not even a
// version row could be recorded.
func (e *Engine) Execute(ctx context.Context, d *model.Deliverable, signals []model.Signal) (*model.DeliverableVersion, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID:        logger.Ptr(d.UserID),
		DeliverableID: logger.Ptr(d.ID),
		Component:     "conductor.engine",
	})

	sc := logger.StartSpan(ctx, "engine.execute")
	defer sc.End()
	ctx = sc.Context()

	version, err := e.versions.CreateGenerating(ctx, id.New(), d.ID)
	if err != nil {
		return nil, fmt.Errorf("starting version: %w", err)
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{VersionID: logger.Ptr(version.ID)})

	slog.InfoContext(ctx, "generation started",
		"deliverable_type", d.Type,
		"version_number", version.VersionNumber,
		"signal_count", len(signals))

	genCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	staged, genErr := e.generate(genCtx, d, version, signals)
	if genErr != nil {
		sc.RecordError(genErr)
		return e.fail(ctx, version, genErr)
	}

	e.publish(ctx, notify.EventVersionStaged, d, staged)

	slog.InfoContext(ctx, "version staged",
		"version_number", staged.VersionNumber,
		"draft_bytes", len(deref(staged.DraftContent)))
	return staged, nil
}

// generate does the fallible middle of Execute: gather, synthesize, persist.
func (e *Engine) generate(ctx context.Context, d *model.Deliverable, version *model.DeliverableVersion, signals []model.Signal) (*model.DeliverableVersion, error) {
	snaps, sources, err := e.gather(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("gathering sources: %w", err)
	}

	var out generatorOutput
	resp, err := e.llm.Chat(ctx, llm.Request{
		SystemPrompt: generatorSystemPrompt,
		UserPrompt:   buildGenerationPrompt(d, signals, snaps),
		SchemaName:   "deliverable_draft",
		Schema:       generatorSchema,
		MaxTokens:    e.maxTokens,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("synthesis: %w", err)
	}
	if strings.TrimSpace(out.Content) == "" {
		return nil, errors.New("synthesis returned empty content")
	}

	prov, err := json.Marshal(provenance{
		SignalRefs: model.MarshalRefs(signals),
		Sources:    sources,
		Model:      e.llm.Model(),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding provenance: %w", err)
	}

	staged, err := e.versions.MarkStaged(ctx, version.ID, out.Content, prov, e.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("staging version: %w", err)
	}

	e.recordExecution(ctx, d, staged, signals, sources, resp)
	return staged, nil
}

// fail records the generation error on the version. The deliverable stays as
// it was; the next scheduled run starts a fresh version.
func (e *Engine) fail(ctx context.Context, version *model.DeliverableVersion, genErr error) (*model.DeliverableVersion, error) {
	slog.ErrorContext(ctx, "generation failed", "error", genErr)

	failed, err := e.versions.MarkFailed(ctx, version.ID, logger.Truncate(genErr.Error(), 1000))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// The sweeper got here first. The row is already failed.
			return e.versions.GetByID(ctx, version.ID)
		}
		return nil, fmt.Errorf("recording generation failure: %w", err)
	}
	return failed, nil
}

// Approve moves a staged version to approved, with optional user-edited final
// content. Illegal transitions surface as ConstraintViolationError.
func (e *Engine) Approve(ctx context.Context, versionID int64, finalContent *string) (*model.DeliverableVersion, error) {
	approved, err := e.versions.Approve(ctx, versionID, finalContent)
	if err != nil {
		return nil, e.transitionError(ctx, versionID, model.VersionStatusApproved, err)
	}

	e.publishByVersion(ctx, notify.EventVersionApproved, approved)

	slog.InfoContext(ctx, "version approved",
		"version_id", approved.ID,
		"deliverable_id", approved.DeliverableID,
		"edited", finalContent != nil)
	return approved, nil
}

// Reject moves a staged version to rejected. The reason is mandatory: it is
// the signal the preference loop learns from.
func (e *Engine) Reject(ctx context.Context, versionID int64, reason string) (*model.DeliverableVersion, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, errors.New("rejection reason is required")
	}

	rejected, err := e.versions.Reject(ctx, versionID, reason)
	if err != nil {
		return nil, e.transitionError(ctx, versionID, model.VersionStatusRejected, err)
	}

	e.publishByVersion(ctx, notify.EventVersionRejected, rejected)

	slog.InfoContext(ctx, "version rejected",
		"version_id", rejected.ID,
		"deliverable_id", rejected.DeliverableID)
	return rejected, nil
}

// transitionError distinguishes "no such version" from "version exists but is
// not in the required status" after a conditional update matched nothing.
func (e *Engine) transitionError(ctx context.Context, versionID int64, to model.VersionStatus, err error) error {
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	current, getErr := e.versions.GetByID(ctx, versionID)
	if getErr != nil {
		return getErr
	}
	return &ConstraintViolationError{VersionID: versionID, From: current.Status, To: to}
}

func (e *Engine) recordExecution(ctx context.Context, d *model.Deliverable, version *model.DeliverableVersion, signals []model.Signal, sources []SourceRef, resp *llm.Response) {
	sourcesJSON, _ := json.Marshal(sources)

	entry := &model.ExecutionLog{
		ID:               id.New(),
		UserID:           d.UserID,
		DeliverableID:    d.ID,
		VersionID:        version.ID,
		Sources:          sourcesJSON,
		Model:            e.llm.Model(),
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
	}
	if len(signals) > 0 {
		entry.SignalRefs = model.MarshalRefs(signals)
	}

	// Append-only accounting; losing an entry never blocks the deliverable.
	if err := e.logs.Create(ctx, entry); err != nil {
		slog.ErrorContext(ctx, "failed to record execution log", "error", err)
	}
}

func (e *Engine) publish(ctx context.Context, typ notify.EventType, d *model.Deliverable, version *model.DeliverableVersion) {
	if e.producer == nil {
		return
	}
	event := notify.Event{
		Type:          typ,
		UserID:        d.UserID,
		DeliverableID: d.ID,
		VersionID:     version.ID,
		VersionNumber: version.VersionNumber,
		OccurredAt:    e.clock.Now(),
	}
	if err := e.producer.Publish(ctx, event); err != nil {
		slog.WarnContext(ctx, "failed to publish lifecycle event",
			"error", err,
			"type", typ)
	}
}

func (e *Engine) publishByVersion(ctx context.Context, typ notify.EventType, version *model.DeliverableVersion) {
	d, err := e.deliverables.GetByID(ctx, version.DeliverableID)
	if err != nil {
		slog.WarnContext(ctx, "failed to load deliverable for event, publishing without user",
			"error", err,
			"deliverable_id", version.DeliverableID)
		d = &model.Deliverable{ID: version.DeliverableID}
	}
	e.publish(ctx, typ, d, version)
}

func buildGenerationPrompt(d *model.Deliverable, signals []model.Signal, snaps []*platform.Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Deliverable: %s\nTitle: %s\n", d.Type, d.Title)
	if d.Rationale != nil {
		fmt.Fprintf(&b, "Why it exists: %s\n", *d.Rationale)
	}

	if len(signals) > 0 {
		b.WriteString("\nTriggering signals:\n")
		sigJSON, _ := json.MarshalIndent(signals, "", "  ")
		b.Write(sigJSON)
		b.WriteString("\n")
	}

	b.WriteString("\nSource snapshots:\n")
	for _, snap := range snaps {
		snapJSON, _ := json.MarshalIndent(snap, "", "  ")
		b.Write(snapJSON)
		b.WriteString("\n")
	}

	b.WriteString("\nProduce the deliverable now.")
	return b.String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
