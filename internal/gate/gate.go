package gate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"pulseworks.app/conductor/common/llm"
	"pulseworks.app/conductor/common/logger"
	"pulseworks.app/conductor/internal/model"
	"pulseworks.app/conductor/internal/store"
)

// ReasoningGate decides which detected signals deserve work right now. One
// structured-output LLM call per user per tick, over the allowed signals and
// a bounded slice of the user's existing deliverables.
//
// The gate fails closed: any malformed output, timeout, or transport error
// produces zero proposals and a warning, never an error. Missing a tick is
// recoverable; generating garbage work is not.
type ReasoningGate struct {
	llm          llm.Client
	deliverables store.DeliverableStore
	threshold    float64
	maxTokens    int
}

func New(client llm.Client, deliverables store.DeliverableStore, threshold float64, maxTokens int) *ReasoningGate {
	return &ReasoningGate{
		llm:          client,
		deliverables: deliverables,
		threshold:    threshold,
		maxTokens:    maxTokens,
	}
}

type gateOutput struct {
	Proposals []gateProposal `json:"proposals" jsonschema_description:"Deliverables worth creating now. Empty if nothing clears the bar."`
}

type gateProposal struct {
	SignalRefs      []string `json:"signal_refs" jsonschema_description:"Refs of the signals (type:reference) this proposal is grounded on"`
	DeliverableType string   `json:"deliverable_type" jsonschema:"enum=meeting_prep,enum=followup_draft,enum=channel_digest,enum=status_report"`
	Confidence      float64  `json:"confidence" jsonschema_description:"0..1 confidence that the user wants this produced proactively"`
	Rationale       string   `json:"rationale"`
	Title           string   `json:"title" jsonschema_description:"Short user-facing deliverable title"`
}

var gateSchema = llm.GenerateSchema[gateOutput]()

const gateSystemPrompt = `You decide whether an assistant should proactively produce work deliverables for a user, based on signals observed in their calendar, inbox, and chat channels.

Propose a deliverable only when the signals show a concrete, timely need the user would plausibly thank you for handling. Prefer no action over marginal action. Never propose a deliverable equivalent to one the user already has.

For each proposal, pick the deliverable type that fits the signal: meeting_prep for upcoming meetings, followup_draft for stalled email threads, channel_digest for quiet channels, status_report for broader recurring needs. Report an honest confidence between 0 and 1.`

// Evaluate runs the gate for one user. It returns only proposals that clear
// the confidence threshold and do not duplicate an active deliverable.
func (g *ReasoningGate) Evaluate(ctx context.Context, userID int64, signals []model.Signal) []model.ProposedAction {
	if len(signals) == 0 {
		return nil
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID:    logger.Ptr(userID),
		Component: "conductor.gate",
	})

	active, err := g.deliverables.ListActiveByUser(ctx, userID)
	if err != nil {
		slog.WarnContext(ctx, "gate could not load active deliverables, skipping user this tick", "error", err)
		return nil
	}

	var out gateOutput
	resp, err := g.llm.Chat(ctx, llm.Request{
		SystemPrompt: gateSystemPrompt,
		UserPrompt:   buildGatePrompt(signals, active),
		SchemaName:   "gate_decision",
		Schema:       gateSchema,
		MaxTokens:    g.maxTokens,
		Temperature:  llm.Temp(0),
	}, &out)
	if err != nil {
		slog.WarnContext(ctx, "gate llm call failed, no proposals this tick",
			"error", err,
			"retryable", llm.IsRetryable(ctx, err),
			"signal_count", len(signals))
		return nil
	}

	slog.InfoContext(ctx, "gate evaluated signals",
		"signal_count", len(signals),
		"raw_proposals", len(out.Proposals),
		"prompt_tokens", resp.PromptTokens,
		"completion_tokens", resp.CompletionTokens)

	byRef := make(map[string]model.Signal, len(signals))
	for _, s := range signals {
		byRef[s.Ref()] = s
	}

	var proposals []model.ProposedAction
	for _, p := range out.Proposals {
		action, ok := g.admit(ctx, userID, p, byRef)
		if ok {
			proposals = append(proposals, action)
		}
	}
	return proposals
}

// admit validates one raw proposal against the closed type set, the
// confidence threshold, and the duplicate-suppression rule. Anything
// questionable is dropped, not repaired.
func (g *ReasoningGate) admit(ctx context.Context, userID int64, p gateProposal, byRef map[string]model.Signal) (model.ProposedAction, bool) {
	typ, err := model.ParseDeliverableType(p.DeliverableType)
	if err != nil {
		slog.WarnContext(ctx, "gate proposal dropped, invalid deliverable type",
			"deliverable_type", p.DeliverableType)
		return model.ProposedAction{}, false
	}

	if p.Confidence < g.threshold {
		slog.DebugContext(ctx, "gate proposal below threshold",
			"deliverable_type", typ,
			"confidence", p.Confidence,
			"threshold", g.threshold)
		return model.ProposedAction{}, false
	}

	var grounded []model.Signal
	for _, ref := range p.SignalRefs {
		if s, ok := byRef[ref]; ok {
			grounded = append(grounded, s)
		}
	}
	if len(grounded) == 0 {
		slog.WarnContext(ctx, "gate proposal dropped, no grounding signals",
			"deliverable_type", typ,
			"signal_refs", p.SignalRefs)
		return model.ProposedAction{}, false
	}

	sourceRef := grounded[0].Reference
	existing, err := g.deliverables.FindActiveBySource(ctx, userID, typ, sourceRef)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.WarnContext(ctx, "gate duplicate check failed, dropping proposal", "error", err)
		return model.ProposedAction{}, false
	}
	if existing != nil {
		slog.InfoContext(ctx, "gate proposal suppressed, deliverable already active",
			"deliverable_type", typ,
			"source_reference", sourceRef,
			"existing_id", existing.ID)
		return model.ProposedAction{}, false
	}

	title := strings.TrimSpace(p.Title)
	if title == "" {
		title = fmt.Sprintf("%s for %s", typ, sourceRef)
	}

	return model.ProposedAction{
		Signals:         grounded,
		DeliverableType: typ,
		Confidence:      p.Confidence,
		Rationale:       p.Rationale,
		SuggestedTitle:  title,
	}, true
}

func buildGatePrompt(signals []model.Signal, active []model.Deliverable) string {
	var b strings.Builder

	b.WriteString("Observed signals:\n")
	sigJSON, _ := json.MarshalIndent(signals, "", "  ")
	b.Write(sigJSON)

	b.WriteString("\n\nDeliverables the user already has active:\n")
	if len(active) == 0 {
		b.WriteString("(none)\n")
	}
	for _, d := range active {
		srcRef := ""
		if d.SourceReference != nil {
			srcRef = *d.SourceReference
		}
		fmt.Fprintf(&b, "- type=%s title=%q source_reference=%q\n", d.Type, d.Title, srcRef)
	}

	b.WriteString("\nDecide which deliverables, if any, to create now.")
	return b.String()
}
