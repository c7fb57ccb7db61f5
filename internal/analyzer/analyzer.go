package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"pulseworks.app/conductor/common/id"
	"pulseworks.app/conductor/common/llm"
	"pulseworks.app/conductor/common/logger"
	"pulseworks.app/conductor/internal/model"
	"pulseworks.app/conductor/internal/store"
)

type Config struct {
	// Window bounds how far back sessions are read.
	Window time.Duration
	// MinSessions is the floor below which no pattern is credible.
	MinSessions int
	// Threshold gates suggestions; distinct from the reactive threshold
	// because suggestions are user-reviewed, not auto-executed.
	Threshold float64
	// Cooldown suppresses re-suggesting the same pattern key.
	Cooldown  time.Duration
	MaxTokens int
}

// Analyzer looks for recurring needs in a user's recent interactive sessions
// and proposes them as suggested deliverables. Suggestions are inert until
// the user accepts them; the only autonomous act here is writing the
// suggestion row.
type Analyzer struct {
	llm          llm.Client
	sessions     store.SessionStore
	deliverables store.DeliverableStore
	ledger       store.LedgerStore
	clock        clockwork.Clock
	cfg          Config
}

func New(client llm.Client, sessions store.SessionStore, deliverables store.DeliverableStore, ledger store.LedgerStore, clock clockwork.Clock, cfg Config) *Analyzer {
	return &Analyzer{
		llm:          client,
		sessions:     sessions,
		deliverables: deliverables,
		ledger:       ledger,
		clock:        clock,
		cfg:          cfg,
	}
}

type analyzerOutput struct {
	Patterns []patternProposal `json:"patterns" jsonschema_description:"Recurring needs observed across sessions. Empty if none recur."`
}

type patternProposal struct {
	PatternKey      string  `json:"pattern_key" jsonschema_description:"Stable slug identifying the recurring need, e.g. weekly-investor-update"`
	DeliverableType string  `json:"deliverable_type" jsonschema:"enum=meeting_prep,enum=followup_draft,enum=channel_digest,enum=status_report"`
	Schedule        string  `json:"schedule" jsonschema_description:"Cron expression for the recurring cadence"`
	Confidence      float64 `json:"confidence"`
	Rationale       string  `json:"rationale"`
	Title           string  `json:"title"`
}

var analyzerSchema = llm.GenerateSchema[analyzerOutput]()

const analyzerSystemPrompt = `You review summaries of a user's recent conversations with their assistant and look for needs that recur on a cadence: the same kind of request coming back week after week.

Only report a pattern when the sessions show the same need at least twice and a sensible cadence is inferable. Give each pattern a stable slug key so the same pattern found next month maps to the same key. Report honest confidence between 0 and 1.`

// Analyze runs one pass for one user and returns how many suggestions were
// created. LLM trouble means zero suggestions, never an error.
func (a *Analyzer) Analyze(ctx context.Context, userID int64) (int, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID:    logger.Ptr(userID),
		Component: "conductor.analyzer",
	})

	sc := logger.StartSpan(ctx, "analyzer.pattern_pass")
	defer sc.End()
	ctx = sc.Context()

	now := a.clock.Now()
	sessions, err := a.sessions.ListRecentByUser(ctx, userID, now.Add(-a.cfg.Window), 100)
	if err != nil {
		return 0, fmt.Errorf("loading sessions: %w", err)
	}
	if len(sessions) < a.cfg.MinSessions {
		return 0, nil
	}

	var out analyzerOutput
	_, err = a.llm.Chat(ctx, llm.Request{
		SystemPrompt: analyzerSystemPrompt,
		UserPrompt:   buildAnalyzerPrompt(sessions),
		SchemaName:   "conversation_patterns",
		Schema:       analyzerSchema,
		MaxTokens:    a.cfg.MaxTokens,
		Temperature:  llm.Temp(0),
	}, &out)
	if err != nil {
		slog.WarnContext(ctx, "analyzer llm call failed, no suggestions this pass",
			"error", err,
			"session_count", len(sessions))
		return 0, nil
	}

	created := 0
	for _, p := range out.Patterns {
		if a.suggest(ctx, userID, p, now) {
			created++
		}
	}

	slog.InfoContext(ctx, "analyzer pass complete",
		"session_count", len(sessions),
		"patterns", len(out.Patterns),
		"suggestions_created", created)
	return created, nil
}

func (a *Analyzer) suggest(ctx context.Context, userID int64, p patternProposal, now time.Time) bool {
	typ, err := model.ParseDeliverableType(p.DeliverableType)
	if err != nil {
		slog.WarnContext(ctx, "pattern dropped, invalid deliverable type",
			"deliverable_type", p.DeliverableType,
			"pattern_key", p.PatternKey)
		return false
	}

	if p.Confidence < a.cfg.Threshold {
		slog.DebugContext(ctx, "pattern below suggestion threshold",
			"pattern_key", p.PatternKey,
			"confidence", p.Confidence)
		return false
	}

	key := strings.TrimSpace(p.PatternKey)
	if key == "" {
		return false
	}

	decision, err := a.ledger.TryAcquire(ctx, userID, model.SignalTypeConversationPattern, key, now, a.cfg.Cooldown)
	if err != nil {
		slog.ErrorContext(ctx, "ledger acquire failed for pattern", "error", err, "pattern_key", key)
		return false
	}
	if !decision.Allowed {
		slog.InfoContext(ctx, "pattern suppressed by cooldown",
			"pattern_key", key,
			"last_triggered_at", decision.LastTriggeredAt)
		return false
	}

	d := &model.Deliverable{
		ID:              id.New(),
		UserID:          userID,
		Title:           p.Title,
		Type:            typ,
		Status:          model.DeliverableStatusSuggested,
		Origin:          model.OriginAnalystSuggested,
		Schedule:        &p.Schedule,
		SourceReference: &key,
		Rationale:       &p.Rationale,
	}
	if err := a.deliverables.Create(ctx, d); err != nil {
		slog.ErrorContext(ctx, "failed to create suggested deliverable", "error", err, "pattern_key", key)
		return false
	}

	if err := a.ledger.RecordOutcome(ctx, userID, model.SignalTypeConversationPattern, key, d.ID); err != nil {
		slog.WarnContext(ctx, "failed to link suggestion in ledger", "error", err, "pattern_key", key)
	}

	slog.InfoContext(ctx, "deliverable suggested",
		"deliverable_id", d.ID,
		"deliverable_type", typ,
		"pattern_key", key,
		"confidence", p.Confidence)
	return true
}

func buildAnalyzerPrompt(sessions []model.InteractionSession) string {
	var b strings.Builder
	b.WriteString("Recent sessions, newest first:\n")
	for _, s := range sessions {
		entry := map[string]any{
			"topic":         s.Topic,
			"summary":       s.Summary,
			"message_count": s.MessageCount,
			"ended_at":      s.EndedAt.Format(time.RFC3339),
		}
		line, _ := json.Marshal(entry)
		b.Write(line)
		b.WriteString("\n")
	}
	b.WriteString("\nIdentify recurring needs worth standing deliverables.")
	return b.String()
}
