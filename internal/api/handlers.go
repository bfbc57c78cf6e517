package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/inklab/quill/internal/cache"
	"github.com/inklab/quill/internal/clock"
	qerrors "github.com/inklab/quill/internal/errors"
	"github.com/inklab/quill/internal/export"
	"github.com/inklab/quill/internal/health"
	"github.com/inklab/quill/internal/metrics"
	"github.com/inklab/quill/internal/rules"
	"github.com/inklab/quill/internal/session"
	"github.com/inklab/quill/internal/store"
	"github.com/inklab/quill/pkg/draftstore"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	catalog   *rules.Catalog
	sessions  *registry
	store     *store.Store
	drafts    draftstore.Store
	cache     *cache.Sessions
	metrics   *metrics.Metrics
	checker   *health.Checker
	clk       clock.Clock
	auth      AuthConfig
	pause     time.Duration
	logger    zerolog.Logger
	startTime time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(
	catalog *rules.Catalog,
	st *store.Store,
	drafts draftstore.Store,
	sessionCache *cache.Sessions,
	m *metrics.Metrics,
	checker *health.Checker,
	clk clock.Clock,
	auth AuthConfig,
	pause time.Duration,
	logger zerolog.Logger,
) *Handlers {
	return &Handlers{
		catalog:   catalog,
		sessions:  newRegistry(),
		store:     st,
		drafts:    drafts,
		cache:     sessionCache,
		metrics:   m,
		checker:   checker,
		clk:       clk,
		auth:      auth,
		pause:     pause,
		logger:    logger.With().Str("component", "handlers").Logger(),
		startTime: time.Now(),
	}
}

// StartSession handles POST /api/v1/sessions. With a session_id in the body
// it resumes from the stored draft; otherwise it creates a fresh session.
func (h *Handlers) StartSession(c *fiber.Ctx) error {
	var req StartSessionRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}

	resumed := false
	draft := ""
	sessionID := req.SessionID

	if sessionID != "" {
		if h.sessions.get(sessionID) != nil {
			return problemResponse(c, fiber.StatusConflict,
				"session_live", "Conflict",
				"Session is already in progress")
		}
		var err error
		draft, err = h.drafts.LoadDraft(c.Context(), sessionID)
		if errors.Is(err, draftstore.ErrDraftNotFound) {
			return problemResponse(c, fiber.StatusNotFound,
				"draft_not_found", "Not Found",
				"No draft exists for this session")
		}
		if err != nil {
			return fmt.Errorf("loading draft: %w", err)
		}
		resumed = true
	} else {
		sessionID = uuid.New().String()
	}

	tracker := session.NewTracker(sessionID, h.catalog.SessionRules(), h.clk, h.pause)
	if req.Consent {
		_ = tracker.Mark(session.EventConsent, "")
	}
	if resumed && draft != "" {
		// The restored text arrives as a paste so the log stays honest about
		// where the words came from.
		if _, err := tracker.ApplyEdit(session.EventPaste, draft, nil); err != nil {
			return fmt.Errorf("restoring draft: %w", err)
		}
	}

	h.sessions.add(&liveSession{tracker: tracker, participantID: req.ParticipantID})
	h.metrics.SessionsStarted.Inc()
	h.metrics.LiveSessions.Set(float64(h.sessions.len()))

	resp := StartSessionResponse{
		SessionID: sessionID,
		StartedAt: tracker.StartedAt().UnixMilli(),
		Rules:     tracker.Rules(),
		Wildcards: h.catalog.Wildcards,
		Draft:     draft,
		Resumed:   resumed,
	}

	if h.auth.Mode == "token" && h.auth.JWTSecret != "" {
		token, err := mintSessionToken(h.auth, sessionID, h.clk.Now())
		if err != nil {
			return fmt.Errorf("minting session token: %w", err)
		}
		resp.Token = token
	}

	h.logger.Info().
		Str("session_id", sessionID).
		Bool("resumed", resumed).
		Msg("session started")

	return c.Status(fiber.StatusCreated).JSON(resp)
}

// GetCatalog handles GET /api/v1/catalog.
func (h *Handlers) GetCatalog(c *fiber.Ctx) error {
	return c.JSON(h.catalog)
}

// AppendEvent handles POST /api/v1/sessions/:id/events. Editing events carry
// a full content snapshot and drive word count, rule evaluation, and the
// continuous draft save; marker events record participant decisions.
func (h *Handlers) AppendEvent(c *fiber.Ctx) error {
	ls, err := h.liveSession(c)
	if err != nil {
		return err
	}

	var req AppendEventRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}
	if req.Type == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_type", "Bad Request",
			"Event type is required")
	}

	tracker := ls.tracker
	switch req.Type {
	case session.EventTyping, session.EventDelete, session.EventPaste:
		active, err := tracker.ApplyEdit(req.Type, req.Content, req.Selection)
		if err != nil {
			return h.domainError(c, err)
		}
		// Draft save on every content change; the autosaver is the backstop.
		if err := h.drafts.SaveDraft(c.Context(), tracker.ID(), req.Content); err != nil {
			h.logger.Warn().Err(err).Str("session_id", tracker.ID()).Msg("draft save failed")
		}
		h.metrics.RecordEvent(string(req.Type))
		if active == nil {
			active = []session.Rule{}
		}
		return c.JSON(EventResponse{
			WordCount:      tracker.WordCount(),
			ElapsedSeconds: int64(tracker.Elapsed().Seconds()),
			ActiveRules:    active,
		})

	case session.EventConsent, session.EventWildcardAccepted, session.EventWildcardDeclined:
		if err := tracker.Mark(req.Type, req.WildcardID); err != nil {
			return h.domainError(c, err)
		}
		h.metrics.RecordEvent(string(req.Type))
		active := tracker.ActiveRules()
		if active == nil {
			active = []session.Rule{}
		}
		return c.JSON(EventResponse{
			WordCount:      tracker.WordCount(),
			ElapsedSeconds: int64(tracker.Elapsed().Seconds()),
			ActiveRules:    active,
		})

	default:
		// pause, session_start, rule_* and submit are recorded internally.
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_event_type", "Bad Request",
			"Event type cannot be submitted by clients: "+string(req.Type))
	}
}

// GetRules handles GET /api/v1/sessions/:id/rules.
func (h *Handlers) GetRules(c *fiber.Ctx) error {
	ls, err := h.liveSession(c)
	if err != nil {
		return err
	}

	active := ls.tracker.ActiveRules()
	if active == nil {
		active = []session.Rule{}
	}
	return c.JSON(RulesResponse{
		Rules:       ls.tracker.Rules(),
		ActiveRules: active,
		CanSubmit:   ls.tracker.CanSubmit(),
	})
}

// CompleteRule handles POST /api/v1/sessions/:id/rules/:ruleID/complete.
func (h *Handlers) CompleteRule(c *fiber.Ctx) error {
	ls, err := h.liveSession(c)
	if err != nil {
		return err
	}
	if err := ls.tracker.CompleteRule(c.Params("ruleID")); err != nil {
		return h.domainError(c, err)
	}
	h.metrics.RecordRuleTransition(string(session.RuleCompleted))
	return c.JSON(RulesResponse{
		Rules:       ls.tracker.Rules(),
		ActiveRules: ls.tracker.ActiveRules(),
		CanSubmit:   ls.tracker.CanSubmit(),
	})
}

// SkipRule handles POST /api/v1/sessions/:id/rules/:ruleID/skip.
func (h *Handlers) SkipRule(c *fiber.Ctx) error {
	ls, err := h.liveSession(c)
	if err != nil {
		return err
	}
	if err := ls.tracker.SkipRule(c.Params("ruleID")); err != nil {
		return h.domainError(c, err)
	}
	h.metrics.RecordRuleTransition(string(session.RuleSkipped))
	return c.JSON(RulesResponse{
		Rules:       ls.tracker.Rules(),
		ActiveRules: ls.tracker.ActiveRules(),
		CanSubmit:   ls.tracker.CanSubmit(),
	})
}

// ActivateRule handles POST /api/v1/sessions/:id/rules/:ruleID/activate.
// Operator-only: manual rules have no automatic trigger.
func (h *Handlers) ActivateRule(c *fiber.Ctx) error {
	ls, err := h.liveSession(c)
	if err != nil {
		return err
	}
	if err := ls.tracker.ActivateRule(c.Params("ruleID")); err != nil {
		return h.domainError(c, err)
	}
	h.metrics.RecordRuleTransition(string(session.RuleActive))
	return c.JSON(RulesResponse{
		Rules:       ls.tracker.Rules(),
		ActiveRules: ls.tracker.ActiveRules(),
		CanSubmit:   ls.tracker.CanSubmit(),
	})
}

// Wildcard handles POST /api/v1/sessions/:id/wildcard. Accepting returns the
// opener text; the client inserts it, which arrives as a paste event.
func (h *Handlers) Wildcard(c *fiber.Ctx) error {
	ls, err := h.liveSession(c)
	if err != nil {
		return err
	}

	var req WildcardRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}

	wc := h.catalog.FindWildcard(req.WildcardID)
	if wc == nil {
		return problemResponse(c, fiber.StatusNotFound,
			"wildcard_not_found", "Not Found",
			"Unknown wildcard: "+req.WildcardID)
	}

	switch req.Action {
	case "accept":
		if err := ls.tracker.Mark(session.EventWildcardAccepted, wc.ID); err != nil {
			return h.domainError(c, err)
		}
		h.metrics.RecordEvent(string(session.EventWildcardAccepted))
		return c.JSON(WildcardResponse{WildcardID: wc.ID, Accepted: true, Opener: wc.Opener})
	case "decline":
		if err := ls.tracker.Mark(session.EventWildcardDeclined, wc.ID); err != nil {
			return h.domainError(c, err)
		}
		h.metrics.RecordEvent(string(session.EventWildcardDeclined))
		return c.JSON(WildcardResponse{WildcardID: wc.ID, Accepted: false})
	default:
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_action", "Bad Request",
			`Action must be "accept" or "decline"`)
	}
}

// SaveDraft handles PUT /api/v1/sessions/:id/draft.
func (h *Handlers) SaveDraft(c *fiber.Ctx) error {
	if err := h.authorizeSession(c); err != nil {
		return err
	}

	var req SaveDraftRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}

	sessionID := c.Params("id")
	if err := h.drafts.SaveDraft(c.Context(), sessionID, req.Content); err != nil {
		return fmt.Errorf("saving draft: %w", err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// GetDraft handles GET /api/v1/sessions/:id/draft.
func (h *Handlers) GetDraft(c *fiber.Ctx) error {
	if err := h.authorizeSession(c); err != nil {
		return err
	}

	sessionID := c.Params("id")
	content, err := h.drafts.LoadDraft(c.Context(), sessionID)
	if errors.Is(err, draftstore.ErrDraftNotFound) {
		return problemResponse(c, fiber.StatusNotFound,
			"draft_not_found", "Not Found",
			"No draft exists for this session")
	}
	if err != nil {
		return fmt.Errorf("loading draft: %w", err)
	}
	return c.JSON(DraftResponse{SessionID: sessionID, Content: content})
}

// Submit handles POST /api/v1/sessions/:id/submit. The store write is a
// single best-effort attempt; on failure the full session document is backed
// up locally and the export download stays available — captured writing is
// never lost to a persistence error.
func (h *Handlers) Submit(c *fiber.Ctx) error {
	ls, err := h.liveSession(c)
	if err != nil {
		return err
	}

	var req SubmitRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}

	tracker := ls.tracker
	sess, err := tracker.Finalize(req.Feedback, req.CheckIn)
	if errors.Is(err, qerrors.ErrSubmissionBlocked) {
		h.metrics.RecordSubmission(OutcomeBlocked)
		return problemResponse(c, fiber.StatusConflict,
			"mandatory_rules_incomplete", "Conflict",
			"All active mandatory rules must be completed before submitting")
	}
	if err != nil {
		return h.domainError(c, err)
	}

	sessionID := tracker.ID()
	exportURL := fmt.Sprintf("/api/v1/sessions/%s/export", sessionID)

	if err := h.store.SaveSession(c.Context(), &sess, ls.participantID); err != nil {
		h.logger.Error().Err(err).Str("session_id", sessionID).Msg("store write failed, running fallback chain")
		h.metrics.RecordStoreFailure("save_session")

		doc, mErr := export.Marshal(&sess)
		if mErr != nil {
			// Should be unreachable; the session is plain data.
			return fmt.Errorf("encoding session backup: %w", mErr)
		}
		if bErr := h.drafts.SaveBackup(c.Context(), sessionID, doc); bErr != nil {
			h.logger.Error().Err(bErr).Str("session_id", sessionID).Msg("backup write failed")
		}

		h.sessions.remove(sessionID)
		h.metrics.LiveSessions.Set(float64(h.sessions.len()))
		h.metrics.RecordSubmission(OutcomeBackedUp)

		return c.Status(fiber.StatusAccepted).JSON(SubmitResponse{
			SessionID: sessionID,
			Status:    OutcomeBackedUp,
			ExportURL: exportURL,
			Detail:    "The study database was unavailable. Your session was saved locally; please download a copy.",
		})
	}

	// Confirmed write: the draft is no longer needed.
	if err := h.drafts.DeleteDraft(c.Context(), sessionID); err != nil {
		h.logger.Warn().Err(err).Str("session_id", sessionID).Msg("draft delete failed")
	}

	h.sessions.remove(sessionID)
	h.metrics.LiveSessions.Set(float64(h.sessions.len()))
	h.cache.Put(&sess)
	h.metrics.RecordSubmission(OutcomeStored)

	h.logger.Info().
		Str("session_id", sessionID).
		Int("word_count", sess.WordCount).
		Int("events", len(sess.EventLog)).
		Msg("session submitted")

	return c.Status(fiber.StatusCreated).JSON(SubmitResponse{
		SessionID: sessionID,
		Status:    OutcomeStored,
		ExportURL: exportURL,
	})
}

// GetSession handles GET /api/v1/sessions/:id for submitted sessions.
func (h *Handlers) GetSession(c *fiber.Ctx) error {
	if err := h.authorizeSession(c); err != nil {
		return err
	}

	sessionID := c.Params("id")
	if sess, ok := h.cache.Get(sessionID); ok {
		return c.JSON(sess)
	}

	sess, err := h.store.GetSession(c.Context(), sessionID)
	if err != nil {
		return fmt.Errorf("reading session: %w", err)
	}
	if sess == nil {
		return problemResponse(c, fiber.StatusNotFound,
			"session_not_found", "Not Found",
			"No submitted session with this ID")
	}
	h.cache.Put(sess)
	return c.JSON(sess)
}

// Export handles GET /api/v1/sessions/:id/export: a pretty-printed JSON
// download served from the store, or from the local backup when the store
// write failed.
func (h *Handlers) Export(c *fiber.Ctx) error {
	if err := h.authorizeSession(c); err != nil {
		return err
	}

	sessionID := c.Params("id")

	var doc []byte
	if sess, err := h.store.GetSession(c.Context(), sessionID); err == nil && sess != nil {
		doc, err = export.Marshal(sess)
		if err != nil {
			return fmt.Errorf("encoding export: %w", err)
		}
	} else {
		backup, bErr := h.drafts.LoadBackup(c.Context(), sessionID)
		if errors.Is(bErr, draftstore.ErrBackupNotFound) {
			return problemResponse(c, fiber.StatusNotFound,
				"session_not_found", "Not Found",
				"No submitted session or backup with this ID")
		}
		if bErr != nil {
			return fmt.Errorf("reading backup: %w", bErr)
		}
		doc = backup
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+export.Filename(sessionID)+`"`)
	return c.Send(doc)
}

// ListSessions handles GET /api/v1/sessions (operator).
func (h *Handlers) ListSessions(c *fiber.Ctx) error {
	f := store.ListFilter{
		ParticipantID: c.Query("participant_id"),
		Limit:         c.QueryInt("limit", 50),
		Offset:        c.QueryInt("offset", 0),
	}

	sessions, total, err := h.store.ListSessions(c.Context(), f)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}
	if sessions == nil {
		sessions = []store.Summary{}
	}

	return c.JSON(SessionListResponse{
		Sessions: sessions,
		Total:    total,
		Limit:    f.Limit,
		Offset:   f.Offset,
	})
}

// HealthDetail handles GET /api/v1/health (operator).
func (h *Handlers) HealthDetail(c *fiber.Ctx) error {
	results := h.checker.RunAll(c.Context())

	status := "ok"
	checks := make(map[string]string, len(results))
	for name, s := range results {
		checks[name] = string(s)
		if s == health.StatusDown {
			status = "down"
		} else if s == health.StatusDegraded && status == "ok" {
			status = "degraded"
		}
	}

	return c.JSON(HealthDetailResponse{
		Status: status,
		Checks: checks,
		Uptime: time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Liveness handles GET /healthz.
func (h *Handlers) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Readiness handles GET /readyz.
func (h *Handlers) Readiness(c *fiber.Ctx) error {
	results := h.checker.RunAll(c.Context())

	ready := true
	for _, s := range results {
		if s == health.StatusDown {
			ready = false
			break
		}
	}

	if !ready {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "not_ready",
			"checks": results,
		})
	}
	return c.JSON(fiber.Map{"status": "ready", "checks": results})
}

// --- helpers ---

// authorizeSession rejects participant tokens that do not match the target
// session. Operators pass through.
func (h *Handlers) authorizeSession(c *fiber.Ctx) error {
	role, _ := c.Locals("role").(Role)
	if role == RoleParticipant {
		if tokenID, _ := c.Locals("token_session_id").(string); tokenID != c.Params("id") {
			return problemResponse(c, fiber.StatusForbidden,
				"session_mismatch", "Forbidden",
				"Token is not valid for this session")
		}
	}
	return nil
}

// liveSession authorizes the request and resolves the live tracker.
func (h *Handlers) liveSession(c *fiber.Ctx) (*liveSession, error) {
	if err := h.authorizeSession(c); err != nil {
		return nil, err
	}
	ls := h.sessions.get(c.Params("id"))
	if ls == nil {
		return nil, problemResponse(c, fiber.StatusNotFound,
			"session_not_live", "Not Found",
			"No session in progress with this ID")
	}
	return ls, nil
}

// domainError maps core errors to problem responses.
func (h *Handlers) domainError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, qerrors.ErrNotFound):
		return problemResponse(c, fiber.StatusNotFound,
			"rule_not_found", "Not Found", err.Error())
	case errors.Is(err, qerrors.ErrMandatorySkip):
		return problemResponse(c, fiber.StatusUnprocessableEntity,
			"mandatory_skip", "Unprocessable Entity", err.Error())
	case errors.Is(err, qerrors.ErrTerminalState):
		return problemResponse(c, fiber.StatusConflict,
			"rule_terminal", "Conflict", err.Error())
	case errors.Is(err, qerrors.ErrNotActive):
		return problemResponse(c, fiber.StatusConflict,
			"rule_not_active", "Conflict", err.Error())
	case errors.Is(err, qerrors.ErrNotManual):
		return problemResponse(c, fiber.StatusUnprocessableEntity,
			"rule_not_manual", "Unprocessable Entity", err.Error())
	case errors.Is(err, qerrors.ErrSessionSubmitted):
		return problemResponse(c, fiber.StatusConflict,
			"session_submitted", "Conflict", err.Error())
	case errors.Is(err, qerrors.ErrInvalidInput):
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_input", "Bad Request", err.Error())
	default:
		return err
	}
}
