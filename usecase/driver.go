package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/jansahayak/agent/domain/entities"
	"github.com/jansahayak/agent/domain/repositories"
	"github.com/jansahayak/agent/internal/audio"
	"github.com/jansahayak/agent/internal/tools"
)

// Precondition failures checked before any session resource is acquired.
var (
	ErrCredentialMissing = errors.New("api credential missing")
	ErrMicrophoneDenied  = errors.New("microphone unavailable or denied")
	ErrInsecureEndpoint  = errors.New("live endpoint is not a TLS endpoint")
)

// User-facing diagnostics, one per error category.
const (
	diagCredential = "Missing API credential. Set GEMINI_API_KEY and restart."
	diagMicrophone = "Microphone unavailable or permission denied."
	diagInsecure   = "The configured live endpoint must use https or wss."
	diagTransport  = "Communication with the live service failed. Stop and try again."
)

// Config carries the driver's tunables.
type Config struct {
	APIKey string
	// LiveEndpoint optionally overrides the provider endpoint; it must be a
	// TLS URL (https or wss) or session start is refused.
	LiveEndpoint string
	// DefaultRegion seeds the session when location lookup fails.
	DefaultRegion string
	// FallbackLanguage is retried by scheme search when the active language
	// has no translations.
	FallbackLanguage string
	// LocationTimeout bounds the startup geolocation lookup.
	LocationTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.DefaultRegion == "" {
		c.DefaultRegion = entities.DefaultRegion
	}
	if c.FallbackLanguage == "" {
		c.FallbackLanguage = entities.SupportedLanguages[0].Code
	}
	if c.LocationTimeout == 0 {
		c.LocationTimeout = 5 * time.Second
	}
}

// Deps are the external collaborators the driver orchestrates.
type Deps struct {
	Transport repositories.LiveTransport
	Capture   repositories.CaptureDevice
	Playback  repositories.PlaybackDevice
	Locator   repositories.Locator
	Store     repositories.ConversationStore
	Clock     clock.Clock
	Logger    *zap.Logger
}

// Snapshot is the driver's externally visible state, published after every
// handled event. Slices are copies; readers may hold them freely.
type Snapshot struct {
	State          entities.SessionState         `json:"state"`
	Live           bool                          `json:"live"`
	Region         string                        `json:"region"`
	Language       entities.Language             `json:"language"`
	Diagnostic     string                        `json:"diagnostic,omitempty"`
	UserPartial    string                        `json:"user_partial"`
	ModelPartial   string                        `json:"model_partial"`
	History        []entities.TranscriptionEntry `json:"history"`
	VisibleSchemes []entities.Scheme             `json:"visible_schemes"`
	Profile        entities.UserProfile          `json:"profile"`
}

type eventKind int

const (
	evStart eventKind = iota
	evStop
	evSetRegion
	evSetLanguage
	evRegionResolved
	evConnOpened
	evConnFailed
	evServerMessage
	evConnError
	evConnClosed
	evDrained
	evChunk
)

type event struct {
	kind     eventKind
	gen      int64
	region   string
	language string
	coords   *repositories.Coordinates
	conn     repositories.LiveConn
	msg      repositories.ServerMessage
	err      error
	chunk    repositories.EncodedAudioChunk
}

// Driver owns the protocol state machine. All session state is mutated on
// the Run loop's goroutine only; device and network goroutines post events
// into the loop and never touch state directly.
type Driver struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger

	registry  *tools.Registry
	catalogue *tools.Catalogue
	scheduler *audio.Scheduler
	capture   *audio.Capture

	events chan event
	// gen stamps events belonging to one session; teardown bumps it so
	// stragglers from a closed session become no-ops.
	gen     atomic.Int64
	dropped atomic.Int64

	notify func(Snapshot)

	snapMu sync.RWMutex
	snap   Snapshot

	// Loop-owned state below. Never read or written off the loop.
	state      entities.SessionState
	conn       repositories.LiveConn
	conv       *entities.Conversation
	userBuf    strings.Builder
	modelBuf   strings.Builder
	profile    entities.UserProfile
	language   entities.Language
	region     string
	diagnostic string
	visible    []entities.Scheme
}

// NewDriver wires the state machine. notify, when non-nil, receives a
// snapshot after every handled event and must not block.
func NewDriver(cfg Config, deps Deps, notify func(Snapshot)) (*Driver, error) {
	cfg.applyDefaults()
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	d := &Driver{
		cfg:       cfg,
		deps:      deps,
		logger:    deps.Logger,
		catalogue: tools.NewCatalogue(),
		events:    make(chan event, 256),
		notify:    notify,
		state:     entities.StateAwaitingLocation,
		language:  entities.SupportedLanguages[0],
		region:    cfg.DefaultRegion,
	}

	d.registry = tools.NewRegistry(deps.Logger)
	hooks := tools.SessionHooks{
		Profile:        func() entities.UserProfile { return d.profile },
		UpdateProfile:  func(u entities.ProfileUpdate) { d.profile.Merge(u) },
		ActiveLanguage: func() string { return d.language.Code },
		SetLanguage: func(code string) {
			if l, ok := entities.LanguageByCode(code); ok {
				d.language = l
			}
		},
	}
	if err := tools.RegisterAll(d.registry, d.catalogue, hooks, cfg.FallbackLanguage); err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}

	d.scheduler = audio.NewScheduler(deps.Clock, deps.Playback, audio.PlaybackSampleRate, func() {
		d.post(event{kind: evDrained, gen: d.gen.Load()})
	}, deps.Logger)
	d.capture = audio.NewCapture(deps.Capture, func(chunk repositories.EncodedAudioChunk) {
		d.postChunk(chunk)
	}, deps.Logger)

	d.visible = d.catalogue.Search("", d.region, d.language.Code, cfg.FallbackLanguage)
	return d, nil
}

// Run executes the event loop until ctx is cancelled. It must be called
// exactly once.
func (d *Driver) Run(ctx context.Context) error {
	d.publish()
	go d.resolveRegion(ctx)

	for {
		select {
		case <-ctx.Done():
			d.releaseSession()
			return ctx.Err()
		case ev := <-d.events:
			d.handle(ctx, ev)
		}
	}
}

// Start requests a session start (IDLE to THINKING, then LISTENING).
func (d *Driver) Start() { d.post(event{kind: evStart}) }

// Stop requests session teardown from any state.
func (d *Driver) Stop() { d.post(event{kind: evStop}) }

// SetRegion applies a manual region override.
func (d *Driver) SetRegion(region string) { d.post(event{kind: evSetRegion, region: region}) }

// SetLanguage switches the conversation language for subsequent turns.
func (d *Driver) SetLanguage(code string) { d.post(event{kind: evSetLanguage, language: code}) }

// Snapshot returns the most recently published state.
func (d *Driver) Snapshot() Snapshot {
	d.snapMu.RLock()
	defer d.snapMu.RUnlock()
	return d.snap
}

// Languages lists the supported conversation languages.
func (d *Driver) Languages() []entities.Language { return entities.SupportedLanguages }

// Regions lists the selectable states.
func (d *Driver) Regions() []string { return entities.IndianStates }

// Schemes resolves one scheme record by id for the read API.
func (d *Driver) Schemes() []entities.Scheme { return d.catalogue.Records() }

func (d *Driver) post(ev event) {
	d.events <- ev
}

// postChunk drops on a full queue; captured audio is the one event class
// that may be shed under pressure.
func (d *Driver) postChunk(chunk repositories.EncodedAudioChunk) {
	select {
	case d.events <- event{kind: evChunk, gen: d.gen.Load(), chunk: chunk}:
	default:
		if d.dropped.Add(1)%100 == 1 {
			d.logger.Debug("capture queue full, dropping chunk")
		}
	}
}

func (d *Driver) resolveRegion(ctx context.Context) {
	region := d.cfg.DefaultRegion
	var coords *repositories.Coordinates
	if d.deps.Locator != nil {
		lctx, cancel := context.WithTimeout(ctx, d.cfg.LocationTimeout)
		defer cancel()
		if c, err := d.deps.Locator.Locate(lctx); err == nil {
			region = entities.RegionForCoordinates(c.Lat, c.Lng)
			coords = &c
		} else {
			d.logger.Warn("location lookup failed, using default region",
				zap.Error(err), zap.String("region", region))
		}
	}
	d.post(event{kind: evRegionResolved, region: region, coords: coords})
}

func (d *Driver) handle(ctx context.Context, ev event) {
	switch ev.kind {
	case evStart:
		d.handleStart(ctx)
	case evStop:
		d.handleStop(ctx)
	case evSetRegion:
		d.handleSetRegion(ev.region)
	case evSetLanguage:
		d.handleSetLanguage(ev.language)
	case evRegionResolved:
		d.handleRegionResolved(ev)
	default:
		// Session-scoped events; drop anything from a closed session.
		if ev.gen != d.gen.Load() {
			if ev.kind == evConnOpened && ev.conn != nil {
				// The dial resolved after teardown; close it so the
				// remote session does not linger.
				if err := ev.conn.Close(); err != nil {
					d.logger.Warn("closing late connection failed", zap.Error(err))
				}
			}
			return
		}
		switch ev.kind {
		case evConnOpened:
			d.handleConnOpened(ev.conn)
		case evConnFailed:
			d.toError(diagTransport, ev.err)
		case evServerMessage:
			d.handleServerMessage(ctx, ev.msg)
		case evConnError:
			d.handleTransportFailure(ev.err)
		case evConnClosed:
			if d.state.Active() {
				d.handleTransportFailure(errors.New("session closed by remote"))
			}
		case evDrained:
			if d.state == entities.StateSpeaking {
				d.transition(entities.StateListening)
			}
		case evChunk:
			if d.conn != nil && d.state.Active() {
				if err := d.conn.SendAudio(ev.chunk); err != nil {
					d.logger.Warn("send audio failed", zap.Error(err))
				}
			}
			return // no state change to publish
		}
	}
	d.publish()
}

func (d *Driver) handleRegionResolved(ev event) {
	if d.state != entities.StateAwaitingLocation {
		return
	}
	if ev.coords != nil {
		lat, lng := ev.coords.Lat, ev.coords.Lng
		d.profile.Lat, d.profile.Lng = &lat, &lng
	}
	d.applyRegion(ev.region)
	d.transition(entities.StateIdle)
}

func (d *Driver) handleSetRegion(region string) {
	if !entities.ValidRegion(region) {
		d.logger.Warn("ignoring unknown region", zap.String("region", region))
		return
	}
	d.applyRegion(region)
	if d.state == entities.StateAwaitingLocation {
		d.transition(entities.StateIdle)
	}
}

func (d *Driver) applyRegion(region string) {
	d.region = region
	d.profile.Region = region
	d.visible = d.catalogue.Search("", region, d.language.Code, d.cfg.FallbackLanguage)
}

func (d *Driver) handleSetLanguage(code string) {
	l, ok := entities.LanguageByCode(code)
	if !ok {
		d.logger.Warn("ignoring unknown language", zap.String("code", code))
		return
	}
	d.language = l
	d.visible = d.catalogue.Search("", d.region, l.Code, d.cfg.FallbackLanguage)
}

// handleStart validates preconditions and dials the session. Nothing is
// acquired until every check passes.
func (d *Driver) handleStart(ctx context.Context) {
	if d.state != entities.StateIdle {
		d.logger.Warn("start ignored", zap.String("state", string(d.state)))
		return
	}
	if d.cfg.APIKey == "" {
		d.toError(diagCredential, ErrCredentialMissing)
		return
	}
	if ep := d.cfg.LiveEndpoint; ep != "" &&
		!strings.HasPrefix(ep, "https://") && !strings.HasPrefix(ep, "wss://") {
		d.toError(diagInsecure, ErrInsecureEndpoint)
		return
	}
	// Probe the microphone so a denied device is surfaced before connecting.
	if err := d.deps.Capture.Open(audio.CaptureSampleRate); err != nil {
		d.toError(diagMicrophone, fmt.Errorf("%w: %v", ErrMicrophoneDenied, err))
		return
	}
	if err := d.deps.Capture.Close(); err != nil {
		d.logger.Debug("mic probe close", zap.Error(err))
	}

	d.transition(entities.StateThinking)
	d.conv = entities.NewConversation(d.language.Code)

	gen := d.gen.Load()
	connCfg := repositories.ConnectConfig{
		SystemInstruction: d.systemInstruction(),
		Language:          d.language,
		Tools:             d.registry.Declarations(),
	}
	callbacks := repositories.SessionCallbacks{
		OnMessage: func(m repositories.ServerMessage) {
			d.post(event{kind: evServerMessage, gen: gen, msg: m})
		},
		OnError: func(err error) {
			d.post(event{kind: evConnError, gen: gen, err: err})
		},
		OnClose: func() {
			d.post(event{kind: evConnClosed, gen: gen})
		},
	}
	go func() {
		conn, err := d.deps.Transport.Connect(ctx, connCfg, callbacks)
		if err != nil {
			d.post(event{kind: evConnFailed, gen: gen, err: err})
			return
		}
		d.post(event{kind: evConnOpened, gen: gen, conn: conn})
	}()
}

func (d *Driver) handleConnOpened(conn repositories.LiveConn) {
	d.conn = conn
	if err := d.deps.Playback.Open(audio.PlaybackSampleRate); err != nil {
		d.logger.Error("playback open failed", zap.Error(err))
		d.failSession(diagTransport, err)
		return
	}
	if err := d.capture.Start(); err != nil {
		d.failSession(diagMicrophone, fmt.Errorf("%w: %v", ErrMicrophoneDenied, err))
		return
	}
	d.transition(entities.StateListening)
}

// handleServerMessage applies the per-message contract while a session is
// open.
func (d *Driver) handleServerMessage(ctx context.Context, msg repositories.ServerMessage) {
	if !d.state.Active() {
		return
	}

	if msg.Interrupted {
		d.scheduler.StopAll()
		d.transition(entities.StateListening)
	}

	if msg.InputTranscript != "" {
		d.userBuf.WriteString(msg.InputTranscript)
	}
	if msg.OutputTranscript != "" {
		d.modelBuf.WriteString(msg.OutputTranscript)
	}

	if len(msg.ToolCalls) > 0 {
		d.transition(entities.StateThinking)
		for _, call := range msg.ToolCalls {
			result := d.registry.Dispatch(ctx, call)
			if d.conn != nil {
				if err := d.conn.SendToolResult(result); err != nil {
					d.logger.Warn("send tool result failed",
						zap.String("tool", call.Name), zap.Error(err))
				}
			}
			d.maybeAdoptSearchResults(call, result)
		}
	}

	if msg.Audio != nil {
		if _, err := audio.Decode(msg.Audio.Data); err != nil {
			d.logger.Warn("dropping malformed audio chunk",
				zap.Int("bytes", len(msg.Audio.Data)), zap.Error(err))
		} else {
			d.scheduler.Enqueue(msg.Audio.Data)
			d.transition(entities.StateSpeaking)
		}
	}

	if msg.TurnComplete {
		d.flushTranscripts()
	}
}

// maybeAdoptSearchResults mirrors a successful scheme search for the user's
// own region onto the visible-schemes list.
func (d *Driver) maybeAdoptSearchResults(call repositories.ToolCall, result repositories.ToolResult) {
	if call.Name != "search_schemes" {
		return
	}
	var args struct {
		Region string `json:"region"`
	}
	if err := json.Unmarshal(call.Args, &args); err != nil {
		return
	}
	if !strings.EqualFold(args.Region, d.region) {
		return
	}
	var found []entities.Scheme
	if err := json.Unmarshal(result.Payload, &found); err != nil || len(found) == 0 {
		return
	}
	d.visible = found
}

// flushTranscripts commits the turn's buffered text to history, user entry
// first, and resets both buffers.
func (d *Driver) flushTranscripts() {
	if d.conv == nil {
		d.userBuf.Reset()
		d.modelBuf.Reset()
		return
	}
	now := d.deps.Clock.Now().UnixMilli()
	if text := strings.TrimSpace(d.userBuf.String()); text != "" {
		d.conv.Append(entities.TranscriptionEntry{Role: entities.RoleUser, Text: text, Timestamp: now})
	}
	if text := strings.TrimSpace(d.modelBuf.String()); text != "" {
		d.conv.Append(entities.TranscriptionEntry{Role: entities.RoleModel, Text: text, Timestamp: now})
	}
	d.userBuf.Reset()
	d.modelBuf.Reset()
}

// handleStop runs teardown in its fixed order: flush transcripts, close the
// session, stop playback, release devices. Safe from any state, including
// one where nothing was ever acquired.
func (d *Driver) handleStop(ctx context.Context) {
	d.flushTranscripts()
	d.releaseSession()
	d.persistSummary(ctx)
	d.conv = nil
	d.diagnostic = ""
	d.transition(entities.StateIdle)
}

// releaseSession closes connection and devices best-effort and bumps the
// generation so in-flight events from this session are discarded.
func (d *Driver) releaseSession() {
	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			d.logger.Debug("session close", zap.Error(err))
		}
		d.conn = nil
	}
	d.scheduler.StopAll()
	d.capture.Stop()
	if err := d.deps.Playback.Close(); err != nil {
		d.logger.Debug("playback close", zap.Error(err))
	}
	d.gen.Add(1)
}

func (d *Driver) persistSummary(ctx context.Context) {
	if d.deps.Store == nil || d.conv == nil || len(d.conv.Entries) < 2 {
		return
	}
	summary := entities.ConversationSummary{
		ID:        d.conv.ID,
		Language:  d.conv.Language,
		Summary:   d.conv.Summarize(),
		Entries:   len(d.conv.Entries),
		CreatedAt: d.deps.Clock.Now(),
	}
	sctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := d.deps.Store.Save(sctx, summary); err != nil {
		d.logger.Warn("persist summary failed", zap.Error(err))
	}
}

// handleTransportFailure releases everything but leaves state at ERROR so
// the diagnostic stays visible until the user stops or restarts.
func (d *Driver) handleTransportFailure(err error) {
	d.logger.Error("transport failure", zap.Error(err))
	d.releaseSession()
	d.diagnostic = diagTransport
	d.transition(entities.StateError)
}

// failSession is a transport-open failure after partial acquisition.
func (d *Driver) failSession(diagnostic string, err error) {
	d.logger.Error("session setup failed", zap.Error(err))
	d.releaseSession()
	d.diagnostic = diagnostic
	d.transition(entities.StateError)
}

// toError records a precondition failure with nothing acquired.
func (d *Driver) toError(diagnostic string, err error) {
	d.logger.Warn("session start refused", zap.Error(err))
	d.diagnostic = diagnostic
	d.transition(entities.StateError)
}

func (d *Driver) transition(to entities.SessionState) {
	if d.state == to {
		return
	}
	d.logger.Info("state transition",
		zap.String("from", string(d.state)), zap.String("to", string(to)))
	d.state = to
}

func (d *Driver) systemInstruction() string {
	profileJSON, err := json.Marshal(d.profile)
	if err != nil {
		profileJSON = []byte("{}")
	}
	return fmt.Sprintf(`You are "Jan Sahayak", an advanced Agentic AI Welfare Assistant for India.

AGENTIC WORKFLOW (PLAN-EXECUTE-EVALUATE):
- PLAN: When a user speaks, verbalize your intent (e.g. "I will search for education schemes in %[1]s").
- EXECUTE: Use tools to fetch data or update memory.
- EVALUATE: If tool results are empty or don't fit, re-search or ask clarifying questions.

NATIVE LANGUAGE POLICY:
- Current Language: %[2]s. You MUST speak and reason in this language ONLY.

DYNAMIC MEMORY:
- If the user provides info (age, job, income), call 'update_user_profile' immediately to persist it.
- Use this memory to proactively check eligibility for schemes using 'validate_eligibility'.

FAIL-SAFE:
- If audio is unclear, politely ask in %[2]s for clarification.
- If tools are unavailable, explain the limitation clearly.

User Context: State is %[1]s. Current Profile: %[3]s.`,
		d.region, d.language.Name, profileJSON)
}

// publish copies the loop-owned state into the shared snapshot and notifies
// the presentation layer.
func (d *Driver) publish() {
	var history []entities.TranscriptionEntry
	if d.conv != nil {
		history = append(history, d.conv.Entries...)
	}
	snap := Snapshot{
		State:          d.state,
		Live:           d.state.Active(),
		Region:         d.region,
		Language:       d.language,
		Diagnostic:     d.diagnostic,
		UserPartial:    d.userBuf.String(),
		ModelPartial:   d.modelBuf.String(),
		History:        history,
		VisibleSchemes: append([]entities.Scheme(nil), d.visible...),
		Profile:        d.profile,
	}

	d.snapMu.Lock()
	d.snap = snap
	d.snapMu.Unlock()

	if d.notify != nil {
		d.notify(snap)
	}
}
