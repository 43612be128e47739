// Package turn orchestrates one conversational turn: knowledge retrieval,
// generation, dialogue segmentation, voice routing, speech synthesis, and
// the relationship-memory update, in that fixed order.
package turn

import (
	"context"
	"strings"
	"time"

	"github.com/voxchat/dialoguekit/dialogue"
	"github.com/voxchat/dialoguekit/errors"
	"github.com/voxchat/dialoguekit/knowledge"
	"github.com/voxchat/dialoguekit/logging"
	"github.com/voxchat/dialoguekit/memory"
	"github.com/voxchat/dialoguekit/ratelimit"
)

// Generator produces reply text from an augmented context. It may fail or
// time out; the orchestrator decides what that means for the turn.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Synthesizer turns one segment of text into audio for a voice. Failures
// are scoped to the segment that raised them.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

// Config holds per-orchestrator settings.
type Config struct {
	// KnowledgeLimit is how many knowledge items may augment one turn.
	KnowledgeLimit int

	// GeneratorTimeout bounds the generator call. Zero means no bound.
	// On expiry the turn degrades to a raw-text passthrough of the user
	// message instead of blocking or failing.
	GeneratorTimeout time.Duration
}

// Request describes one turn.
type Request struct {
	UserID      string
	CharacterID string

	// CharacterName is the default speaker for unmarked reply text.
	CharacterName string

	// Message is the user's message for this turn.
	Message string

	// VoiceMapping maps speaker names to voice IDs for this session. It is
	// scoped to this request; empty means a text-only turn.
	VoiceMapping map[string]string
}

// SegmentAudio is the synthesis outcome for one routed segment.
type SegmentAudio struct {
	SequenceOrder int
	Speaker       string
	VoiceID       string
	Data          []byte // nil when Err is set
	Err           error
}

// Result is everything one completed turn produced, in playback order.
type Result struct {
	// Prompt is the augmented context handed to the generator.
	Prompt string

	// ReplyText is the raw generator output (or the fallback text).
	ReplyText string

	// UsedFallback is true when a generator timeout degraded the turn to
	// raw-text passthrough.
	UsedFallback bool

	Segments  []dialogue.Segment
	Routed    []dialogue.RoutedSegment
	Omissions []dialogue.Omission
	Audio     []SegmentAudio

	// KnowledgeUsed lists the IDs of items included in the prompt and
	// credited via usage accounting.
	KnowledgeUsed []string

	State *memory.State
	Delta memory.Delta
}

// Orchestrator wires the pipeline components with the external
// collaborators for a single character.
type Orchestrator struct {
	knowledge  *knowledge.Index
	generator  Generator
	synth      Synthesizer // nil disables audio
	tracker    *memory.Tracker
	limiter    *ratelimit.Limiter // nil disables limiting
	cfg        Config
	logger     *logging.Logger
	updateOpts []memory.UpdateOption
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSynthesizer enables per-segment audio synthesis.
func WithSynthesizer(s Synthesizer) Option {
	return func(o *Orchestrator) {
		o.synth = s
	}
}

// WithRateLimiter bounds turns per user.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(o *Orchestrator) {
		o.limiter = l
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l.WithComponent("turn")
	}
}

// withUpdateOptions forwards options to memory updates, for tests.
func withUpdateOptions(opts ...memory.UpdateOption) Option {
	return func(o *Orchestrator) {
		o.updateOpts = opts
	}
}

// New creates an orchestrator. The knowledge index, generator, and tracker
// are required; synthesis is optional.
func New(ix *knowledge.Index, gen Generator, tracker *memory.Tracker, cfg Config, opts ...Option) *Orchestrator {
	if cfg.KnowledgeLimit <= 0 {
		cfg.KnowledgeLimit = 3
	}
	o := &Orchestrator{
		knowledge: ix,
		generator: gen,
		tracker:   tracker,
		cfg:       cfg,
		logger:    logging.New().WithComponent("turn"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Turn runs one conversational turn.
//
// The turn is all-or-nothing around generation: if the generator fails
// (other than by timeout) nothing after it runs and no memory mutation
// occurs. A timeout degrades to passing the user's own text through as the
// reply, and the turn then completes normally. Synthesis failures are
// per-segment and never fail the turn. Callers must invoke Turn exactly
// once per user message: replaying a turn double-applies triggers.
func (o *Orchestrator) Turn(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, errors.InvalidInput("empty user message")
	}
	if o.limiter != nil && !o.limiter.Allow(req.UserID) {
		return nil, errors.RateLimited("turn budget exhausted",
			errors.WithUserID(req.UserID), errors.WithCharacterID(req.CharacterID))
	}
	start := time.Now()
	o.logger.TurnStart(req.UserID, req.CharacterID)

	// 1-2. Retrieve knowledge and build the augmented context.
	candidates := o.knowledge.Search(req.Message, o.cfg.KnowledgeLimit)
	prompt := BuildPrompt(req.CharacterName, req.Message, candidates)

	result := &Result{Prompt: prompt}

	// 3. Generate, with the caller-supplied timeout.
	reply, usedFallback, err := o.generate(ctx, req, prompt)
	if err != nil {
		return nil, err
	}
	result.ReplyText = reply
	result.UsedFallback = usedFallback

	// 4. Segment the reply.
	result.Segments = dialogue.Parse(reply, req.CharacterName)

	// 5. Route to voices and synthesize, tolerating per-segment failures.
	if len(req.VoiceMapping) > 0 {
		result.Routed, result.Omissions = dialogue.Route(result.Segments, req.VoiceMapping)
		for _, om := range result.Omissions {
			o.logger.SegmentDropped(om.Speaker, om.Sequence)
		}
		result.Audio = o.synthesize(ctx, result.Routed)
	}

	// 6. Memory update over the concatenated segment bodies. A canceled
	// context here means the update is omitted entirely, never half done.
	state, delta, err := o.tracker.ApplyTurn(ctx, req.UserID, req.CharacterID,
		req.Message, dialogue.JoinBodies(result.Segments), o.updateOpts...)
	if err != nil {
		return nil, err
	}
	result.State = state
	result.Delta = delta

	// 7. Credit exactly the items that were in the prompt.
	for _, c := range candidates {
		o.knowledge.IncrementUsage(c.Item.ID)
		result.KnowledgeUsed = append(result.KnowledgeUsed, c.Item.ID)
	}

	o.logger.TurnComplete(req.UserID, req.CharacterID, len(result.Segments), time.Since(start))
	return result, nil
}

// generate calls the generator under the configured timeout. Expiry of that
// timeout (not cancellation of the caller's context) degrades to raw-text
// passthrough.
func (o *Orchestrator) generate(ctx context.Context, req Request, prompt string) (reply string, usedFallback bool, err error) {
	genCtx := ctx
	var cancel context.CancelFunc
	if o.cfg.GeneratorTimeout > 0 {
		genCtx, cancel = context.WithTimeout(ctx, o.cfg.GeneratorTimeout)
		defer cancel()
	}

	reply, genErr := o.generator.Generate(genCtx, prompt)
	if genErr == nil {
		return reply, false, nil
	}

	// Caller cancellation: zero side effects, surface as canceled.
	if ctx.Err() != nil {
		return "", false, errors.Wrap(ctx.Err(), "turn canceled during generation")
	}

	// Our own timeout: degrade to passthrough of the user's text.
	if genCtx.Err() == context.DeadlineExceeded || errors.IsCode(genErr, errors.ErrCodeTimeout) {
		o.logger.GeneratorFallback(req.CharacterID, genErr)
		return req.Message, true, nil
	}

	return "", false, errors.WrapWithCode(genErr, errors.ErrCodeGeneratorFailure,
		"generating reply", errors.WithUserID(req.UserID), errors.WithCharacterID(req.CharacterID))
}

// synthesize produces audio per routed segment, isolating failures.
func (o *Orchestrator) synthesize(ctx context.Context, routed []dialogue.RoutedSegment) []SegmentAudio {
	if o.synth == nil || len(routed) == 0 {
		return nil
	}
	audio := make([]SegmentAudio, 0, len(routed))
	for _, seg := range routed {
		sa := SegmentAudio{
			SequenceOrder: seg.SequenceOrder,
			Speaker:       seg.Speaker,
			VoiceID:       seg.VoiceID,
		}
		data, err := o.synth.Synthesize(ctx, seg.Text, seg.VoiceID)
		if err != nil {
			sa.Err = errors.SynthesisFailure(seg.Speaker, errors.WithCause(err))
			o.logger.SynthesisError(seg.Speaker, seg.SequenceOrder, err)
		} else {
			sa.Data = data
		}
		audio = append(audio, sa)
	}
	return audio
}

// BuildPrompt assembles the augmented context: relevant background
// knowledge first, then the user's message attributed to the character.
func BuildPrompt(characterName, message string, candidates []knowledge.Result) string {
	var b strings.Builder
	if len(candidates) > 0 {
		b.WriteString("Background knowledge for ")
		b.WriteString(characterName)
		b.WriteString(":\n")
		for _, c := range candidates {
			b.WriteString("- ")
			b.WriteString(c.Item.Title)
			b.WriteString(": ")
			b.WriteString(c.Item.Content)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString("User: ")
	b.WriteString(message)
	return b.String()
}
