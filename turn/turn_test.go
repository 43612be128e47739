package turn

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/voxchat/dialoguekit/errors"
	"github.com/voxchat/dialoguekit/knowledge"
	"github.com/voxchat/dialoguekit/llm"
	"github.com/voxchat/dialoguekit/memory"
	"github.com/voxchat/dialoguekit/ratelimit"
	"github.com/voxchat/dialoguekit/store"
	"github.com/voxchat/dialoguekit/synth"
)

const turnConfigTOML = `
[status]
affection = 50

[triggers.affection]
increase = ["thank you", "고마워"]
decrease = ["go away"]
amount = 5

[milestones.warm]
condition = "affection >= 60"
description = "Warming up"
`

type fixture struct {
	index   *knowledge.Index
	gen     *llm.MockGenerator
	synth   *synth.MockSynthesizer
	repo    *store.InMemory
	tracker *memory.Tracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg, err := memory.ParseConfig([]byte(turnConfigTOML))
	if err != nil {
		t.Fatal(err)
	}

	ix := knowledge.NewIndex()
	if _, err := ix.Add(knowledge.Item{
		ID:       "k-tea",
		Title:    "Favorite tea",
		Content:  "Mina drinks jasmine tea every morning",
		Keywords: []string{"tea", "jasmine"},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := ix.Add(knowledge.Item{
		ID:       "k-cat",
		Title:    "Pet cat",
		Content:  "Mina has a black cat named Luna",
		Keywords: []string{"cat", "luna"},
	}); err != nil {
		t.Fatal(err)
	}

	repo := store.NewInMemory()
	return &fixture{
		index:   ix,
		gen:     llm.NewMockGenerator("Hello!"),
		synth:   synth.NewMockSynthesizer(),
		repo:    repo,
		tracker: memory.NewTracker(repo, cfg, nil),
	}
}

func (f *fixture) orchestrator(cfg Config, opts ...Option) *Orchestrator {
	return New(f.index, f.gen, f.tracker, cfg, opts...)
}

func TestTurnHappyPath(t *testing.T) {
	f := newFixture(t)
	f.gen.SetResponse("[SPEAKER: Mina] I love jasmine tea! [SPEAKER: Luna] Meow.")
	o := f.orchestrator(Config{}, WithSynthesizer(f.synth))

	res, err := o.Turn(context.Background(), Request{
		UserID:        "u1",
		CharacterID:   "mina",
		CharacterName: "Mina",
		Message:       "Do you like tea? thank you",
		VoiceMapping:  map[string]string{"Mina": "voice-a", "Luna": "voice-b"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(res.Prompt, "jasmine tea") {
		t.Error("prompt should carry the matching knowledge item")
	}
	if len(res.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(res.Segments))
	}
	if len(res.Routed) != 2 || res.Routed[0].VoiceID != "voice-a" || res.Routed[1].VoiceID != "voice-b" {
		t.Errorf("routing wrong: %+v", res.Routed)
	}
	if len(res.Audio) != 2 || res.Audio[0].Err != nil || res.Audio[1].Err != nil {
		t.Errorf("expected audio for both segments: %+v", res.Audio)
	}
	if res.State.StatusValues["affection"] != 55 {
		t.Errorf("trigger not applied, affection = %d", res.State.StatusValues["affection"])
	}
	if res.UsedFallback {
		t.Error("no fallback expected on the happy path")
	}
}

func TestTurnEmptyMessageRejected(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(Config{})

	if _, err := o.Turn(context.Background(), Request{Message: "   "}); !errors.IsCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected invalid-input, got %v", err)
	}
	if f.gen.CallCount() != 0 {
		t.Error("generator must not run for an empty message")
	}
}

func TestTurnGeneratorFailureLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	f.gen.SetError(fmt.Errorf("model exploded"))
	o := f.orchestrator(Config{})

	_, err := o.Turn(context.Background(), Request{
		UserID: "u1", CharacterID: "mina", CharacterName: "Mina",
		Message: "tea thank you",
	})
	if !errors.IsCode(err, errors.ErrCodeGeneratorFailure) {
		t.Fatalf("expected generator-failure, got %v", err)
	}

	// No memory mutation and no usage accounting happened.
	if f.repo.Len() != 0 {
		t.Error("failed turn must not persist memory state")
	}
	item, _ := f.index.Get("k-tea")
	if item.UsageCount != 0 {
		t.Error("failed turn must not credit knowledge usage")
	}
}

func TestTurnTimeoutFallsBackToUserText(t *testing.T) {
	f := newFixture(t)
	f.gen.GenerateFunc = func(ctx context.Context, prompt string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	o := f.orchestrator(Config{GeneratorTimeout: 10 * time.Millisecond})

	res, err := o.Turn(context.Background(), Request{
		UserID: "u1", CharacterID: "mina", CharacterName: "Mina",
		Message: "thank you for the tea",
	})
	if err != nil {
		t.Fatalf("timeout should degrade, not fail: %v", err)
	}
	if !res.UsedFallback {
		t.Error("expected fallback flag")
	}
	if res.ReplyText != "thank you for the tea" {
		t.Errorf("fallback must be the raw user text, got %q", res.ReplyText)
	}
	// The turn still completes: segmentation, memory, accounting.
	if len(res.Segments) != 1 || res.Segments[0].Speaker != "Mina" {
		t.Errorf("fallback text should segment under the default speaker: %+v", res.Segments)
	}
	if res.State.StatusValues["affection"] != 55 {
		t.Errorf("memory update skipped on fallback, affection = %d", res.State.StatusValues["affection"])
	}
}

func TestTurnCallerCancellation(t *testing.T) {
	f := newFixture(t)
	f.gen.GenerateFunc = func(ctx context.Context, prompt string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	o := f.orchestrator(Config{GeneratorTimeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	_, err := o.Turn(ctx, Request{
		UserID: "u1", CharacterID: "mina", CharacterName: "Mina",
		Message: "thank you",
	})
	if err == nil {
		t.Fatal("caller cancellation must fail the turn, not fall back")
	}
	if f.repo.Len() != 0 {
		t.Error("canceled turn must not persist memory state")
	}
}

func TestTurnSynthesisFailureIsPerSegment(t *testing.T) {
	f := newFixture(t)
	f.gen.SetResponse("[SPEAKER: Mina] Hi. [SPEAKER: Luna] Meow.")
	f.synth.FailVoice("voice-b", fmt.Errorf("voice offline"))
	o := f.orchestrator(Config{}, WithSynthesizer(f.synth))

	res, err := o.Turn(context.Background(), Request{
		UserID: "u1", CharacterID: "mina", CharacterName: "Mina",
		Message: "hello there",
		VoiceMapping: map[string]string{
			"Mina": "voice-a",
			"Luna": "voice-b",
		},
	})
	if err != nil {
		t.Fatalf("segment failure must not fail the turn: %v", err)
	}
	if len(res.Audio) != 2 {
		t.Fatalf("expected audio entries for both segments, got %d", len(res.Audio))
	}
	if res.Audio[0].Err != nil || res.Audio[0].Data == nil {
		t.Errorf("healthy segment affected: %+v", res.Audio[0])
	}
	if res.Audio[1].Err == nil {
		t.Error("failing segment should carry its error")
	}
	if !errors.IsCode(res.Audio[1].Err, errors.ErrCodeSynthesisFailure) {
		t.Errorf("expected synthesis-failure code, got %v", res.Audio[1].Err)
	}
}

func TestTurnUnmappedSpeakerOmitted(t *testing.T) {
	f := newFixture(t)
	f.gen.SetResponse("[SPEAKER: Mina] Hi. [SPEAKER: Ghost] Boo.")
	o := f.orchestrator(Config{}, WithSynthesizer(f.synth))

	res, err := o.Turn(context.Background(), Request{
		UserID: "u1", CharacterID: "mina", CharacterName: "Mina",
		Message: "hello",
		VoiceMapping: map[string]string{
			"Mina": "voice-a",
			"Nar":  "voice-n",
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Routed) != 1 || res.Routed[0].Speaker != "Mina" {
		t.Errorf("expected only the mapped speaker routed: %+v", res.Routed)
	}
	if len(res.Omissions) != 1 || res.Omissions[0].Speaker != "Ghost" {
		t.Errorf("expected Ghost omitted: %+v", res.Omissions)
	}
	// Segmentation itself keeps the dropped speaker; only routing skips it.
	if len(res.Segments) != 2 {
		t.Errorf("omission must not remove the segment, got %d segments", len(res.Segments))
	}
}

func TestTurnTextOnlyWithoutVoiceMapping(t *testing.T) {
	f := newFixture(t)
	f.gen.SetResponse("[SPEAKER: Mina] Hi.")
	o := f.orchestrator(Config{}, WithSynthesizer(f.synth))

	res, err := o.Turn(context.Background(), Request{
		UserID: "u1", CharacterID: "mina", CharacterName: "Mina",
		Message: "hello",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Routed != nil || res.Audio != nil {
		t.Error("no voice mapping means no routing and no audio")
	}
	if len(f.synth.Calls()) != 0 {
		t.Error("synthesizer must not be invoked for text-only turns")
	}
}

func TestTurnKnowledgeUsageAccounting(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(Config{KnowledgeLimit: 1})

	res, err := o.Turn(context.Background(), Request{
		UserID: "u1", CharacterID: "mina", CharacterName: "Mina",
		Message: "tell me about jasmine tea",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.KnowledgeUsed) != 1 || res.KnowledgeUsed[0] != "k-tea" {
		t.Fatalf("expected exactly the tea item used, got %v", res.KnowledgeUsed)
	}

	tea, _ := f.index.Get("k-tea")
	if tea.UsageCount != 1 {
		t.Errorf("used item should be credited once, got %d", tea.UsageCount)
	}
	cat, _ := f.index.Get("k-cat")
	if cat.UsageCount != 0 {
		t.Errorf("unused item must not be credited, got %d", cat.UsageCount)
	}
}

func TestTurnMilestoneViaOrchestrator(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(Config{})
	ctx := context.Background()

	var last *Result
	for i := 0; i < 2; i++ {
		res, err := o.Turn(ctx, Request{
			UserID: "u1", CharacterID: "mina", CharacterName: "Mina",
			Message: fmt.Sprintf("thank you #%d", i),
		})
		if err != nil {
			t.Fatal(err)
		}
		last = res
	}

	// 50 +5 +5 = 60 crosses the milestone on the second turn.
	if len(last.Delta.NewMilestones) != 1 || last.Delta.NewMilestones[0] != "warm" {
		t.Errorf("expected warm milestone on second turn, got %v", last.Delta.NewMilestones)
	}
	if last.State.Version != 2 {
		t.Errorf("expected version 2 after two turns, got %d", last.State.Version)
	}
}

func TestTurnRateLimited(t *testing.T) {
	f := newFixture(t)
	limiter := ratelimit.New(ratelimit.Config{TurnsPerWindow: 1, Window: time.Hour})
	o := f.orchestrator(Config{}, WithRateLimiter(limiter))
	ctx := context.Background()

	req := Request{UserID: "u1", CharacterID: "mina", CharacterName: "Mina", Message: "hello"}
	if _, err := o.Turn(ctx, req); err != nil {
		t.Fatalf("first turn should pass: %v", err)
	}
	_, err := o.Turn(ctx, req)
	if !errors.IsCode(err, errors.ErrCodeRateLimit) {
		t.Errorf("expected rate-limited, got %v", err)
	}
	if f.gen.CallCount() != 1 {
		t.Errorf("denied turn must not reach the generator, calls = %d", f.gen.CallCount())
	}
}

func TestBuildPrompt(t *testing.T) {
	candidates := []knowledge.Result{
		{Item: knowledge.Item{Title: "Tea", Content: "Likes jasmine"}},
	}
	prompt := BuildPrompt("Mina", "hello", candidates)
	if !strings.Contains(prompt, "Background knowledge for Mina:") ||
		!strings.Contains(prompt, "- Tea: Likes jasmine") ||
		!strings.Contains(prompt, "User: hello") {
		t.Errorf("prompt layout wrong:\n%s", prompt)
	}

	bare := BuildPrompt("Mina", "hello", nil)
	if bare != "User: hello" {
		t.Errorf("no-knowledge prompt should be bare, got %q", bare)
	}
}
