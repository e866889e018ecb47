package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/koopa0/llamagate/internal/engine"
	"github.com/koopa0/llamagate/internal/model"
	"github.com/koopa0/llamagate/internal/session"
	"github.com/koopa0/llamagate/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() *slog.Logger {
	return testutil.DiscardLogger()
}

func userTurn(content string) []session.Message {
	return []session.Message{{Role: session.RoleUser, Content: content}}
}

func TestNewLoadsInitialModel(t *testing.T) {
	sim := &engine.Sim{}
	d, err := New(context.Background(), sim, model.Llama32_1B, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if d.Current() != model.Llama32_1B {
		t.Errorf("Current = %v, want %v", d.Current(), model.Llama32_1B)
	}
	if !d.Loaded() {
		t.Error("Loaded = false after successful initial load")
	}
	if sim.Loads() != 1 {
		t.Errorf("engine loads = %d, want 1", sim.Loads())
	}
}

func TestNewFailsWhenInitialLoadFails(t *testing.T) {
	sim := &engine.Sim{LoadErr: map[model.ID]error{
		model.Llama32_1B: errors.New("no weights"),
	}}

	if _, err := New(context.Background(), sim, model.Llama32_1B, testLogger()); err == nil {
		t.Fatal("expected error from failed initial load")
	}
}

func TestSwitchModel(t *testing.T) {
	ctx := context.Background()
	sim := &engine.Sim{}
	d, err := New(ctx, sim, model.Llama32_1B, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	t.Run("same model is a no-op", func(t *testing.T) {
		if err := d.SwitchModel(ctx, model.Llama32_1B); err != nil {
			t.Fatalf("SwitchModel failed: %v", err)
		}
		if sim.Loads() != 1 {
			t.Errorf("no-op switch reloaded the model, loads = %d", sim.Loads())
		}
	})

	t.Run("different model swaps", func(t *testing.T) {
		if err := d.SwitchModel(ctx, model.Llama32_3B); err != nil {
			t.Fatalf("SwitchModel failed: %v", err)
		}
		if d.Current() != model.Llama32_3B {
			t.Errorf("Current = %v, want %v", d.Current(), model.Llama32_3B)
		}
		if !d.Loaded() {
			t.Error("Loaded = false after successful switch")
		}
	})
}

func TestSwitchModelFailsClosed(t *testing.T) {
	ctx := context.Background()
	sim := &engine.Sim{LoadErr: map[model.ID]error{
		model.Llama31_8B: errors.New("out of memory"),
	}}
	d, err := New(ctx, sim, model.Llama32_1B, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := d.SwitchModel(ctx, model.Llama31_8B); err == nil {
		t.Fatal("expected switch to fail")
	}

	// The old model was unloaded before the failed load: the dispatcher is
	// left with no model at all, never silently on the previous one.
	if d.Loaded() {
		t.Error("Loaded = true after failed switch, want fail-closed state")
	}
	if d.Current() != model.Llama31_8B {
		t.Errorf("Current = %v, want the requested target %v", d.Current(), model.Llama31_8B)
	}

	if _, err := d.Generate(ctx, userTurn("hi"), model.DefaultGenerationConfig()); !errors.Is(err, engine.ErrModelNotLoaded) {
		t.Errorf("Generate error = %v, want ErrModelNotLoaded", err)
	}
}

func TestEnsureModel(t *testing.T) {
	ctx := context.Background()
	sim := &engine.Sim{}
	d, err := New(ctx, sim, model.Llama32_1B, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	t.Run("alias of active model does not switch", func(t *testing.T) {
		id, err := d.EnsureModel(ctx, "llama32_1b")
		if err != nil {
			t.Fatalf("EnsureModel failed: %v", err)
		}
		if id != model.Llama32_1B {
			t.Errorf("resolved %v, want %v", id, model.Llama32_1B)
		}
		if sim.Loads() != 1 {
			t.Errorf("alias triggered a reload, loads = %d", sim.Loads())
		}
	})

	t.Run("unknown name is rejected", func(t *testing.T) {
		if _, err := d.EnsureModel(ctx, "gpt-4"); !errors.Is(err, model.ErrUnknownModel) {
			t.Errorf("error = %v, want ErrUnknownModel", err)
		}
	})

	t.Run("different model switches", func(t *testing.T) {
		if _, err := d.EnsureModel(ctx, "llama-3.2-3b-instruct"); err != nil {
			t.Fatalf("EnsureModel failed: %v", err)
		}
		if d.Current() != model.Llama32_3B {
			t.Errorf("Current = %v, want %v", d.Current(), model.Llama32_3B)
		}
	})
}

func TestListModels(t *testing.T) {
	d, err := New(context.Background(), &engine.Sim{}, model.Llama32_1B, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	infos := d.ListModels()
	if len(infos) != len(model.All()) {
		t.Fatalf("got %d infos, want %d", len(infos), len(model.All()))
	}

	loaded := 0
	for _, info := range infos {
		if info.Loaded {
			loaded++
			if info.Name != model.Llama32_1B.Name() {
				t.Errorf("loaded model = %q, want %q", info.Name, model.Llama32_1B.Name())
			}
		}
	}
	if loaded != 1 {
		t.Errorf("loaded count = %d, want 1", loaded)
	}
}

func TestStreamDeliversTokensAndFinish(t *testing.T) {
	ctx := context.Background()
	sim := &engine.Sim{Respond: func(model.ID, []session.Message) string {
		return "one two three"
	}}
	d, err := New(ctx, sim, model.Llama32_1B, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var chunks []model.StreamChunk
	for chunk := range d.Stream(ctx, userTurn("hi"), model.DefaultGenerationConfig()) {
		chunks = append(chunks, chunk)
	}

	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3: %+v", len(chunks), chunks)
	}
	last := chunks[len(chunks)-1]
	if !last.IsFinished || last.FinishReason != model.FinishStop {
		t.Errorf("last chunk = %+v, want finished with reason stop", last)
	}
	if last.GeneratedText != "one two three" {
		t.Errorf("generated = %q, want %q", last.GeneratedText, "one two three")
	}
}

func TestStreamEmitsErrorChunkWhenNotLoaded(t *testing.T) {
	ctx := context.Background()
	sim := &engine.Sim{LoadErr: map[model.ID]error{
		model.Llama31_8B: errors.New("out of memory"),
	}}
	d, err := New(ctx, sim, model.Llama32_1B, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := d.SwitchModel(ctx, model.Llama31_8B); err == nil {
		t.Fatal("expected switch failure")
	}

	var chunks []model.StreamChunk
	for chunk := range d.Stream(ctx, userTurn("hi"), model.DefaultGenerationConfig()) {
		chunks = append(chunks, chunk)
	}

	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1: %+v", len(chunks), chunks)
	}
	if chunks[0].FinishReason != model.FinishError {
		t.Errorf("finish reason = %q, want %q", chunks[0].FinishReason, model.FinishError)
	}
}

func TestStreamEmitsErrorChunkOnEngineFailure(t *testing.T) {
	ctx := context.Background()
	sim := &engine.Sim{
		Respond:     func(model.ID, []session.Message) string { return "partial output" },
		GenerateErr: errors.New("device fault"),
	}
	d, err := New(ctx, sim, model.Llama32_1B, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var chunks []model.StreamChunk
	for chunk := range d.Stream(ctx, userTurn("hi"), model.DefaultGenerationConfig()) {
		chunks = append(chunks, chunk)
	}

	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want at least one token plus the error chunk", len(chunks))
	}
	last := chunks[len(chunks)-1]
	if last.FinishReason != model.FinishError {
		t.Errorf("last chunk = %+v, want finish reason error", last)
	}
}

func TestContextWindowGuard(t *testing.T) {
	ctx := context.Background()
	d, err := New(ctx, &engine.Sim{}, model.Llama32_1B, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// ~5k estimated tokens against a 4096-token window.
	oversized := userTurn(strings.Repeat("word ", 4*1024))

	if _, err := d.Generate(ctx, oversized, model.DefaultGenerationConfig()); !errors.Is(err, engine.ErrTokenization) {
		t.Errorf("Generate error = %v, want ErrTokenization", err)
	}

	var chunks []model.StreamChunk
	for chunk := range d.Stream(ctx, oversized, model.DefaultGenerationConfig()) {
		chunks = append(chunks, chunk)
	}
	if len(chunks) != 1 || chunks[0].FinishReason != model.FinishError {
		t.Errorf("stream chunks = %+v, want a single error chunk", chunks)
	}

	// A prompt that fits passes the guard untouched.
	if _, err := d.Generate(ctx, userTurn("hi"), model.DefaultGenerationConfig()); err != nil {
		t.Errorf("small prompt rejected: %v", err)
	}
}

func TestStreamStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sim := &engine.Sim{
		Respond:    func(model.ID, []session.Message) string { return "a b c d e f g h i j" },
		TokenDelay: 5 * time.Millisecond,
	}
	d, err := New(ctx, sim, model.Llama32_1B, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ch := d.Stream(ctx, userTurn("hi"), model.DefaultGenerationConfig())
	<-ch // first token arrived, generation is running
	cancel()

	// The worker must notice the cancellation and close the channel;
	// goleak in TestMain verifies it did not linger.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, open := <-ch:
			if !open {
				return
			}
		case <-deadline:
			t.Fatal("stream channel not closed after cancel")
		}
	}
}
