package graph

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dshills/teamgraph/graph/emit"
	"github.com/dshills/teamgraph/graph/store"
)

// echo returns a worker that reports the request it received.
func echo(name string) Node {
	return NodeFunc(func(_ context.Context, in Input) NodeResult {
		return Ok(Say(name, name+" handled: "+in.Request))
	})
}

// team builds a supervisor with workers A and B, each reporting back.
func team(t *testing.T, router Router, opts ...Option) *Engine {
	t.Helper()
	b := New(opts...)
	mustOK(t, b.AddSupervisor("supervisor", router))
	mustOK(t, b.Add("A", echo("A")))
	mustOK(t, b.Add("B", echo("B")))
	mustOK(t, b.Connect("A", "supervisor"))
	mustOK(t, b.Connect("B", "supervisor"))
	mustOK(t, b.StartAt("supervisor"))
	engine, err := b.Compile()
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return engine
}

func mustOK(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEngineScriptedRouting(t *testing.T) {
	buf := emit.NewBufferedEmitter()
	router := Script(
		Decision{Next: "A", Response: "asking A", AgentInput: "task for A"},
		Decision{Next: "B", Response: "asking B"},
		Decision{Next: Finish, Response: "all done"},
	)
	engine := team(t, router, WithEmitter(buf))

	final, err := engine.Run(context.Background(), "run-1", NewState("hello"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []string{"supervisor", "A", "supervisor", "B", "supervisor"}
	if got := buf.Visited("run-1"); !reflect.DeepEqual(got, want) {
		t.Errorf("visit order: got %v, want %v", got, want)
	}
	if final.Next != Finish {
		t.Errorf("expected Next=FINISH, got %q", final.Next)
	}

	var contents []string
	for _, m := range final.Messages {
		contents = append(contents, m.Content)
	}
	wantMsgs := []string{
		"hello",
		"asking A",
		"A handled: task for A",
		"asking B",
		"B handled: hello",
		"all done",
	}
	if !reflect.DeepEqual(contents, wantMsgs) {
		t.Errorf("messages:\ngot  %q\nwant %q", contents, wantMsgs)
	}
	if final.AgentInput != "" {
		t.Errorf("expected agent input cleared, got %q", final.AgentInput)
	}

	reqs := router.Requests()
	if len(reqs) != 3 {
		t.Fatalf("expected 3 route requests, got %d", len(reqs))
	}
	if !reqs[0].Allows("A") || !reqs[0].Allows(WaitForInput) || reqs[0].Allows("supervisor") {
		t.Errorf("unexpected legal targets: %v", reqs[0].Targets)
	}
	for i, req := range reqs {
		if req.Request != "hello" {
			t.Errorf("route request %d: expected the user's request, got %q", i, req.Request)
		}
	}
}

func TestEngineInstructionNotInheritedByFixedSuccessor(t *testing.T) {
	b := New()
	mustOK(t, b.AddSupervisor("supervisor", Script(
		Decision{Next: "A", AgentInput: "task for A"},
		Decision{Next: Finish},
	)))
	mustOK(t, b.Add("A", echo("A")))
	mustOK(t, b.Add("B", echo("B")))
	mustOK(t, b.Connect("A", "B"))
	mustOK(t, b.Connect("B", "supervisor"))
	mustOK(t, b.StartAt("supervisor"))
	engine, err := b.Compile()
	mustOK(t, err)

	final, err := engine.Run(context.Background(), "fixed", NewState("hello"))
	mustOK(t, err)

	var contents []string
	for _, m := range final.Messages {
		if m.Author == "A" || m.Author == "B" {
			contents = append(contents, m.Content)
		}
	}
	want := []string{"A handled: task for A", "B handled: hello"}
	if !reflect.DeepEqual(contents, want) {
		t.Errorf("worker messages: got %q, want %q", contents, want)
	}
}

func TestEngineWaitForInputAndResume(t *testing.T) {
	router := Script(
		Decision{Next: WaitForInput, Response: "what should I do?"},
		Decision{Next: "A", AgentInput: "go"},
		Decision{Next: Finish, Response: "bye"},
	)
	st := store.NewMemStore[State]()
	engine := team(t, router, WithStore(st))
	ctx := context.Background()

	state, err := engine.Run(ctx, "chat", NewState("hi"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if state.Next != WaitForInput {
		t.Fatalf("expected WAIT_FOR_INPUT, got %q", state.Next)
	}

	state, err = engine.Resume(ctx, "chat", "please ask A")
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if state.Next != Finish {
		t.Errorf("expected FINISH after resume, got %q", state.Next)
	}
	if state.Messages[2].Content != "please ask A" || state.Messages[2].Role != RoleHuman {
		t.Errorf("expected resumed input as human message, got %+v", state.Messages[2])
	}

	steps, err := st.Steps(ctx, "chat")
	if err != nil {
		t.Fatalf("Steps failed: %v", err)
	}
	for i, rec := range steps {
		if rec.Step != i+1 {
			t.Errorf("expected contiguous step numbers, step %d at index %d", rec.Step, i)
		}
	}
	if len(steps) != 4 {
		t.Errorf("expected 4 persisted steps, got %d", len(steps))
	}

	if _, err := engine.Resume(ctx, "missing", "x"); err == nil || !strings.Contains(err.Error(), "RUN_NOT_FOUND") {
		t.Errorf("expected RUN_NOT_FOUND, got %v", err)
	}
}

func TestEngineRecursionLimit(t *testing.T) {
	var calls int
	var mu sync.Mutex
	count := func(name string) Node {
		return NodeFunc(func(_ context.Context, in Input) NodeResult {
			mu.Lock()
			calls++
			mu.Unlock()
			return Ok(Say(name, "again"))
		})
	}

	b := New()
	router := &ScriptedRouter{Decisions: []Decision{{Next: "A", Response: "loop"}}, Repeat: true}
	mustOK(t, b.AddSupervisor("supervisor", router))
	mustOK(t, b.Add("A", count("A")))
	mustOK(t, b.Connect("A", "supervisor"))
	mustOK(t, b.StartAt("supervisor"))
	engine, err := b.Compile()
	mustOK(t, err)

	final, err := engine.Run(context.Background(), "loop", NewState("spin"))
	if !errors.Is(err, ErrRecursionLimit) {
		t.Fatalf("expected recursion limit error, got %v", err)
	}
	var rle *RecursionLimitError
	if !errors.As(err, &rle) || rle.Limit != DefaultRecursionLimit {
		t.Errorf("expected limit %d, got %+v", DefaultRecursionLimit, rle)
	}
	invocations := calls + router.Calls()
	if invocations != DefaultRecursionLimit {
		t.Errorf("expected %d node invocations, got %d", DefaultRecursionLimit, invocations)
	}
	if len(final.Messages) != 1+DefaultRecursionLimit {
		t.Errorf("expected partial state with %d messages, got %d", 1+DefaultRecursionLimit, len(final.Messages))
	}
	if Category(err) != "recursion_limit_exceeded" {
		t.Errorf("unexpected category %q", Category(err))
	}

	t.Run("per-run override", func(t *testing.T) {
		_, err := engine.Run(context.Background(), "loop-3", NewState("spin"), WithRunLimit(3))
		var rle *RecursionLimitError
		if !errors.As(err, &rle) || rle.Limit != 3 {
			t.Errorf("expected limit 3, got %v", err)
		}
	})
}

func TestEngineContractViolation(t *testing.T) {
	buf := emit.NewBufferedEmitter()
	engine := team(t, Script(Decision{Next: "Nobody", Response: "?"}), WithEmitter(buf))

	final, err := engine.Run(context.Background(), "bad", NewState("hi"))
	if !errors.Is(err, ErrRoutingContract) {
		t.Fatalf("expected contract violation, got %v", err)
	}
	var ce *ContractError
	if !errors.As(err, &ce) || ce.Target != "Nobody" || ce.Node != "supervisor" {
		t.Errorf("unexpected contract error: %+v", ce)
	}
	if len(final.Messages) != 1 {
		t.Errorf("expected the pre-decision state, got %d messages", len(final.Messages))
	}

	errs := buf.History("bad", emit.HistoryFilter{Msg: "run_error"})
	if len(errs) != 1 || errs[0].Str("category") != "routing_contract_violation" {
		t.Errorf("expected one run_error event, got %+v", errs)
	}
}

func TestEngineRecoveredFailures(t *testing.T) {
	tests := []struct {
		name     string
		node     Node
		policy   *NodePolicy
		wantCode string
		wantText string
	}{
		{
			name: "returned error",
			node: NodeFunc(func(context.Context, Input) NodeResult {
				return Fail(errors.New("tool exploded"))
			}),
			wantCode: "NODE_FAILED",
			wantText: "A failed: tool exploded",
		},
		{
			name: "panic",
			node: NodeFunc(func(context.Context, Input) NodeResult {
				panic("boom")
			}),
			wantCode: "NODE_PANIC",
			wantText: "A failed: panic: boom",
		},
		{
			name: "timeout",
			node: NodeFunc(func(ctx context.Context, _ Input) NodeResult {
				<-ctx.Done()
				return Fail(ctx.Err())
			}),
			policy:   &NodePolicy{Timeout: 20 * time.Millisecond},
			wantCode: "NODE_TIMEOUT",
			wantText: "A failed: exceeded timeout",
		},
		{
			name: "timeout ignoring context",
			node: NodeFunc(func(context.Context, Input) NodeResult {
				time.Sleep(200 * time.Millisecond)
				return Ok(Say("A", "late"))
			}),
			policy:   &NodePolicy{Timeout: 20 * time.Millisecond},
			wantCode: "NODE_TIMEOUT",
			wantText: "A failed: exceeded timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := emit.NewBufferedEmitter()
			router := Script(
				Decision{Next: "A", Response: "try A"},
				Decision{Next: Finish, Response: "giving up"},
			)
			b := New(WithEmitter(buf))
			mustOK(t, b.AddSupervisor("supervisor", router))
			var fields []Field
			if tt.policy != nil {
				fields = append(fields, WithPolicy(*tt.policy))
			}
			mustOK(t, b.Add("A", tt.node, fields...))
			mustOK(t, b.Connect("A", Finish))
			mustOK(t, b.StartAt("supervisor"))
			engine, err := b.Compile()
			mustOK(t, err)

			final, err := engine.Run(context.Background(), "r", NewState("hi"))
			if err != nil {
				t.Fatalf("failure should be recovered, got %v", err)
			}
			if got := buf.Visited("r"); !reflect.DeepEqual(got, []string{"supervisor", "A", "supervisor"}) {
				t.Errorf("expected failure to route back to supervisor, visited %v", got)
			}
			msg := final.Messages[2]
			if msg.Author != "A" || !strings.HasPrefix(msg.Content, tt.wantText) {
				t.Errorf("unexpected failure message %+v", msg)
			}
			errs := buf.History("r", emit.HistoryFilter{Msg: "node_error"})
			if len(errs) != 1 || errs[0].Str("code") != tt.wantCode {
				t.Errorf("expected node_error with code %s, got %+v", tt.wantCode, errs)
			}
		})
	}
}

func TestEngineFailingSupervisorWaits(t *testing.T) {
	engine := team(t, RouterFunc(func(context.Context, RouteRequest) (Decision, error) {
		return Decision{}, errors.New("model unavailable")
	}))
	final, err := engine.Run(context.Background(), "r", NewState("hi"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if final.Next != WaitForInput {
		t.Errorf("expected WAIT_FOR_INPUT, got %q", final.Next)
	}
	last, _ := final.LastMessage()
	if !strings.Contains(last.Content, "routing: model unavailable") {
		t.Errorf("expected routing failure message, got %q", last.Content)
	}
}

func TestEngineErrorTargetPolicy(t *testing.T) {
	buf := emit.NewBufferedEmitter()
	b := New(WithEmitter(buf))
	mustOK(t, b.Add("A", NodeFunc(func(context.Context, Input) NodeResult {
		return Fail(errors.New("nope"))
	}), WithPolicy(NodePolicy{ErrorTarget: "Fallback"})))
	mustOK(t, b.Add("Fallback", echo("Fallback")))
	mustOK(t, b.Connect("A", Finish))
	mustOK(t, b.Connect("Fallback", Finish))
	mustOK(t, b.StartAt("A"))
	engine, err := b.Compile()
	mustOK(t, err)

	if _, err := engine.Run(context.Background(), "r", NewState("x")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := buf.Visited("r"); !reflect.DeepEqual(got, []string{"A", "Fallback"}) {
		t.Errorf("visited %v", got)
	}
}

func TestEngineSlotDiscipline(t *testing.T) {
	build := func(t *testing.T, node Node, fields ...Field) *Engine {
		t.Helper()
		b := New()
		mustOK(t, b.Declare("files", KindSet))
		mustOK(t, b.Declare("title", KindText))
		mustOK(t, b.Add("W", node, fields...))
		mustOK(t, b.Connect("W", Finish))
		mustOK(t, b.StartAt("W"))
		engine, err := b.Compile()
		mustOK(t, err)
		return engine
	}

	t.Run("declared write merges", func(t *testing.T) {
		engine := build(t, NodeFunc(func(context.Context, Input) NodeResult {
			return Ok(Say("W", "found").With("files", SetSlot("main.go")))
		}), Writes("files"))
		final, err := engine.Run(context.Background(), "", NewState("x"))
		mustOK(t, err)
		if got := final.Items("files"); !reflect.DeepEqual(got, []string{"main.go"}) {
			t.Errorf("got %v", got)
		}
		if final.Slots["title"].Kind != KindText {
			t.Error("expected declared slots initialised")
		}
	})

	t.Run("undeclared write is rejected", func(t *testing.T) {
		engine := build(t, NodeFunc(func(context.Context, Input) NodeResult {
			return Ok(Update{}.With("title", TextSlot("sneaky")))
		}), Writes("files"))
		_, err := engine.Run(context.Background(), "", NewState("x"))
		var ee *EngineError
		if !errors.As(err, &ee) || ee.Code != "UNDECLARED_WRITE" {
			t.Errorf("expected UNDECLARED_WRITE, got %v", err)
		}
	})

	t.Run("shape mismatch is rejected", func(t *testing.T) {
		engine := build(t, NodeFunc(func(context.Context, Input) NodeResult {
			return Ok(Update{}.With("files", TextSlot("main.go")))
		}), Writes("files"))
		_, err := engine.Run(context.Background(), "", NewState("x"))
		var ee *EngineError
		if !errors.As(err, &ee) || ee.Code != "SHAPE_MISMATCH" {
			t.Errorf("expected SHAPE_MISMATCH, got %v", err)
		}
	})

	t.Run("initial slot without kind takes the declared kind", func(t *testing.T) {
		engine := build(t, NodeFunc(func(context.Context, Input) NodeResult {
			return Ok(Update{}.With("title", TextSlot("T")))
		}), Writes("title"))
		initial := NewState("x")
		initial.Slots = map[string]Slot{
			"title": {Text: "draft"},
			"files": {Items: []string{"a.go", "a.go"}},
		}
		final, err := engine.Run(context.Background(), "", initial)
		mustOK(t, err)
		if got := final.Slots["title"]; got.Kind != KindText || got.Text != "T" {
			t.Errorf("title slot: got %+v", got)
		}
		if got := final.Slots["files"]; got.Kind != KindSet || !reflect.DeepEqual(got.Items, []string{"a.go"}) {
			t.Errorf("files slot: got %+v", got)
		}
		if initial.Slots["title"].Kind != "" {
			t.Error("run mutated the caller's slots")
		}
	})

	t.Run("initial slot with foreign members is rejected", func(t *testing.T) {
		engine := build(t, NodeFunc(func(context.Context, Input) NodeResult {
			return Ok(Update{})
		}))
		for name, slot := range map[string]Slot{
			"title": {Items: []string{"a", "b"}},
			"files": {Text: "main.go"},
		} {
			initial := NewState("x")
			initial.Slots = map[string]Slot{name: slot}
			_, err := engine.Run(context.Background(), "", initial)
			var ee *EngineError
			if !errors.As(err, &ee) || ee.Code != "SHAPE_MISMATCH" {
				t.Errorf("%s: expected SHAPE_MISMATCH, got %v", name, err)
			}
		}
	})

	t.Run("reads restrict the view", func(t *testing.T) {
		var seen State
		engine := build(t, NodeFunc(func(_ context.Context, in Input) NodeResult {
			seen = in.State
			return Ok(Update{})
		}), Reads("title"))
		initial := NewState("x")
		initial.Slots = map[string]Slot{"files": SetSlot("secret.go"), "title": TextSlot("T")}
		_, err := engine.Run(context.Background(), "", initial)
		mustOK(t, err)
		if _, ok := seen.Slots["files"]; ok {
			t.Error("node saw an undeclared slot")
		}
		if seen.Text("title") != "T" {
			t.Error("node did not see its declared slot")
		}
	})
}

func TestEngineConcurrentRunsIsolated(t *testing.T) {
	router := RouterFunc(func(_ context.Context, req RouteRequest) (Decision, error) {
		last, _ := req.State.LastMessage()
		if last.Author == "A" {
			return Decision{Next: Finish, Response: "done"}, nil
		}
		return Decision{Next: "A", AgentInput: req.Request}, nil
	})
	st := store.NewMemStore[State]()
	engine := team(t, router, WithStore(st))

	const runs = 20
	var wg sync.WaitGroup
	results := make([]State, runs)
	errs := make([]error, runs)
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = engine.Run(context.Background(), fmt.Sprintf("run-%d", i), NewState(fmt.Sprintf("job %d", i)))
		}(i)
	}
	wg.Wait()

	for i := 0; i < runs; i++ {
		if errs[i] != nil {
			t.Fatalf("run %d failed: %v", i, errs[i])
		}
		want := fmt.Sprintf("A handled: job %d", i)
		if got := results[i].Messages[2].Content; got != want {
			t.Errorf("run %d saw another run's data: %q", i, got)
		}
		if len(results[i].Messages) != 4 {
			t.Errorf("run %d: expected 4 messages, got %d", i, len(results[i].Messages))
		}
	}
	if len(st.Runs()) != runs {
		t.Errorf("expected %d persisted runs, got %d", runs, len(st.Runs()))
	}
}

func TestEngineCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := New()
	mustOK(t, b.Add("A", NodeFunc(func(ctx context.Context, _ Input) NodeResult {
		cancel()
		<-ctx.Done()
		return Fail(ctx.Err())
	})))
	mustOK(t, b.Connect("A", Finish))
	mustOK(t, b.StartAt("A"))
	engine, err := b.Compile()
	mustOK(t, err)

	_, err = engine.Run(ctx, "r", NewState("x"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestEngineNoEdgeFinishes(t *testing.T) {
	b := New()
	mustOK(t, b.Add("only", echo("only")))
	mustOK(t, b.StartAt("only"))
	engine, err := b.Compile()
	mustOK(t, err)

	final, err := engine.Run(context.Background(), "r", NewState("x"))
	mustOK(t, err)
	if final.Next != Finish {
		t.Errorf("expected FINISH, got %q", final.Next)
	}
}

type failingStore struct {
	store.Store[State]
}

func (failingStore) SaveStep(context.Context, string, int, string, State) error {
	return errors.New("disk full")
}

func TestEngineStoreFailure(t *testing.T) {
	engine := team(t, Script(Decision{Next: Finish}), WithStore(failingStore{store.NewMemStore[State]()}))
	_, err := engine.Run(context.Background(), "r", NewState("x"))
	var ee *EngineError
	if !errors.As(err, &ee) || ee.Code != "STORE_ERROR" {
		t.Errorf("expected STORE_ERROR, got %v", err)
	}
}

func TestEngineAccessors(t *testing.T) {
	engine := team(t, Script(), WithName("demo"))
	if engine.Name() != "demo" {
		t.Errorf("Name: %q", engine.Name())
	}
	if got := engine.Nodes(); !reflect.DeepEqual(got, []string{"A", "B", "supervisor"}) {
		t.Errorf("Nodes: %v", got)
	}
	if engine.Start() != "supervisor" || engine.Supervisor() != "supervisor" {
		t.Errorf("Start/Supervisor: %q %q", engine.Start(), engine.Supervisor())
	}
	if got := engine.Targets("supervisor"); !reflect.DeepEqual(got, []string{"A", "B", Finish, WaitForInput}) {
		t.Errorf("Targets: %v", got)
	}
	if engine.Targets("A") != nil {
		t.Error("worker should have no targets")
	}
	if got := engine.Edges(); !reflect.DeepEqual(got, []Edge{{From: "A", To: "supervisor"}, {From: "B", To: "supervisor"}}) {
		t.Errorf("Edges: %v", got)
	}
	if got := engine.Branches(); len(got) != 1 || got[0].From != "supervisor" {
		t.Errorf("Branches: %v", got)
	}
}
