package emit

import "testing"

func TestMulti(t *testing.T) {
	a, b := NewBufferedEmitter(), NewBufferedEmitter()
	var calls int
	m := Multi(a, nil, b, EmitterFunc(func(Event) { calls++ }))

	if len(m) != 3 {
		t.Fatalf("Multi() kept %d emitters, want 3", len(m))
	}
	m.Emit(Event{RunID: "r", Msg: "run_start"})

	if len(a.History("r", HistoryFilter{})) != 1 || len(b.History("r", HistoryFilter{})) != 1 || calls != 1 {
		t.Error("every emitter should receive the event once")
	}
}

func TestNullEmitter(t *testing.T) {
	var e Emitter = NewNullEmitter()
	e.Emit(Event{RunID: "r", Msg: "run_start"})
}

func TestEvent_Str(t *testing.T) {
	e := Event{Meta: map[string]interface{}{"next": "FINISH", "latency_ms": int64(3)}}
	if e.Str("next") != "FINISH" {
		t.Errorf("Str(next) = %q", e.Str("next"))
	}
	if e.Str("latency_ms") != "" || e.Str("missing") != "" {
		t.Error("Str should return empty for non-string or missing keys")
	}
}

func TestEvent_Bool(t *testing.T) {
	e := Event{Meta: map[string]interface{}{"recovered": true, "next": "FINISH"}}
	if !e.Bool("recovered") {
		t.Error("Bool(recovered) = false")
	}
	if e.Bool("next") || e.Bool("missing") {
		t.Error("Bool should return false for non-bool or missing keys")
	}
}
