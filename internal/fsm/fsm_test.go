package fsm

import (
	"strings"
	"testing"

	"driver-controls/internal/event"
)

// Test events
const (
	evA event.ID = iota
	evB
	evC
	evD
)

type testContext struct {
	outputs []string
	counter int
}

func recordOutput(m *FSM[*testContext], e event.Event, ctx *testContext) {
	ctx.outputs = append(ctx.outputs, m.CurrentName())
}

// newTestTable mirrors a three state machine: a -A-> a, a -B-> b, a -C-> c,
// b -C-> c, b -A-> a, c has no transitions.
func newTestTable() (a, b, c *State[*testContext]) {
	out := OutputFunc[*testContext](recordOutput)
	a = NewState[*testContext]("a", out)
	b = NewState[*testContext]("b", out)
	c = NewState[*testContext]("c", out)

	a.On(evA, a).On(evB, b).On(evC, c)
	b.On(evC, c).On(evA, a)
	return a, b, c
}

func TestInitDoesNotRunOutput(t *testing.T) {
	a, _, _ := newTestTable()
	ctx := &testContext{}

	m := New("test_fsm", a, ctx)

	if m.Current() != a {
		t.Errorf("expected state a, got %s", m.CurrentName())
	}
	if m.Name() != "test_fsm" {
		t.Errorf("expected name test_fsm, got %s", m.Name())
	}
	if len(ctx.outputs) != 0 {
		t.Errorf("expected no outputs after init, got %v", ctx.outputs)
	}
	if m.Context() != ctx {
		t.Error("context not bound")
	}
}

func TestTransitionSequence(t *testing.T) {
	a, b, c := newTestTable()
	ctx := &testContext{}
	m := New("test_fsm", a, ctx)

	steps := []struct {
		id   event.ID
		want *State[*testContext]
		ok   bool
	}{
		{evA, a, true}, // self transition
		{evB, b, true},
		{evC, c, true},
		{evA, c, false}, // c is terminal
	}

	for i, step := range steps {
		got := m.ProcessEvent(event.New(step.id, 10))
		if got != step.ok {
			t.Errorf("step %d: expected transitioned=%v, got %v", i, step.ok, got)
		}
		if m.Current() != step.want {
			t.Errorf("step %d: expected state %s, got %s", i, step.want, m.CurrentName())
		}
	}

	want := []string{"a", "b", "c"}
	if strings.Join(ctx.outputs, ",") != strings.Join(want, ",") {
		t.Errorf("expected outputs %v, got %v", want, ctx.outputs)
	}
	if m.Last() != b {
		t.Errorf("expected last state b, got %s", m.Last())
	}
}

func TestNoMatchIsIdempotent(t *testing.T) {
	_, b, _ := newTestTable()
	ctx := &testContext{counter: 3}
	m := New("test_fsm", b, ctx)

	for i := 0; i < 3; i++ {
		if m.ProcessEvent(event.New(evD, 0)) {
			t.Fatal("unexpected transition on irrelevant event")
		}
	}

	if m.Current() != b || m.Last() != b {
		t.Errorf("state changed: current=%s last=%s", m.CurrentName(), m.Last())
	}
	if ctx.counter != 3 || len(ctx.outputs) != 0 {
		t.Errorf("context changed: %+v", ctx)
	}
}

func TestFirstMatchWins(t *testing.T) {
	var guardCalls int
	start := NewState[*testContext]("start", nil)
	guarded := NewState[*testContext]("guarded", nil)
	fallback := NewState[*testContext]("fallback", nil)

	allowed := false
	start.OnIf(evA, GuardFunc[*testContext](func(m *FSM[*testContext], e event.Event, ctx *testContext) bool {
		guardCalls++
		return allowed
	}), guarded)
	start.On(evA, fallback)

	m := New("first_match", start, &testContext{})
	if !m.ProcessEvent(event.New(evA, 0)) {
		t.Fatal("expected transition")
	}
	if m.Current() != fallback {
		t.Errorf("guard denied: expected fallback, got %s", m.CurrentName())
	}
	if guardCalls != 1 {
		t.Errorf("expected guard evaluated once, got %d", guardCalls)
	}

	allowed = true
	m.Init("first_match", start, &testContext{})
	m.ProcessEvent(event.New(evA, 0))
	if m.Current() != guarded {
		t.Errorf("guard allowed: expected guarded, got %s", m.CurrentName())
	}
}

func TestGuardOnlyEvaluatedForMatchingID(t *testing.T) {
	start := NewState[*testContext]("start", nil)
	end := NewState[*testContext]("end", nil)

	start.OnIf(evA, GuardFunc[*testContext](func(*FSM[*testContext], event.Event, *testContext) bool {
		t.Fatal("guard evaluated for non-matching event")
		return false
	}), end)
	start.On(evB, end)

	m := New("id_match", start, &testContext{})
	if !m.ProcessEvent(event.New(evB, 0)) {
		t.Error("expected transition on evB")
	}
}

func TestOutputSeesEventAndContext(t *testing.T) {
	type counter struct{ sum uint16 }

	idle := NewState[*counter]("idle", nil)
	busy := NewState[*counter]("busy", OutputFunc[*counter](func(m *FSM[*counter], e event.Event, ctx *counter) {
		ctx.sum += e.Data
	}))
	idle.On(evA, busy)
	busy.On(evA, busy)

	ctx := &counter{}
	m := New("sum", idle, ctx)
	m.ProcessEvent(event.New(evA, 2))
	m.ProcessEvent(event.New(evA, 3))

	if ctx.sum != 5 {
		t.Errorf("expected sum 5, got %d", ctx.sum)
	}
}

func TestDataGuardsAndCameFrom(t *testing.T) {
	none := NewState[struct{}]("none", nil)
	left := NewState[struct{}]("left", nil)
	hazard := NewState[struct{}]("hazard", nil)

	none.OnIf(evA, DataNonZero[struct{}](), left)
	none.OnIf(evC, DataNonZero[struct{}](), hazard)
	left.OnIf(evA, DataZero[struct{}](), none)
	left.OnIf(evC, DataNonZero[struct{}](), hazard)
	hazard.OnIf(evC, All(DataZero[struct{}](), CameFrom(left)), left)
	hazard.OnIf(evC, All(DataZero[struct{}](), CameFrom(none)), none)

	m := New("signals", none, struct{}{})

	if m.ProcessEvent(event.New(evA, 0)) {
		t.Error("signal off should not leave none")
	}
	m.ProcessEvent(event.New(evA, 1))
	m.ProcessEvent(event.New(evC, 1))
	if m.Current() != hazard {
		t.Fatalf("expected hazard, got %s", m.CurrentName())
	}
	m.ProcessEvent(event.New(evC, 0))
	if m.Current() != left {
		t.Errorf("expected return to left, got %s", m.CurrentName())
	}
}

func TestUninitializedMachine(t *testing.T) {
	var m FSM[int]
	if m.ProcessEvent(event.New(evA, 0)) {
		t.Error("uninitialized machine must not transition")
	}
	if m.CurrentName() != "" {
		t.Errorf("expected empty name, got %q", m.CurrentName())
	}
}

func TestValidate(t *testing.T) {
	a, b, c := newTestTable()
	if err := Validate(a, b, c); err != nil {
		t.Errorf("valid table rejected: %v", err)
	}

	bad := NewState[*testContext]("bad", nil)
	bad.On(evA, a)
	bad.On(evA, b)
	bad.OnIf(evA, DataNonZero[*testContext](), c)
	bad.On(evB, nil)

	err := Validate(bad)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"entry 1", "entry 2", "nil target"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestReachable(t *testing.T) {
	a, b, c := newTestTable()
	orphan := NewState[*testContext]("orphan", nil)
	orphan.On(evA, a)

	got := Reachable(a)
	if len(got) != 3 || got[0] != a || got[1] != b || got[2] != c {
		names := make([]string, len(got))
		for i, s := range got {
			names[i] = s.Name()
		}
		t.Errorf("unexpected reachable set %v", names)
	}
}
