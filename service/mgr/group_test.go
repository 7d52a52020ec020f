package mgr

import (
	"errors"
	"sync"
	"testing"
)

type orderRecorder struct {
	sync.Mutex
	order []string
}

func (or *orderRecorder) add(event string) {
	or.Lock()
	defer or.Unlock()
	or.order = append(or.order, event)
}

type testModule struct {
	mgr      *Manager
	name     string
	recorder *orderRecorder
	failing  bool
}

func newTestModule(name string, recorder *orderRecorder, failing bool) *testModule {
	return &testModule{
		mgr:      New(name),
		name:     name,
		recorder: recorder,
		failing:  failing,
	}
}

func (t *testModule) Manager() *Manager {
	return t.mgr
}

func (t *testModule) Start() error {
	if t.failing {
		return errors.New("module start failed")
	}
	t.recorder.add("start " + t.name)
	return nil
}

func (t *testModule) Stop() error {
	t.recorder.add("stop " + t.name)
	return nil
}

func TestGroupStartStopOrder(t *testing.T) {
	t.Parallel()

	recorder := &orderRecorder{}
	g := NewGroup(
		newTestModule("a", recorder, false),
		newTestModule("b", recorder, false),
		newTestModule("c", recorder, false),
	)

	if err := g.Start(); err != nil {
		t.Fatal(err)
	}
	if !g.Ready() {
		t.Error("group should be ready after start")
	}
	if err := g.Stop(); err != nil {
		t.Fatal(err)
	}

	expected := []string{"start a", "start b", "start c", "stop c", "stop b", "stop a"}
	recorder.Lock()
	defer recorder.Unlock()
	if len(recorder.order) != len(expected) {
		t.Fatalf("unexpected events: %v", recorder.order)
	}
	for i, event := range expected {
		if recorder.order[i] != event {
			t.Errorf("event %d: expected %q, got %q", i, event, recorder.order[i])
		}
	}
}

func TestGroupStartFailureUnwinds(t *testing.T) {
	t.Parallel()

	recorder := &orderRecorder{}
	g := NewGroup(
		newTestModule("a", recorder, false),
		newTestModule("b", recorder, true),
	)

	if err := g.Start(); err == nil {
		t.Fatal("expected group start to fail")
	}
	if g.Ready() {
		t.Error("group must not be ready after failed start")
	}

	// The failed module and all started modules must have been stopped again.
	expected := []string{"start a", "stop b", "stop a"}
	recorder.Lock()
	defer recorder.Unlock()
	if len(recorder.order) != len(expected) {
		t.Fatalf("unexpected events: %v", recorder.order)
	}
	for i, event := range expected {
		if recorder.order[i] != event {
			t.Errorf("event %d: expected %q, got %q", i, event, recorder.order[i])
		}
	}
}

func TestGroupAddSkipsNilModules(t *testing.T) {
	t.Parallel()

	recorder := &orderRecorder{}
	var nilModule *testModule
	g := NewGroup(
		newTestModule("a", recorder, false),
		nil,
		nilModule,
	)

	if len(g.Modules()) != 1 {
		t.Errorf("expected exactly one module, got %d", len(g.Modules()))
	}
}
