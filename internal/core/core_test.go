package core

import (
	"context"
	"errors"
	"testing"
)

type lifecycleModule struct {
	trackingModule
	log      *[]string
	startErr error
}

func (m *lifecycleModule) Start() error {
	*m.log = append(*m.log, "start "+string(m.id))
	return m.startErr
}

func (m *lifecycleModule) Stop(context.Context) error {
	*m.log = append(*m.log, "stop "+string(m.id))
	return nil
}

func TestApp_StartStopOrder(t *testing.T) {
	var log []string
	app := NewApp(NewAppContext(nil, ""))
	app.AppendModule("a.one", &lifecycleModule{trackingModule: trackingModule{id: "a.one"}, log: &log})
	app.AppendModule("b.two", &lifecycleModule{trackingModule: trackingModule{id: "b.two"}, log: &log})

	if err := app.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	app.Stop()

	want := []string{"start a.one", "start b.two", "stop b.two", "stop a.one"}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("log[%d] = %q, want %q", i, log[i], want[i])
		}
	}
}

func TestApp_StartFailureStopsStarted(t *testing.T) {
	var log []string
	app := NewApp(NewAppContext(nil, ""))
	app.AppendModule("a.one", &lifecycleModule{trackingModule: trackingModule{id: "a.one"}, log: &log})
	app.AppendModule("b.two", &lifecycleModule{
		trackingModule: trackingModule{id: "b.two"},
		log:            &log,
		startErr:       errors.New("boom"),
	})

	if err := app.Start(); err == nil {
		t.Fatal("expected start error")
	}
	want := []string{"start a.one", "start b.two", "stop a.one"}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("log[%d] = %q, want %q", i, log[i], want[i])
		}
	}
}

func TestApp_RunStopsOnContextCancel(t *testing.T) {
	var log []string
	app := NewApp(NewAppContext(nil, ""))
	app.AppendModule("a.one", &lifecycleModule{trackingModule: trackingModule{id: "a.one"}, log: &log})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := app.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(log) != 2 || log[1] != "stop a.one" {
		t.Errorf("log = %v", log)
	}
}

func TestModuleID(t *testing.T) {
	tests := []struct {
		id       ModuleID
		wantNS   string
		wantName string
	}{
		{"channel.discord", "channel", "discord"},
		{"provider.ollama", "provider", "ollama"},
		{"router", "router", "router"},
	}
	for _, tt := range tests {
		if got := tt.id.Namespace(); got != tt.wantNS {
			t.Errorf("%s.Namespace() = %q, want %q", tt.id, got, tt.wantNS)
		}
		if got := tt.id.Name(); got != tt.wantName {
			t.Errorf("%s.Name() = %q, want %q", tt.id, got, tt.wantName)
		}
	}
}

func TestRegisterModule_Panics(t *testing.T) {
	t.Cleanup(resetRegistry)

	RegisterModule(&trackingModule{id: "test.dup"})

	tests := []struct {
		name string
		mod  Module
	}{
		{"duplicate", &trackingModule{id: "test.dup"}},
		{"empty id", &trackingModule{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			RegisterModule(tt.mod)
		})
	}

	mods := GetModules()
	if len(mods) != 1 || mods[0].ID != "test.dup" {
		t.Errorf("GetModules() = %+v", mods)
	}
}
