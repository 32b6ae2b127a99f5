package console

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"pkt.systems/blockdeck/schema"
)

func TestStaticToLiveSwitchResetsBuffer(t *testing.T) {
	lines := make(chan string, 8)
	client := &fakeClient{
		listLogFiles: func(context.Context, schema.ServerID) ([]schema.LogFileInfo, error) {
			return []schema.LogFileInfo{{Name: "latest.log"}}, nil
		},
		fetchLogFile: func(context.Context, schema.ServerID, string) ([]string, error) {
			historical := make([]string, 500)
			for i := range historical {
				historical[i] = fmt.Sprintf("old %d", i)
			}
			return historical, nil
		},
		streamConsole: func(ctx context.Context, _ schema.ServerID, onLine func(string)) error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case line := <-lines:
					onLine(line)
				}
			}
		},
	}
	v := NewConsoleView(client, "srv-1", ViewOptions{}, nil)
	defer v.Close()

	// Viewing the historical log while stopped.
	v.LoadLogFile(context.Background(), "latest.log")
	if v.Buffer.Len() != 500 {
		t.Fatalf("expected 500 historical lines, got %d", v.Buffer.Len())
	}

	// Server starts: buffer must reset, not append.
	v.SetRunState(context.Background(), schema.RunStateRunning)
	lines <- "live 1"
	lines <- "live 2"
	lines <- "live 3"
	waitFor(t, func() bool { return v.Buffer.Len() == 3 }, "three live lines")
	got := v.Buffer.Lines()
	for i, want := range []string{"live 1", "live 2", "live 3"} {
		if got[i] != want {
			t.Fatalf("expected live lines only, got %v", got)
		}
	}
}

func TestStaleHistoricalFetchDoesNotClobberLiveBuffer(t *testing.T) {
	lines := make(chan string, 1)
	fetchStarted := make(chan struct{})
	fetchRelease := make(chan struct{})
	client := &fakeClient{
		listLogFiles: func(context.Context, schema.ServerID) ([]schema.LogFileInfo, error) {
			return []schema.LogFileInfo{{Name: "latest.log"}}, nil
		},
		fetchLogFile: func(context.Context, schema.ServerID, string) ([]string, error) {
			close(fetchStarted)
			<-fetchRelease
			historical := make([]string, 500)
			for i := range historical {
				historical[i] = fmt.Sprintf("old %d", i)
			}
			return historical, nil
		},
		streamConsole: func(ctx context.Context, _ schema.ServerID, onLine func(string)) error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case line := <-lines:
					onLine(line)
				}
			}
		},
	}
	v := NewConsoleView(client, "srv-1", ViewOptions{}, nil)
	defer v.Close()

	v.SetRunState(context.Background(), schema.RunStateRunning)
	stopped := make(chan struct{})
	go func() {
		v.SetRunState(context.Background(), schema.RunStateStopped)
		close(stopped)
	}()
	<-fetchStarted

	// The server restarts while the historical fetch is still in flight.
	v.SetRunState(context.Background(), schema.RunStateRunning)
	lines <- "live 1"
	waitFor(t, func() bool { return v.Buffer.Len() == 1 }, "one live line")

	close(fetchRelease)
	<-stopped
	got := v.Buffer.Lines()
	if len(got) != 1 || got[0] != "live 1" {
		t.Fatalf("stale historical fetch overwrote the live buffer: %d lines", len(got))
	}
}

func TestLeavingRunningLoadsLatestLog(t *testing.T) {
	var fetched atomic.Value
	client := &fakeClient{
		listLogFiles: func(context.Context, schema.ServerID) ([]schema.LogFileInfo, error) {
			return []schema.LogFileInfo{
				{Name: "2024-03-01-1.log.gz"},
				{Name: "latest.log"},
				{Name: "2024-03-02-1.log.gz"},
			}, nil
		},
		fetchLogFile: func(_ context.Context, _ schema.ServerID, name string) ([]string, error) {
			fetched.Store(name)
			return []string{"from " + name}, nil
		},
	}
	v := NewConsoleView(client, "srv-1", ViewOptions{}, nil)
	defer v.Close()

	v.SetRunState(context.Background(), schema.RunStateRunning)
	v.SetRunState(context.Background(), schema.RunStateStopped)

	if name, _ := fetched.Load().(string); name != "latest.log" {
		t.Fatalf("expected latest.log fetched, got %q", name)
	}
	got := v.Buffer.Lines()
	if len(got) != 1 || got[0] != "from latest.log" {
		t.Fatalf("unexpected buffer %v", got)
	}
}

func TestLogFetchFailureShowsPlaceholder(t *testing.T) {
	client := &fakeClient{
		listLogFiles: func(context.Context, schema.ServerID) ([]schema.LogFileInfo, error) {
			return []schema.LogFileInfo{{Name: "latest.log"}}, nil
		},
		fetchLogFile: func(context.Context, schema.ServerID, string) ([]string, error) {
			return nil, errors.New("backend unavailable")
		},
	}
	v := NewConsoleView(client, "srv-1", ViewOptions{}, nil)
	defer v.Close()

	v.SetRunState(context.Background(), schema.RunStateRunning)
	v.SetRunState(context.Background(), schema.RunStateStopped)

	got := v.Buffer.Lines()
	if len(got) != 1 {
		t.Fatalf("expected single placeholder line, got %v", got)
	}
}

func TestRepeatedRunStateIsIdempotent(t *testing.T) {
	var streams atomic.Int32
	client := &fakeClient{
		streamConsole: func(ctx context.Context, _ schema.ServerID, _ func(string)) error {
			streams.Add(1)
			<-ctx.Done()
			return ctx.Err()
		},
	}
	v := NewConsoleView(client, "srv-1", ViewOptions{}, nil)
	defer v.Close()

	v.SetRunState(context.Background(), schema.RunStateRunning)
	v.SetRunState(context.Background(), schema.RunStateRunning)
	v.SetRunState(context.Background(), schema.RunStateRunning)
	time.Sleep(20 * time.Millisecond)
	if streams.Load() != 1 {
		t.Fatalf("expected one transport, got %d", streams.Load())
	}
}

func TestSortLogNames(t *testing.T) {
	names := []string{"2024-03-01-1.log.gz", "latest.log", "2024-03-02-1.log.gz", "2024-01-15-3.log.gz"}
	SortLogNames(names)
	want := []string{"latest.log", "2024-03-02-1.log.gz", "2024-03-01-1.log.gz", "2024-01-15-3.log.gz"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}
}
