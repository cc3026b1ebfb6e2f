package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/desertthunder/trackstats/internal/tasks"
)

func TestProgress(t *testing.T) {
	tc := []struct {
		name   string
		update tasks.ProgressUpdate
		prefix string
	}{
		{name: "find playlist", update: tasks.ProgressUpdate{Phase: tasks.FindPlaylist, Message: "Looking up"}, prefix: "📥 "},
		{name: "first batch", update: tasks.ProgressUpdate{Phase: tasks.FetchFeatures, Step: 1, Total: 3, Message: "[1/3] Fetching"}, prefix: "🔍 "},
		{name: "later batch", update: tasks.ProgressUpdate{Phase: tasks.FetchArtists, Step: 2, Total: 3, Message: "[2/3] Fetching"}, prefix: "   "},
		{name: "report", update: tasks.ProgressUpdate{Phase: tasks.BuildReport, Message: "Building"}, prefix: "📝 "},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := Progress(Styles, tt.update)
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
			if !strings.Contains(got, tt.update.Message) {
				t.Errorf("expected message %q in %q", tt.update.Message, got)
			}
		})
	}
}

func TestWatch(t *testing.T) {
	var buf bytes.Buffer
	updates := make(chan tasks.ProgressUpdate, 2)
	done := make(chan struct{})

	go Watch(&buf, Styles, updates, done)

	updates <- tasks.ProgressUpdate{Phase: tasks.FindPlaylist, Message: "Looking up playlist"}
	updates <- tasks.ProgressUpdate{Phase: tasks.JoinTables, Message: "Joining"}
	close(updates)
	<-done

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	if !strings.Contains(lines[1], "Joining") {
		t.Errorf("unexpected second line %q", lines[1])
	}
}
