package ui

import (
	"fmt"
	"io"

	"github.com/desertthunder/trackstats/internal/tasks"
)

// Progress renders a single update as one line.
//
// Phase starts get an icon; per-chunk steps are indented under them.
func Progress(p *Palette, update tasks.ProgressUpdate) string {
	switch update.Phase {
	case tasks.FindPlaylist:
		return fmt.Sprintf("📥 %s", update.Message)
	case tasks.FetchPlaylistTracks, tasks.SearchGenres, tasks.FetchFeatures, tasks.FetchArtists:
		if update.Step <= 1 {
			return fmt.Sprintf("🔍 %s", update.Message)
		}
		return "   " + p.Help(update.Message)
	case tasks.JoinTables, tasks.BuildReport:
		return fmt.Sprintf("📝 %s", update.Message)
	default:
		return update.Message
	}
}

// Watch writes every update received on updates to w until the channel is closed,
// then closes done.
func Watch(w io.Writer, p *Palette, updates <-chan tasks.ProgressUpdate, done chan<- struct{}) {
	defer close(done)
	for update := range updates {
		fmt.Fprintln(w, Progress(p, update))
	}
}
