// Package ui holds the terminal styling shared by the report renderer and the CLI.
//
// [Palette] is a small stylesheet of [lipgloss] styles. [Progress] turns [tasks.ProgressUpdate]
// events into one styled line each, so the CLI can stream them to stderr while a report is built.
package ui
