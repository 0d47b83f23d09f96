// Package content serves the static files behind the ND tools peer: JSON
// payload and response samples, Markdown reference pages and prompt text.
//
// Files are addressed by slash-separated paths relative to a content root.
// Reads go through a small cache so repeated resource reads and tool calls
// do not touch the disk.
package content
