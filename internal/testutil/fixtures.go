// Package testutil holds fixtures shared by package tests: CUE sources,
// temp files and throwaway stores.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/slotbind/internal/store"
)

// CounterSpec declares host Counter with one int slot n that rejects values
// above 10.
const CounterSpec = `
host: Counter: slot: n: {
	type:    "int"
	initial: 0
	policy: {kind: "vetoable", rules: [{op: "max", value: 10}]}
}
`

// PingPongSpec declares two hosts whose reactions copy each other's slot,
// so every write bounces until the cycle detector stops it.
const PingPongSpec = `
host: Ping: {
	slot: v: {type: "int", initial: 0}
	reaction: "to-pong": {
		when: {slot: "v"}
		then: {host: "Pong", slot: "v", from: "new"}
	}
}
host: Pong: {
	slot: v: {type: "int", initial: 0}
	reaction: "to-ping": {
		when: {slot: "v"}
		then: {host: "Ping", slot: "v", from: "new"}
	}
}
`

// WriteFile writes content to dir/name, creating parent directories, and
// returns the path.
func WriteFile(tb testing.TB, dir, name, content string) string {
	tb.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tb.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
	return path
}

// SpecDir writes each CUE source to its own file in a new temp directory
// and returns the directory.
func SpecDir(tb testing.TB, sources ...string) string {
	tb.Helper()

	dir := tb.TempDir()
	for i, src := range sources {
		WriteFile(tb, dir, "spec"+string(rune('a'+i))+".cue", src)
	}
	return dir
}

// OpenStore opens a SQLite store in a temp directory and closes it when the
// test ends.
func OpenStore(tb testing.TB) *store.Store {
	tb.Helper()

	st, err := store.Open(filepath.Join(tb.TempDir(), "slotbind.db"))
	if err != nil {
		tb.Fatalf("open store: %v", err)
	}
	tb.Cleanup(func() { st.Close() })
	return st
}
