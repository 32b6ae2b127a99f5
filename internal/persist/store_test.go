package persist

import (
	"testing"

	"pkt.systems/blockdeck/schema"
)

func TestStoreRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	registry := Registry{Servers: []schema.ServerDef{
		{ID: "a1b2", Name: "survival", Dir: "/srv/survival", JarPath: "server.jar", JavaPath: "java", MinRAM: "1G", MaxRAM: "2G"},
	}}
	if err := store.Save(registry); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, ok, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatalf("expected registry to exist")
	}
	if len(loaded.Servers) != 1 || loaded.Servers[0].Name != "survival" {
		t.Fatalf("unexpected registry: %+v", loaded)
	}
}

func TestStoreLoadMiss(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	_, ok, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok {
		t.Fatalf("expected miss for empty store")
	}
}

func TestStoreRequiresDir(t *testing.T) {
	if _, err := NewStore("  "); err == nil {
		t.Fatalf("expected error for blank dir")
	}
}
