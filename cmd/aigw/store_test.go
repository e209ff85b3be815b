package main

import (
	"path/filepath"
	"testing"

	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/config"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/kv/memory"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/kv/sqlite"
)

func TestOpenStore(t *testing.T) {
	cfg := config.Default()
	s, err := openStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*memory.Store); !ok {
		t.Errorf("expected memory store, got %T", s)
	}

	cfg.Store.Backend = config.BackendSQLite
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "kv.db")
	s, err = openStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, ok := s.(*sqlite.Store); !ok {
		t.Errorf("expected sqlite store, got %T", s)
	}

	cfg.Store.Backend = "etcd"
	if _, err := openStore(cfg); err == nil {
		t.Error("expected error for unknown backend")
	}
}
