package store

import (
	"context"
	"testing"
)

func TestSQLiteKV_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	kv1, err := NewSQLiteKV(dir)
	if err != nil {
		t.Fatalf("NewSQLiteKV: %v", err)
	}
	if err := kv1.Set(ctx, KeySnapshot, []byte(`{"tier":"pro"}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := kv1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	kv2, err := NewSQLiteKV(dir)
	if err != nil {
		t.Fatalf("NewSQLiteKV reopen: %v", err)
	}
	t.Cleanup(func() { _ = kv2.Close() })

	value, found, err := kv2.Get(ctx, KeySnapshot)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if !found {
		t.Fatal("key written before reopen not found")
	}
	if string(value) != `{"tier":"pro"}` {
		t.Fatalf("unexpected value: %s", value)
	}
}

func TestSQLiteKV_MissingDeleteOverwrite(t *testing.T) {
	ctx := context.Background()

	kv, err := NewSQLiteKV(t.TempDir())
	if err != nil {
		t.Fatalf("NewSQLiteKV: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })

	if _, found, err := kv.Get(ctx, KeyAdminOverride); err != nil || found {
		t.Fatalf("missing key: found=%v err=%v, want found=false err=nil", found, err)
	}

	if err := kv.Set(ctx, KeyAdminOverride, []byte(`{"tier":"pro"}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := kv.Set(ctx, KeyAdminOverride, []byte(`{"tier":"free"}`)); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}

	value, found, err := kv.Get(ctx, KeyAdminOverride)
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if string(value) != `{"tier":"free"}` {
		t.Fatalf("overwrite lost: %s", value)
	}

	if err := kv.Delete(ctx, KeyAdminOverride); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, found, _ := kv.Get(ctx, KeyAdminOverride); found {
		t.Fatal("deleted key still present")
	}
	if err := kv.Delete(ctx, KeyAdminOverride); err != nil {
		t.Fatalf("Delete missing key should be a no-op: %v", err)
	}
}

func TestSQLiteKV_RejectsInvalidKeys(t *testing.T) {
	ctx := context.Background()

	kv, err := NewSQLiteKV(t.TempDir())
	if err != nil {
		t.Fatalf("NewSQLiteKV: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })

	if err := kv.Set(ctx, "DROP TABLE", []byte("x")); err == nil {
		t.Fatal("expected invalid key error")
	}
}
