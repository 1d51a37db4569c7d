package assets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestNewMemorySource(t *testing.T) {
	src := NewMemorySource()
	if src == nil {
		t.Fatal("NewMemorySource() returned nil")
	}
	if _, err := src.Load(context.Background(), "scaler.json"); !errors.Is(err, ErrNotFound) {
		t.Errorf("new source should be empty, Load() error = %v", err)
	}
	if src.Name() != "memory" {
		t.Errorf("Name() = %q, want memory", src.Name())
	}
}

func TestMemorySource_Put_Load(t *testing.T) {
	tests := []struct {
		name    string
		asset   string
		data    []byte
		wantErr bool
	}{
		{name: "scaler artifact", asset: "scaler.json", data: []byte(`{"kind":"minmax"}`)},
		{name: "empty payload", asset: "empty.json", data: []byte{}},
		{name: "empty name", asset: "", data: []byte("x"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewMemorySource()
			err := src.Put(tt.asset, tt.data)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Put: %v", err)
			}

			got, err := src.Load(context.Background(), tt.asset)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if string(got) != string(tt.data) {
				t.Errorf("Load() = %q, want %q", got, tt.data)
			}
		})
	}
}

func TestMemorySource_Load_NotFound(t *testing.T) {
	src := NewMemorySource()

	_, err := src.Load(context.Background(), "missing.json")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemorySource_Load_Canceled(t *testing.T) {
	src := NewMemorySource()
	if err := src.Put("model.json", []byte("{}")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := src.Load(ctx, "model.json"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestMemorySource_Copies(t *testing.T) {
	src := NewMemorySource()
	data := []byte("abc")
	if err := src.Put("a", data); err != nil {
		t.Fatalf("Put: %v", err)
	}
	data[0] = 'z'

	got, err := src.Load(context.Background(), "a")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != "abc" {
		t.Errorf("stored asset changed through caller slice: %q", got)
	}

	got[1] = 'z'
	again, _ := src.Load(context.Background(), "a")
	if string(again) != "abc" {
		t.Errorf("stored asset changed through returned slice: %q", again)
	}
}

func TestMemorySource_Concurrent(t *testing.T) {
	src := NewMemorySource()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("asset-%d", i%5)
			_ = src.Put(name, []byte(name))
			if _, err := src.Load(ctx, name); err != nil && !errors.Is(err, ErrNotFound) {
				t.Errorf("Load: %v", err)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("asset-%d", i)
		got, err := src.Load(ctx, name)
		if err != nil || string(got) != name {
			t.Errorf("Load(%s) = %q, %v", name, got, err)
		}
	}
}

func TestFileSource_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scaler.json")
	if err := os.WriteFile(path, []byte(`{"kind":"standard"}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	src := NewFileSource()
	got, err := src.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != `{"kind":"standard"}` {
		t.Errorf("Load() = %q", got)
	}

	if _, err := src.Load(context.Background(), filepath.Join(dir, "missing.json")); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := src.Load(context.Background(), ""); err == nil {
		t.Error("expected error for empty name")
	}
}
