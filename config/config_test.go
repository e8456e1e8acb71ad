package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validTree() map[string]any {
	return map[string]any{
		"default_backend": "pages",
		"backends": map[string]any{
			"pages": map[string]any{
				"backend": "store",
				"options": map[string]any{
					"namespace": "pages",
					"ttl":       "10m",
					"codec":     "msgpack",
					"store": map[string]any{
						"kind": "memory",
						"memory": map[string]any{
							"cleanup_interval": "1m",
						},
					},
					"index": map[string]any{
						"kind": "auto",
						"ttl":  "24h",
					},
					"versions": map[string]any{
						"kind": "auto",
						"ttl":  "240h",
					},
				},
			},
			"edge": map[string]any{
				"backend": "fastly",
				"options": map[string]any{
					"service_id": "sid",
					"api_key":    "key",
					"soft_purge": true,
				},
			},
			"everywhere": map[string]any{
				"backend": "composite",
				"options": map[string]any{
					"backends": []string{"pages", "edge"},
				},
			},
		},
	}
}

func TestLoadMap(t *testing.T) {
	cfg, err := LoadMap(validTree())
	if err != nil {
		t.Fatalf("LoadMap: %v", err)
	}
	if cfg.Default() != "pages" {
		t.Fatalf("Default() = %q", cfg.Default())
	}

	pages := cfg.Backends["pages"]
	if pages.Kind != "store" {
		t.Fatalf("pages kind = %q", pages.Kind)
	}
	if pages.Options.TTL != 10*time.Minute {
		t.Fatalf("ttl = %v, want duration parsing", pages.Options.TTL)
	}
	if pages.Options.Index.TTL != 24*time.Hour {
		t.Fatalf("index ttl = %v", pages.Options.Index.TTL)
	}
	if got := cfg.Backends["everywhere"].Options.Backends; len(got) != 2 || got[0] != "pages" {
		t.Fatalf("composite members = %v", got)
	}
}

func TestLoadMapRejectsUnknownKeys(t *testing.T) {
	tree := validTree()
	opts := tree["backends"].(map[string]any)["pages"].(map[string]any)["options"].(map[string]any)
	opts["namespce"] = "typo"

	if _, err := LoadMap(tree); err == nil {
		t.Fatal("expected unknown-key rejection")
	}
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(map[string]any)
		want   string
	}{
		{
			name: "unknown default backend",
			mutate: func(m map[string]any) {
				m["default_backend"] = "nope"
			},
			want: "unknown backend",
		},
		{
			name: "unknown backend kind",
			mutate: func(m map[string]any) {
				m["backends"].(map[string]any)["pages"].(map[string]any)["backend"] = "mystery"
			},
			want: "unknown backend kind",
		},
		{
			name: "store without namespace",
			mutate: func(m map[string]any) {
				opts := m["backends"].(map[string]any)["pages"].(map[string]any)["options"].(map[string]any)
				delete(opts, "namespace")
			},
			want: "namespace is required",
		},
		{
			name: "composite with unknown member",
			mutate: func(m map[string]any) {
				comp := m["backends"].(map[string]any)["everywhere"].(map[string]any)["options"].(map[string]any)
				comp["backends"] = []string{"pages", "ghost"}
			},
			want: "unknown member backend",
		},
		{
			name: "fastly without credentials",
			mutate: func(m map[string]any) {
				opts := m["backends"].(map[string]any)["edge"].(map[string]any)["options"].(map[string]any)
				delete(opts, "api_key")
			},
			want: "api_key",
		},
		{
			name: "redis store without addr",
			mutate: func(m map[string]any) {
				store := m["backends"].(map[string]any)["pages"].(map[string]any)["options"].(map[string]any)["store"].(map[string]any)
				store["kind"] = "redis"
			},
			want: "store.redis.addr",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tree := validTree()
			tc.mutate(tree)
			_, err := LoadMap(tree)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want substring %q", err, tc.want)
			}
		})
	}
}

func TestDefaultRequiredWithMultipleBackends(t *testing.T) {
	tree := validTree()
	delete(tree, "default_backend")
	if _, err := LoadMap(tree); err == nil {
		t.Fatal("expected error: multiple backends without default")
	}
}

func TestSingleBackendNeedsNoDefault(t *testing.T) {
	cfg, err := LoadMap(map[string]any{
		"backends": map[string]any{
			"only": map[string]any{
				"backend": "store",
				"options": map[string]any{"namespace": "x"},
			},
		},
	})
	if err != nil {
		t.Fatalf("LoadMap: %v", err)
	}
	if cfg.Default() != "only" {
		t.Fatalf("Default() = %q", cfg.Default())
	}
}

func TestLoadFileYAML(t *testing.T) {
	yaml := `
default_backend: pages
backends:
  pages:
    backend: store
    options:
      namespace: pages
      ttl: 5m
      store:
        kind: memory
`
	path := filepath.Join(t.TempDir(), "cache.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Backends["pages"].Options.TTL != 5*time.Minute {
		t.Fatalf("ttl = %v", cfg.Backends["pages"].Options.TTL)
	}
}

func TestLoadFileUnsupportedExtension(t *testing.T) {
	if _, err := LoadFile("cache.toml"); err == nil {
		t.Fatal("expected unsupported-extension error")
	}
}
