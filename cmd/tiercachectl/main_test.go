package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/tiercache"
	"github.com/unkn0wn-root/tiercache/config"
	"github.com/unkn0wn-root/tiercache/internal/app"
)

func setup(t *testing.T) (cfgPath string, db string) {
	return setupWith(t, "")
}

// setupWith appends extra YAML to the base config.
func setupWith(t *testing.T, extra string) (cfgPath string, db string) {
	t.Helper()
	dir := t.TempDir()
	db = filepath.Join(dir, "cache.db")
	cfgPath = filepath.Join(dir, "tiercache.yaml")
	yaml := "logging:\n  level: error\ndurable:\n  path: " + db + "\n" + extra
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o644))
	return cfgPath, db
}

// seed writes through a separate app so the CLI sees it via the durable tier.
func seed(t *testing.T, cfgPath, ns, key, val string) {
	t.Helper()
	ctx := context.Background()
	cfg, err := config.LoadFrom(cfgPath)
	require.NoError(t, err)
	a, err := app.New(ctx, cfg, app.NewLogger(cfg.Logging, &bytes.Buffer{}), io.Discard)
	require.NoError(t, err)
	svc, _ := a.Registry.Lookup(toKind(ns))
	require.NoError(t, svc.Set(ctx, key, []byte(val), 0))
	require.NoError(t, a.Close(ctx))
}

func ctl(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(context.Background(), append([]string{"-env", ""}, args...), &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestGetDeleteRoundTrip(t *testing.T) {
	cfgPath, _ := setup(t)
	seed(t, cfgPath, "user", "u1", "Ada")

	code, out, _ := ctl(t, "-config", cfgPath, "get", "-ns", "user", "u1")
	assert.Equal(t, exitOK, code)
	assert.Equal(t, "Ada", out)

	code, _, _ = ctl(t, "-config", cfgPath, "delete", "-ns", "user", "u1")
	assert.Equal(t, exitOK, code)

	code, _, stderr := ctl(t, "-config", cfgPath, "get", "-ns", "user", "u1")
	assert.Equal(t, exitMiss, code)
	assert.Contains(t, stderr, "not cached")
}

func TestStatsAndSweepPrintJSON(t *testing.T) {
	cfgPath, _ := setup(t)

	code, out, _ := ctl(t, "-config", cfgPath, "stats")
	require.Equal(t, exitOK, code)
	var stats map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Contains(t, stats, "avatar")

	code, out, _ = ctl(t, "-config", cfgPath, "sweep")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "chat")
}

func TestClearRemovesNamespace(t *testing.T) {
	cfgPath, _ := setup(t)
	seed(t, cfgPath, "chat", "m1", "hi")

	code, _, _ := ctl(t, "-config", cfgPath, "clear", "-ns", "chat")
	assert.Equal(t, exitOK, code)
	code, _, _ = ctl(t, "-config", cfgPath, "get", "-ns", "chat", "m1")
	assert.Equal(t, exitMiss, code)
}

func TestBumpInvalidatesAcrossRuns(t *testing.T) {
	mr := miniredis.RunT(t)
	cfgPath, _ := setupWith(t, "versions: redis\nremote:\n  redis:\n    addr: "+mr.Addr()+"\n")
	seed(t, cfgPath, "chat", "m1", "hi")

	code, out, _ := ctl(t, "-config", cfgPath, "get", "-ns", "chat", "m1")
	require.Equal(t, exitOK, code)
	require.Equal(t, "hi", out)

	code, out, _ = ctl(t, "-config", cfgPath, "bump", "-ns", "chat")
	require.Equal(t, exitOK, code)
	assert.Equal(t, "1#1\n", out)

	// a fresh process sees the bumped generation; the durable copy is stale
	code, _, _ = ctl(t, "-config", cfgPath, "get", "-ns", "chat", "m1")
	assert.Equal(t, exitMiss, code)
}

func TestBumpRefusesLocalVersions(t *testing.T) {
	cfgPath, _ := setup(t)
	seed(t, cfgPath, "chat", "m1", "hi")

	code, _, stderr := ctl(t, "-config", cfgPath, "bump", "-ns", "chat")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "versions: redis")

	code, out, _ := ctl(t, "-config", cfgPath, "get", "-ns", "chat", "m1")
	assert.Equal(t, exitOK, code)
	assert.Equal(t, "hi", out)
}

func TestUsageErrors(t *testing.T) {
	cfgPath, _ := setup(t)
	for _, args := range [][]string{
		{},
		{"frobnicate"},
		{"get", "-ns", "nope", "k"},
		{"get", "-ns", "user"},
	} {
		code, _, _ := ctl(t, append([]string{"-config", cfgPath}, args...)...)
		assert.Equal(t, exitUsage, code, "args %v", args)
	}
}

func toKind(ns string) tiercache.Kind { return tiercache.Kind(ns) }
