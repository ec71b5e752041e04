package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/devsettings/internal/api"
	"github.com/kalambet/devsettings/internal/config"
	"github.com/kalambet/devsettings/internal/mirror"
	"github.com/kalambet/devsettings/internal/storage"
	"github.com/kalambet/devsettings/internal/tasks"
)

var ctx = context.Background()

// testDevice is a fake sysfs tree plus a profile and environment pointing
// every command at it.
type testDevice struct {
	dir     string
	dataDir string
	paths   map[string]string
}

func newTestDevice(t *testing.T) *testDevice {
	t.Helper()
	dir := t.TempDir()
	d := &testDevice{
		dir:     dir,
		dataDir: filepath.Join(dir, "data"),
		paths:   make(map[string]string),
	}

	files := map[string]string{
		"hbm":        "0",
		"dc_dim":     "0",
		"night_mode": "0",
		"vib_level":  "3",
		"enforce":    "1",
		"boot_id":    "boot-a",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		d.paths[name] = path
	}

	profile := fmt.Sprintf(`name: test
high_refresh_rate: true
sim_slots: 2
paths:
  hbm: %s
  dc_dim: %s
  night_mode: %s
  vibration_level: %s
  vibrator_duration: %s
  vibrator_activate: %s
  light_sensor: %s
  selinux_enforce: %s
  boot_id: %s
services:
  hbm: ""
  fps_overlay: ""
  dolby: ""
  observer: ""
dolby_component: ""
setup_wizard_process: ""
`, d.paths["hbm"], d.paths["dc_dim"], d.paths["night_mode"], d.paths["vib_level"],
		filepath.Join(dir, "vib_duration"), filepath.Join(dir, "vib_activate"),
		filepath.Join(dir, "lux"), d.paths["enforce"], d.paths["boot_id"])
	profilePath := filepath.Join(dir, "profile.yaml")
	if err := os.WriteFile(profilePath, []byte(profile), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("DEVSETTINGS_STORAGE_DATA_DIR", d.dataDir)
	t.Setenv("DEVSETTINGS_PROVIDER_BACKEND", "file")
	t.Setenv("DEVSETTINGS_DEVICE_PROFILE", profilePath)
	t.Setenv("DEVSETTINGS_RADIO_TUNNEL_COMMAND", "")
	t.Setenv("DEVSETTINGS_API_TOKEN", "test-token")

	// No daemon unless a test starts one.
	useDaemon(t, "http://127.0.0.1:1", &http.Client{Timeout: time.Second})
	return d
}

// useDaemon points the CLI's API client at baseURL for the test.
func useDaemon(t *testing.T, baseURL string, hc *http.Client) {
	t.Helper()
	old := newAPIClient
	newAPIClient = func(config.Config) (*apiClient, error) {
		return &apiClient{baseURL: baseURL, token: "test-token", httpClient: hc}, nil
	}
	t.Cleanup(func() { newAPIClient = old })
}

// startDaemon serves the control API for the test device the way
// `devsettings serve` does and points the CLI at it.
func startDaemon(t *testing.T) (*app, *mirror.Controller) {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	a, err := openApp(cfg, newLogger("error"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { a.Close() })

	sched := tasks.NewGoScheduler(ctx, nil)
	t.Cleanup(sched.Wait)

	ctrl, err := mirror.Open(ctx, a.deps(a.serviceSwitch(), sched, cliNotifier{}))
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(api.NewHandler(api.Deps{Mirror: ctrl, Token: "test-token"}))
	t.Cleanup(srv.Close)

	useDaemon(t, srv.URL, srv.Client())
	return a, ctrl
}

func (d *testDevice) read(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(d.paths[name])
	if err != nil {
		t.Fatal(err)
	}
	return strings.TrimSpace(string(data))
}

func (d *testDevice) write(t *testing.T, name, value string) {
	t.Helper()
	if err := os.WriteFile(d.paths[name], []byte(value+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

// execute runs the root command with args and returns what it wrote to
// stdout. Flags are reset so runs do not leak into each other.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	oldColor := noColor
	noColor = true
	t.Cleanup(func() { noColor = oldColor })

	getCmd.Flags().Set("json", "false")
	listCmd.Flags().Set("json", "false")
	bootCmd.Flags().Set("force", "false")
	tokenCmd.Flags().Set("rotate", "false")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	defer rootCmd.SetOut(nil)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return out.String(), err
}

func TestSetCommand_WritesDeviceFile(t *testing.T) {
	d := newTestDevice(t)

	if _, err := execute(t, "set", "dc_switch", "true"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := d.read(t, "dc_dim"); got != "1" {
		t.Errorf("dc_dim = %q, want 1", got)
	}

	out, err := execute(t, "get", "dc_switch")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.Contains(out, "dc_switch") || !strings.Contains(out, "true") {
		t.Errorf("get output = %q, want dc_switch true", out)
	}
}

func TestSetCommand_UnknownKey(t *testing.T) {
	newTestDevice(t)

	_, err := execute(t, "set", "warp_drive", "true")
	if !errors.Is(err, mirror.ErrUnknownSetting) {
		t.Errorf("err = %v, want ErrUnknownSetting", err)
	}
}

func TestSetCommand_MissingArgs(t *testing.T) {
	newTestDevice(t)

	_, err := execute(t, "set", "hbm")
	if err == nil {
		t.Fatal("expected error for missing value")
	}
	if !strings.Contains(err.Error(), "accepts 2 arg") {
		t.Errorf("error = %q, want arg count message", err.Error())
	}
}

func TestSetCommand_VibrationClamped(t *testing.T) {
	d := newTestDevice(t)

	if _, err := execute(t, "set", "vib_strength", "42"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := d.read(t, "vib_level"); got != "10" {
		t.Errorf("vib_level = %q, want 10", got)
	}
}

func TestListCommand_JSON(t *testing.T) {
	newTestDevice(t)

	out, err := execute(t, "list", "--json")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var states []mirror.State
	if err := json.Unmarshal([]byte(out), &states); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}

	keys := make(map[string]mirror.State)
	for _, st := range states {
		keys[st.Key] = st
	}
	for _, k := range []string{mirror.KeyHBM, mirror.KeyRefreshRate, mirror.KeyVibStrength, mirror.KeyNrMode} {
		if _, ok := keys[k]; !ok {
			t.Errorf("list is missing %s", k)
		}
	}
	if !keys[mirror.KeyHBM].Enabled {
		t.Error("hbm should be enabled when its file is writable")
	}
}

func TestBootCommand_RestoresOncePerBoot(t *testing.T) {
	d := newTestDevice(t)

	if _, err := execute(t, "set", "hbm", "true"); err != nil {
		t.Fatalf("set: %v", err)
	}
	d.write(t, "hbm", "0")

	if _, err := execute(t, "boot"); err != nil {
		t.Fatalf("boot: %v", err)
	}
	if got := d.read(t, "hbm"); got != "5" {
		t.Errorf("hbm after boot = %q, want 5", got)
	}

	// Same boot: nothing is replayed.
	d.write(t, "hbm", "0")
	if _, err := execute(t, "boot"); err != nil {
		t.Fatalf("second boot: %v", err)
	}
	if got := d.read(t, "hbm"); got != "0" {
		t.Errorf("hbm after second boot = %q, want 0", got)
	}

	if _, err := execute(t, "boot", "--force"); err != nil {
		t.Fatalf("forced boot: %v", err)
	}
	if got := d.read(t, "hbm"); got != "5" {
		t.Errorf("hbm after forced boot = %q, want 5", got)
	}
}

func TestSELinuxCommand_PersistsMode(t *testing.T) {
	d := newTestDevice(t)

	if _, err := execute(t, "selinux", "permissive"); err != nil {
		t.Fatalf("selinux: %v", err)
	}

	store, err := storage.Open(d.dataDir)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	enforcing, err := store.GetBool(storage.SELinuxNamespace, mirror.KeySELinuxMode, true)
	if err != nil {
		t.Fatal(err)
	}
	if enforcing {
		t.Error("selinux_mode should be stored as permissive")
	}
}

func TestParseSELinuxMode(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"enforcing", true, false},
		{"Permissive", false, false},
		{"1", true, false},
		{"0", false, false},
		{"disabled", false, true},
	}
	for _, tt := range tests {
		got, err := parseSELinuxMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseSELinuxMode(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseSELinuxMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestConfigSetAndShow(t *testing.T) {
	newTestDevice(t)

	if _, err := execute(t, "config", "set", "server.port", "5090"); err != nil {
		t.Fatalf("config set: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 5090 {
		t.Errorf("server.port = %d, want 5090", cfg.Server.Port)
	}

	out, err := execute(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "server.port = 5090") {
		t.Errorf("config show output = %q, want server.port = 5090", out)
	}
}

func TestConfigSet_InvalidKey(t *testing.T) {
	newTestDevice(t)

	if _, err := execute(t, "config", "set", "no.such.key", "1"); err == nil {
		t.Fatal("expected error for unknown config key")
	}
}

func TestTokenCommand_EnvOverride(t *testing.T) {
	newTestDevice(t)

	out, err := execute(t, "token")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if strings.TrimSpace(out) != "test-token" {
		t.Errorf("token = %q, want test-token", out)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "devsettings ") {
		t.Errorf("version output = %q", out)
	}
}

type testServer struct {
	server *httptest.Server
	auths  []string
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}
	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.auths = append(ts.auths, r.Header.Get("Authorization"))
		if resp, ok := responses[r.Method+" "+r.URL.Path]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"message":"unknown setting \"warp\"","type":"not_found_error"}}`))
	}))
	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

func TestSetCommand_GoesThroughRunningDaemon(t *testing.T) {
	d := newTestDevice(t)
	a, daemon := startDaemon(t)

	if _, err := execute(t, "set", "auto_refresh_rate", "true"); err != nil {
		t.Fatalf("set auto_refresh_rate: %v", err)
	}

	st, err := daemon.Get(mirror.KeyRefreshRate)
	if err != nil {
		t.Fatal(err)
	}
	if st.Enabled {
		t.Fatal("daemon session should disable refresh_rate once auto refresh is on")
	}

	_, err = execute(t, "set", "refresh_rate", "true")
	if !errors.Is(err, mirror.ErrControlDisabled) {
		t.Fatalf("set refresh_rate err = %v, want ErrControlDisabled", err)
	}

	manual, err := a.store.GetBool(storage.DefaultNamespace, mirror.KeyRefreshRate, true)
	if err != nil {
		t.Fatal(err)
	}
	auto, err := a.store.GetBool(storage.DefaultNamespace, mirror.KeyAutoRefreshRate, false)
	if err != nil {
		t.Fatal(err)
	}
	if manual || !auto {
		t.Errorf("persisted refresh_rate=%v auto_refresh_rate=%v, want false/true", manual, auto)
	}

	// Device writes still happen, through the daemon.
	if _, err := execute(t, "set", "night_switch", "true"); err != nil {
		t.Fatalf("set night_switch: %v", err)
	}
	if got := d.read(t, "night_mode"); got != "1" {
		t.Errorf("night_mode = %q, want 1", got)
	}
}

func TestGetAndListCommands_ThroughDaemon(t *testing.T) {
	newTestDevice(t)
	startDaemon(t)

	out, err := execute(t, "get", "hbm")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.HasPrefix(out, "hbm") {
		t.Errorf("get output = %q", out)
	}

	if _, err := execute(t, "get", "warp_drive"); !errors.Is(err, mirror.ErrUnknownSetting) {
		t.Errorf("get unknown err = %v, want ErrUnknownSetting", err)
	}

	out, err = execute(t, "list", "--json")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var states []mirror.State
	if err := json.Unmarshal([]byte(out), &states); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if len(states) == 0 || states[0].Key != mirror.KeyHBM {
		t.Errorf("list = %+v, want hbm first", states)
	}
}

func TestStatusSettings_DecodesRealHandler(t *testing.T) {
	newTestDevice(t)
	startDaemon(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	client, err := newAPIClient(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !client.healthy(ctx) {
		t.Fatal("daemon should be healthy")
	}

	states, err := remoteSettings{client: client}.List(ctx)
	if err != nil {
		t.Fatalf("listing settings: %v", err)
	}
	enabled := 0
	for _, st := range states {
		if st.Enabled {
			enabled++
		}
	}
	want := fmt.Sprintf("%d of %d enabled", enabled, len(states))
	if got := enabledLabel(states); got != want || len(states) == 0 {
		t.Errorf("enabledLabel = %q, want %q over a non-empty list", got, want)
	}
}

func TestClient_SendsBearerToken(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health": `{"status":"ok"}`,
	})
	c := ts.client()

	if !c.healthy(ctx) {
		t.Fatal("server should be healthy")
	}
	for _, a := range ts.auths {
		if a != "Bearer test-token" {
			t.Errorf("auth = %q, want Bearer test-token", a)
		}
	}
}

func TestClient_ErrorBody(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := ts.client().get(ctx, "/settings/warp")
	if err != nil {
		t.Fatal(err)
	}
	err = decodeJSON(resp, &struct{}{})
	if !errors.Is(err, mirror.ErrUnknownSetting) || !strings.Contains(err.Error(), "warp") {
		t.Errorf("err = %v, want ErrUnknownSetting with server message", err)
	}
}

func TestClient_ServerDown(t *testing.T) {
	c := &apiClient{baseURL: "http://127.0.0.1:1", token: "t", httpClient: http.DefaultClient}
	if c.healthy(ctx) {
		t.Error("stopped server reported healthy")
	}
	_, err := c.get(ctx, "/settings")
	if err == nil || !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("err = %v, want not reachable", err)
	}
}

func TestPIDFile(t *testing.T) {
	path := pidFilePath(t.TempDir())
	if err := writePIDFile(path); err != nil {
		t.Fatal(err)
	}
	pid, err := readPIDFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}
	removePIDFile(path)
	if _, err := readPIDFile(path); err == nil {
		t.Error("PID file should be gone")
	}
}

func TestFormatState(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()
	noColor = true

	on := formatState(mirror.State{Key: "vib_strength", Kind: "int", Value: "4", Enabled: true, Range: &mirror.Range{Min: 0, Max: 10}})
	if !strings.Contains(on, "[0..10]") || strings.Contains(on, "disabled") {
		t.Errorf("formatState = %q", on)
	}
	off := formatState(mirror.State{Key: "hbm", Kind: "bool", Value: "false"})
	if !strings.HasSuffix(off, "(disabled)") {
		t.Errorf("formatState = %q, want disabled marker", off)
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	if got := colorize(colorGreen, "test message"); got != "test message" {
		t.Errorf("colorize with noColor=true = %q", got)
	}

	noColor = false
	if got := colorize(colorGreen, "test message"); !strings.Contains(got, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", got)
	}
}

func TestNewLogger_Levels(t *testing.T) {
	old := logLevel
	defer func() { logLevel = old }()

	logLevel = ""
	if got := newLogger("debug").GetLevel().String(); got != "debug" {
		t.Errorf("level = %s, want debug", got)
	}
	if got := newLogger("bogus").GetLevel().String(); got != "info" {
		t.Errorf("level = %s, want info", got)
	}
	logLevel = "error"
	if got := newLogger("debug").GetLevel().String(); got != "error" {
		t.Errorf("flag level = %s, want error", got)
	}
}
