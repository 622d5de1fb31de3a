package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pktcloud/internal/config"
	"pktcloud/internal/packet"
	"pktcloud/internal/settings"
	"pktcloud/internal/store"
)

// resetFlags points the command globals at a fresh workspace.
func resetFlags(t *testing.T) {
	t.Helper()
	logger = zap.NewNop()
	workspace = t.TempDir()
	credUsername, credPassword, credRemember = "", "", false
	setName, makePublic, description = "", false, ""
	selectIndex, sortBy, sortDesc = 0, "description", false
	t.Setenv("PKTCLOUD_PASSWORD", "")
}

// fakeCloud records the forms it receives and answers from a script.
type fakeCloud struct {
	mu      sync.Mutex
	forms   []url.Values
	keys    []string
	replies []string
}

func startFakeCloud(t *testing.T, replies ...string) *fakeCloud {
	t.Helper()
	fc := &fakeCloud{replies: replies}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fc.mu.Lock()
		defer fc.mu.Unlock()
		if r.Method == http.MethodGet {
			fc.keys = append(fc.keys, r.URL.Query().Get("key"))
		} else {
			_ = r.ParseForm()
			fc.forms = append(fc.forms, r.PostForm)
		}
		if len(fc.replies) > 0 {
			io.WriteString(w, fc.replies[0])
			fc.replies = fc.replies[1:]
		}
	}))
	t.Cleanup(ts.Close)
	t.Setenv("PKTCLOUD_URL", ts.URL+"/")
	return fc
}

func newCmd() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	addCredentialFlags(cmd)
	return cmd
}

func output(cmd *cobra.Command) string {
	return cmd.OutOrStdout().(*bytes.Buffer).String()
}

func openSettings(t *testing.T) *settings.Store {
	t.Helper()
	st, err := settings.Open(config.DefaultConfig().SettingsPath(workspace))
	require.NoError(t, err)
	return st
}

func TestListPacketsEmpty(t *testing.T) {
	resetFlags(t)
	cmd := newCmd()

	require.NoError(t, listPackets(cmd, nil))
	assert.Contains(t, output(cmd), "No local packets")
}

func TestFirstRunWritesDefaultConfig(t *testing.T) {
	resetFlags(t)

	require.NoError(t, listPackets(newCmd(), nil))

	cfg, err := config.Load(config.Path(workspace))
	require.NoError(t, err)
	assert.FileExists(t, config.Path(workspace))
	assert.Equal(t, "packets.db", cfg.Store.DatabasePath)
}

func TestLoginRemembersCredentials(t *testing.T) {
	resetFlags(t)
	fc := startFakeCloud(t, "Success: welcome")

	cmd := newCmd()
	require.NoError(t, cmd.Flags().Set("remember", "true"))
	credUsername, credPassword = "alice", "secret"

	require.NoError(t, runLogin(cmd, nil))
	assert.Contains(t, output(cmd), "Success: Success: welcome")

	require.Len(t, fc.forms, 1)
	assert.Equal(t, "alice", fc.forms[0].Get("un"))
	assert.False(t, fc.forms[0].Has("newaccount"))

	st := openSettings(t)
	assert.Equal(t, "alice", st.String(settings.KeyUsername, ""))
	assert.True(t, st.Bool(settings.KeyRemember, false))

	// A second login needs no flags.
	credUsername, credPassword = "", ""
	fc.mu.Lock()
	fc.replies = []string{"success"}
	fc.mu.Unlock()
	require.NoError(t, runLogin(newCmd(), nil))
	require.Len(t, fc.forms, 2)
	assert.Equal(t, "alice", fc.forms[1].Get("un"))
}

func TestLoginServerError(t *testing.T) {
	resetFlags(t)
	startFakeCloud(t, "error: wrong password")
	credUsername, credPassword = "alice", "nope"

	err := runLogin(newCmd(), nil)
	require.Error(t, err)
	assert.Equal(t, "error: wrong password", err.Error())
}

func TestLoginValidation(t *testing.T) {
	resetFlags(t)
	fc := startFakeCloud(t)
	credUsername, credPassword = "al", "secret"

	err := runLogin(newCmd(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Too short.")
	assert.Empty(t, fc.forms)
}

func TestSignupLogsIn(t *testing.T) {
	resetFlags(t)
	fc := startFakeCloud(t, "success: account created", "success: logged in")
	credUsername, credPassword = "alice", "secret"

	cmd := newCmd()
	require.NoError(t, runSignup(cmd, nil))

	require.Len(t, fc.forms, 2)
	assert.Equal(t, "1", fc.forms[0].Get("newaccount"))
	assert.False(t, fc.forms[1].Has("newaccount"))
	assert.Contains(t, output(cmd), "Success: success: logged in")
}

func TestUploadSendsLocalPackets(t *testing.T) {
	resetFlags(t)
	fc := startFakeCloud(t, "success: saved")

	ps, err := store.NewStore(config.DefaultConfig().DatabasePath(workspace))
	require.NoError(t, err)
	_, err = ps.Merge(context.Background(), []packet.Packet{{Name: "ping", ToIP: "10.0.0.9", Port: 7, Protocol: "UDP"}})
	require.NoError(t, err)
	require.NoError(t, ps.Close())

	cmd := newCmd()
	credUsername, credPassword = "alice", "secret"
	setName, makePublic, description = "bench", true, "lab probes"

	require.NoError(t, runUpload(cmd, nil))
	assert.Contains(t, output(cmd), `Saving 1 packets to the cloud as "bench"`)

	require.Len(t, fc.forms, 1)
	form := fc.forms[0]
	assert.Equal(t, "bench", form.Get("setname"))
	assert.Equal(t, "1", form.Get("makepublic"))
	assert.Equal(t, "lab probes", form.Get("pubblurb"))

	sent := packet.ImportJSON([]byte(form.Get("packetjson")))
	require.Len(t, sent, 1)
	assert.Equal(t, "ping", sent[0].Name)
}

func TestImportSelectsSortedRow(t *testing.T) {
	resetFlags(t)

	small, err := packet.ExportJSON([]packet.Packet{{Name: "s1"}})
	require.NoError(t, err)
	big, err := packet.ExportJSON([]packet.Packet{{Name: "b1"}, {Name: "b2"}, {Name: "b3"}})
	require.NoError(t, err)
	body, err := json.Marshal([]map[string]string{
		{"description": "small", "packetjson": string(small)},
		{"description": "big", "packetjson": string(big)},
	})
	require.NoError(t, err)
	fc := startFakeCloud(t, string(body))

	sortBy, sortDesc, selectIndex = "count", true, 1
	cmd := newCmd()
	require.NoError(t, runImport(cmd, []string{"https://cloud.example/share?key=k9"}))

	assert.Equal(t, []string{"k9"}, fc.keys)
	out := output(cmd)
	assert.Contains(t, out, "Found 2 sets of packets!")
	assert.Contains(t, out, `Imported 3 packets from "big"`)

	ps, err := store.NewStore(config.DefaultConfig().DatabasePath(workspace))
	require.NoError(t, err)
	defer ps.Close()
	n, err := ps.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestImportNothingFound(t *testing.T) {
	resetFlags(t)
	startFakeCloud(t, "[]")

	err := runImport(newCmd(), []string{"k"})
	require.Error(t, err)
	assert.Equal(t, "Did not fetch any packets", err.Error())
}

func TestImportSelectOutOfRange(t *testing.T) {
	resetFlags(t)
	one, err := packet.ExportJSON([]packet.Packet{{Name: "only"}})
	require.NoError(t, err)
	body, err := json.Marshal([]map[string]string{{"description": "one", "packetjson": string(one)}})
	require.NoError(t, err)
	startFakeCloud(t, string(body))

	selectIndex = 5
	err = runImport(newCmd(), []string{"k"})
	assert.ErrorContains(t, err, "--select must be between 1 and 1")
}

func TestParseSortColumn(t *testing.T) {
	_, err := parseSortColumn("size")
	assert.Error(t, err)
	col, err := parseSortColumn("Count")
	require.NoError(t, err)
	assert.Equal(t, 1, int(col))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "x", truncate("x", 1))
}
