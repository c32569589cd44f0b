package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"remote-ui/go-backend/internal/bootstrap/serverconfig"
	"remote-ui/go-backend/internal/composition/daemonserver"
	"remote-ui/go-backend/pkg/models"
)

func startDaemon(t *testing.T) (*daemonserver.Daemon, *httptest.Server) {
	t.Helper()
	cfg := serverconfig.DefaultConfig()
	cfg.Env = "test"
	cfg.RPC.Token = "ctl-token"
	d, err := daemonserver.New(cfg, daemonserver.NewLogger(&bytes.Buffer{}, cfg))
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	ts := httptest.NewServer(d.Server.Handler())
	t.Cleanup(func() {
		ts.Close()
		d.Close()
	})
	return d, ts
}

func runCtl(t *testing.T, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := run(ctx, args, &out)
	return &out, err
}

func TestOpenRenderTriggerClose(t *testing.T) {
	d, ts := startDaemon(t)
	common := []string{"--rpc_url=" + ts.URL, "--token=ctl-token", "--client_id=ctl"}

	out, err := runCtl(t, append([]string{"open"}, append(common, "/")...)...)
	assert.Equal(t, nil, err)
	var opened models.OpenSessionResult
	assert.Equal(t, nil, json.Unmarshal(out.Bytes(), &opened))
	assert.NotEqual(t, "", opened.Session)
	assert.Equal(t, 1, d.Engine.SessionCount())

	session, ok := d.Engine.Session(opened.Session)
	assert.Equal(t, true, ok)
	assert.Equal(t, "http:ctl", session.Owner())

	out, err = runCtl(t, append([]string{"render"}, append(common, opened.Session)...)...)
	assert.Equal(t, nil, err)
	var rendered models.RenderSessionResult
	assert.Equal(t, nil, json.Unmarshal(out.Bytes(), &rendered))
	assert.Equal(t, opened.Root["type"], rendered.Root["type"])

	out, err = runCtl(t, append([]string{"trigger"}, append(common, opened.Session, "action_increment*")...)...)
	assert.Equal(t, nil, err)
	var status models.StatusResult
	assert.Equal(t, nil, json.Unmarshal(out.Bytes(), &status))
	assert.Equal(t, "ok", status.Status)

	_, err = runCtl(t, append([]string{"close"}, append(common, opened.Session)...)...)
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, d.Engine.SessionCount())
}

func TestTriggerReportsRPCErrors(t *testing.T) {
	_, ts := startDaemon(t)

	_, err := runCtl(t, "trigger", "--rpc_url="+ts.URL, "--token=ctl-token", "missing", "action_x")
	rpcErr, ok := err.(*rpcCallError)
	assert.Equal(t, true, ok)
	assert.Equal(t, -32011, rpcErr.Code)

	_, err = runCtl(t, "trigger", "--rpc_url="+ts.URL, "--token=ctl-token", "--form={", "missing", "form_x_y")
	assert.NotEqual(t, nil, err)

	_, err = runCtl(t, "open", "--rpc_url="+ts.URL, "/")
	assert.NotEqual(t, nil, err)
}

func TestWatchPrintsSessionEvents(t *testing.T) {
	d, ts := startDaemon(t)
	common := []string{"--rpc_url=" + ts.URL, "--token=ctl-token"}

	out, err := runCtl(t, append([]string{"open"}, append(common, "/")...)...)
	assert.Equal(t, nil, err)
	var opened models.OpenSessionResult
	assert.Equal(t, nil, json.Unmarshal(out.Bytes(), &opened))

	session, ok := d.Engine.Session(opened.Session)
	assert.Equal(t, true, ok)
	session.Update()

	out, err = runCtl(t, append([]string{"watch"}, append(common, "--session="+opened.Session, "--cursor=0", "--count=1")...)...)
	assert.Equal(t, nil, err)
	var n models.Notification
	assert.Equal(t, nil, json.Unmarshal(out.Bytes(), &n))
	assert.Equal(t, "onSessionUpdate", n.Method)
	assert.Equal(t, int64(1), n.Params.Seq)
}
