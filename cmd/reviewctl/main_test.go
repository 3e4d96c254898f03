package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stake-plus/mod-review/src/app"
	"github.com/stake-plus/mod-review/src/config"
	"github.com/stake-plus/mod-review/src/review"
	"github.com/stake-plus/mod-review/src/types"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func newTestCLI(t *testing.T) (*cli, *bytes.Buffer) {
	t.Helper()
	svc, err := app.Open(context.Background(), config.ReviewConfig{
		StoreBackend:   config.BackendMemory,
		DiscordTimeout: time.Second,
		StoreTimeout:   time.Second,
		LockTimeout:    time.Second,
		Placeholders:   review.DefaultPlaceholders,
	}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	var buf bytes.Buffer
	return &cli{
		out: &buf,
		svc: svc,
		open: func(context.Context) (*app.Services, error) {
			return nil, errors.New("unexpected open")
		},
	}, &buf
}

func run(c *cli, args ...string) error {
	root := newRootCmd(c)
	root.SetArgs(args)
	return root.Execute()
}

func seed(t *testing.T, c *cli, id, name string) types.ApplicationID {
	t.Helper()
	a, err := c.svc.Store.Insert(context.Background(), types.Submission{
		DiscordID: id, DiscordUsername: name, Score: 80, TotalQuestions: 10, CorrectAnswers: 8, WrongAnswers: 2,
	})
	require.NoError(t, err)
	return a.ID
}

func TestSubmitAndList(t *testing.T) {
	c, out := newTestCLI(t)

	require.NoError(t, run(c, "submit", "--discord-id", "412345678901234567", "--username", "alice", "--total", "10", "--correct", "7"))
	assert.Contains(t, out.String(), "created application")

	out.Reset()
	require.NoError(t, run(c, "list", "--status", "pending"))
	assert.Contains(t, out.String(), "alice")
	assert.Contains(t, out.String(), "7/10")

	apps, err := c.svc.Store.List(context.Background(), types.ListFilter{})
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, 3, apps[0].WrongAnswers)
}

func TestListRejectsUnknownStatus(t *testing.T) {
	c, _ := newTestCLI(t)
	err := run(c, "list", "--status", "archived")
	assert.ErrorContains(t, err, "unknown status")
}

func TestSubmitRequiresIdentity(t *testing.T) {
	c, _ := newTestCLI(t)
	assert.Error(t, run(c, "submit", "--username", "alice"))
}

func TestRejectCommitsWithoutDiscord(t *testing.T) {
	c, out := newTestCLI(t)
	id := seed(t, c, "412345678901234567", "alice")

	require.NoError(t, run(c, "reject", string(id), "--reviewer", "AdminBob", "--reason", "Low score"))
	assert.Contains(t, out.String(), "application rejected")
	assert.Contains(t, out.String(), "note:")

	got, err := c.svc.Store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, types.StatusRejected, got.Status)
	assert.Equal(t, "AdminBob", got.ReviewedBy)
	assert.Equal(t, "Low score", got.RejectionReason)

	out.Reset()
	require.NoError(t, run(c, "reject", string(id), "--reviewer", "AdminBob"))
	assert.Contains(t, out.String(), "already rejected")
}

func TestAcceptRefusesTestIdentity(t *testing.T) {
	c, out := newTestCLI(t)
	id := seed(t, c, "412345678901234567", "testuser")

	err := run(c, "accept", string(id), "--reviewer", "AdminBob")
	require.Error(t, err)
	assert.Contains(t, err.Error(), review.CodeTestIdentity)
	assert.Contains(t, out.String(), "transition failed")

	got, err := c.svc.Store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, got.Status)
}

func TestAcceptUnknownApplication(t *testing.T) {
	c, _ := newTestCLI(t)
	err := run(c, "accept", "9999")
	require.Error(t, err)
	assert.Contains(t, err.Error(), review.CodeNotFound)
}

func TestShowAndStats(t *testing.T) {
	c, out := newTestCLI(t)
	id := seed(t, c, "412345678901234567", "alice")
	seed(t, c, "512345678901234567", "carol")

	require.NoError(t, run(c, "show", string(id), "--json"))
	var a types.Application
	require.NoError(t, json.Unmarshal(out.Bytes(), &a))
	assert.Equal(t, "alice", a.DiscordUsername)

	out.Reset()
	require.NoError(t, run(c, "show", string(id)))
	assert.Contains(t, out.String(), "8 / 2 / 10")

	out.Reset()
	require.NoError(t, run(c, "stats"))
	assert.Contains(t, out.String(), "pending")
	assert.Contains(t, out.String(), "2")
}

func TestOpenErrorSurfaces(t *testing.T) {
	var buf bytes.Buffer
	c := &cli{out: &buf, open: func(context.Context) (*app.Services, error) {
		return nil, errors.New("no config")
	}}
	assert.ErrorContains(t, run(c, "stats"), "no config")
}
