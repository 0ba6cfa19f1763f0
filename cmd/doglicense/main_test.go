package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/DogLicense/internal/model"
)

type harness struct {
	t    *testing.T
	dir  string
	base []string
}

func newHarness(t *testing.T) *harness {
	dir := t.TempDir()
	return &harness{
		t:   t,
		dir: dir,
		base: []string{
			"--store", "sqlite",
			"--sqlite-path", filepath.Join(dir, "doglicense.sqlite"),
			"--upload-dir", filepath.Join(dir, "certificates"),
			"--review", "inline",
		},
	}
}

func (h *harness) run(args ...string) (string, error) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(append([]string{}, args...), h.base...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) certificate() string {
	p := filepath.Join(h.dir, "rabies.png")
	data := append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 1024)...)
	require.NoError(h.t, os.WriteFile(p, data, 0o600))
	return p
}

func TestApplySubmits(t *testing.T) {
	h := newHarness(t)
	out, err := h.run("apply",
		"--owner-name", "Jane Doe",
		"--owner-address", "123 Main St, Springfield, IL 62701",
		"--owner-phone", "(555) 123-4567",
		"--dog-name", "Rex",
		"--dog-breed", "Labrador",
		"--dog-age", "4",
		"--dog-color", "Black",
		"--last-rabies-shot", time.Now().AddDate(-1, 0, 0).Format("2006-01-02"),
		"--certificate", h.certificate(),
	)
	require.NoError(t, err, out)
	id := regexp.MustCompile(`Application ID: (DOG-\d+-\d+)`).FindStringSubmatch(out)
	require.Len(t, id, 2, out)
	require.Contains(t, out, "[success] Application Submitted!")
	require.Contains(t, out, "/track?id="+id[1])

	out, err = h.run("list", "--json")
	require.NoError(t, err)
	var apps []model.SubmittedApplication
	require.NoError(t, json.Unmarshal([]byte(out), &apps))
	require.Len(t, apps, 1)
	require.Equal(t, id[1], apps[0].ID)
	require.NotEmpty(t, apps[0].Certificate.ObjectKey)

	out, err = h.run("draft", "show")
	require.NoError(t, err)
	require.Contains(t, out, "No saved draft.")

	out, err = h.run("track", id[1])
	require.NoError(t, err)
	require.Contains(t, out, `"ownerName": "Jane Doe"`)
}

func TestApplyKeepsDraftAcrossRuns(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("apply", "--save-only", "--owner-name", "Jane Doe", "--dog-name", "Rex")
	require.NoError(t, err)

	out, err := h.run("draft", "show")
	require.NoError(t, err)
	var draft model.DraftApplication
	require.NoError(t, json.Unmarshal([]byte(out), &draft))
	require.Equal(t, "Jane Doe", draft.OwnerName)
	require.Equal(t, "Rex", draft.DogName)

	out, err = h.run("apply", "--owner-address", "12")
	require.ErrorIs(t, err, errIncomplete)
	require.Contains(t, out, "ownerAddress")
	require.Contains(t, out, "ownerPhone")

	_, err = h.run("draft", "clear")
	require.NoError(t, err)
	out, err = h.run("draft", "show")
	require.NoError(t, err)
	require.Contains(t, out, "No saved draft.")
}

func TestApplyRequiresCertificate(t *testing.T) {
	h := newHarness(t)
	out, err := h.run("apply",
		"--owner-name", "Jane Doe",
		"--owner-address", "123 Main St, Springfield, IL 62701",
		"--owner-phone", "5551234567",
		"--dog-name", "Rex",
		"--dog-breed", "Labrador",
		"--dog-age", "3",
		"--dog-color", "Black",
		"--last-rabies-shot", time.Now().AddDate(-2, 0, 0).Format("2006-01-02"),
	)
	require.ErrorIs(t, err, errIncomplete)
	require.Contains(t, out, "Vaccination certificate is required")
}

func TestTrackUnknown(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("track", "DOG-0-0")
	require.Error(t, err)
}

func TestListEmptyTable(t *testing.T) {
	h := newHarness(t)
	out, err := h.run("list")
	require.NoError(t, err)
	require.Contains(t, out, "ID")
	require.Contains(t, out, "STATUS")
}
