package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plmigrate/internal/models"
	"github.com/desertthunder/plmigrate/internal/repositories"
	"github.com/desertthunder/plmigrate/internal/shared"
	tu "github.com/desertthunder/plmigrate/internal/testing"
)

var (
	roadTrip = models.Playlist{ID: "pl1", Name: "Road Trip", TrackCount: 1}
	songOne  = models.Track{ID: "t1", Name: "Song One", Artists: []string{"Band"}, DurationMS: 200000}
	videoOne = models.Candidate{ID: "v1", Title: "Song One", ChannelTitle: "Band - Topic", DurationMS: 200000}
)

type fixture struct {
	runner *Runner
	output *bytes.Buffer
	store  repositories.Backend
	source *tu.FakeSource
	target *tu.FakeTarget
	creds  *tu.StaticCredentials
	config string
}

func newFixture(t *testing.T, input string) *fixture {
	t.Helper()

	store, err := repositories.Open(shared.DatabaseConfig{Driver: shared.DriverSQLite, Path: shared.InMemoryDatabase})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	f := &fixture{
		output: &bytes.Buffer{},
		store:  store,
		source: tu.NewFakeSource(roadTrip, songOne),
		target: tu.NewFakeTarget("PLtarget"),
		creds:  tu.NewStaticCredentials(),
		config: filepath.Join(t.TempDir(), "config.toml"),
	}
	f.target.AddResult(songOne.Query(), videoOne)

	f.runner = NewRunner(RunnerOpts{
		Logger:      log.New(io.Discard),
		Output:      f.output,
		Input:       strings.NewReader(input),
		Store:       store,
		Source:      f.source,
		Target:      f.target,
		Credentials: f.creds,
	})
	return f
}

func (f *fixture) run(args ...string) error {
	f.output.Reset()
	argv := append([]string{"plmigrate", "--config", f.config}, args...)
	return newApp(f.runner).Run(context.Background(), argv)
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to stdout")
			}
			if runner.input != os.Stdin {
				t.Error("expected input to default to stdin")
			}
			if runner.configPath != "config.toml" {
				t.Errorf("expected config path config.toml, got %s", runner.configPath)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("compact", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]int{"n": 1}, false); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := output.String(); got != "{\"n\":1}\n" {
				t.Errorf("unexpected output %q", got)
			}
		})

		t.Run("pretty", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]int{"n": 1}, true); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := output.String(); got != "{\n  \"n\": 1\n}\n" {
				t.Errorf("unexpected output %q", got)
			}
		})

		t.Run("write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			if err := runner.writeJSON("x", false); err == nil {
				t.Error("expected error from failing writer")
			}
		})

		t.Run("newline failure", func(t *testing.T) {
			w := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &w})

			err := runner.writeJSON("x", false)
			if err == nil || !strings.Contains(err.Error(), "newline") {
				t.Errorf("expected newline error, got %v", err)
			}
		})

		t.Run("unmarshalable value", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			if err := runner.writeJSON(make(chan int), false); err == nil {
				t.Error("expected marshal error")
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		runner.writePlainHeader("Title")
		runner.writePlain("a=%d\n", 1)
		runner.writePlainln("b")

		got := output.String()
		for _, want := range []string{"═══", "Title\n", "a=1\n", "\nb\n"} {
			if !strings.Contains(got, want) {
				t.Errorf("output %q missing %q", got, want)
			}
		}
	})
}

func TestCommands(t *testing.T) {
	t.Run("migrate prints events and a summary", func(t *testing.T) {
		f := newFixture(t, "")

		if err := f.run("migrate", "pl1"); err != nil {
			t.Fatalf("migrate failed: %v", err)
		}

		out := f.output.String()
		for _, want := range []string{"■ Migration complete for Road Trip", "Migrated: 1", "list=PLtarget"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
		if added := f.target.Added(); len(added) != 1 || added[0] != "v1" {
			t.Errorf("expected v1 to be added, got %v", added)
		}
	})

	t.Run("migrate emits JSON lines", func(t *testing.T) {
		f := newFixture(t, "")

		if err := f.run("migrate", "--json", "pl1"); err != nil {
			t.Fatalf("migrate failed: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(f.output.String()), "\n")
		last := lines[len(lines)-1]
		if !strings.Contains(last, `"type":"complete"`) {
			t.Errorf("expected last line to be the complete event, got %s", last)
		}
		for _, line := range lines {
			if !strings.HasPrefix(line, "{") {
				t.Errorf("expected JSON line, got %q", line)
			}
		}
	})

	t.Run("migrate requires a playlist", func(t *testing.T) {
		f := newFixture(t, "")

		if err := f.run("migrate"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("migrate needs credentials", func(t *testing.T) {
		f := newFixture(t, "")
		f.creds.RequireAuth(models.ServiceSpotify)

		if err := f.run("migrate", "pl1"); !errors.Is(err, shared.ErrAuthenticationRequired) {
			t.Errorf("expected ErrAuthenticationRequired, got %v", err)
		}
	})

	t.Run("status and reset", func(t *testing.T) {
		f := newFixture(t, "")
		if err := f.run("migrate", "pl1"); err != nil {
			t.Fatalf("migrate failed: %v", err)
		}

		if err := f.run("status", "--json"); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if !strings.Contains(f.output.String(), `"pl1": "completed"`) {
			t.Errorf("expected pl1 completed, got %s", f.output.String())
		}

		if err := f.run("reset", "pl1"); err != nil {
			t.Fatalf("reset failed: %v", err)
		}
		if err := f.run("status"); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if !strings.Contains(f.output.String(), "No migrations recorded") {
			t.Errorf("expected empty status after reset, got %s", f.output.String())
		}
	})

	t.Run("playlists lists status", func(t *testing.T) {
		f := newFixture(t, "")

		if err := f.run("playlists", "--json"); err != nil {
			t.Fatalf("playlists failed: %v", err)
		}
		out := f.output.String()
		if !strings.Contains(out, `"id":"pl1"`) || !strings.Contains(out, `"status":"not_started"`) {
			t.Errorf("unexpected playlists output %s", out)
		}

		f.target.Lists = []models.Playlist{{ID: "PLx", Name: "Other"}}
		if err := f.run("playlists", "--target"); err != nil {
			t.Fatalf("target playlists failed: %v", err)
		}
		if !strings.Contains(f.output.String(), "PLx") {
			t.Errorf("expected target playlist, got %s", f.output.String())
		}
	})

	t.Run("sync links playlists by name", func(t *testing.T) {
		f := newFixture(t, "")
		f.target.Lists = []models.Playlist{{ID: "PLroad", Name: "road  trip"}}

		if err := f.run("sync"); err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		if !strings.Contains(f.output.String(), "linked pl1") {
			t.Errorf("expected pl1 linked, got %s", f.output.String())
		}

		rec, err := f.store.GetPlaylist("pl1")
		if err != nil || rec == nil {
			t.Fatalf("expected a playlist record, got %v (%v)", rec, err)
		}
		if rec.TargetPlaylistID != "PLroad" || rec.Status != models.PlaylistCompleted {
			t.Errorf("unexpected record %+v", rec)
		}
	})

	t.Run("threshold", func(t *testing.T) {
		f := newFixture(t, "")

		if err := f.run("threshold"); err != nil {
			t.Fatalf("threshold failed: %v", err)
		}
		if got := f.output.String(); got != "0.5\n" {
			t.Errorf("expected default 0.5, got %q", got)
		}

		if err := f.run("threshold", "0.7"); err != nil {
			t.Fatalf("set threshold failed: %v", err)
		}
		if err := f.run("threshold"); err != nil {
			t.Fatalf("threshold failed: %v", err)
		}
		if got := f.output.String(); got != "0.7\n" {
			t.Errorf("expected 0.7, got %q", got)
		}

		if err := f.run("threshold", "abc"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if err := f.run("threshold", "2"); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("report", func(t *testing.T) {
		f := newFixture(t, "")
		if err := f.run("migrate", "pl1"); err != nil {
			t.Fatalf("migrate failed: %v", err)
		}

		if err := f.run("report", "--format", "csv", "--output", "-", "pl1"); err != nil {
			t.Fatalf("report failed: %v", err)
		}
		out := f.output.String()
		if !strings.HasPrefix(out, "Source ID,Title") || !strings.Contains(out, "t1,Song One") {
			t.Errorf("unexpected csv report:\n%s", out)
		}

		t.Chdir(t.TempDir())
		if err := f.run("report", "pl1"); err != nil {
			t.Fatalf("report failed: %v", err)
		}
		tu.AssertFileExists(t, "pl1_report.md")
		if content := tu.MustReadFile(t, "pl1_report.md"); !strings.Contains(content, "Road Trip") {
			t.Errorf("expected playlist name in report, got:\n%s", content)
		}

		if err := f.run("report", "--format", "pdf", "pl1"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if err := f.run("report", "missing"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestAuthCommands(t *testing.T) {
	t.Run("session headers from stdin", func(t *testing.T) {
		f := newFixture(t, `{"Cookie": "SID=abc", "Authorization": "SAPISIDHASH 1_x"}`)

		if err := f.run("auth", "session"); err != nil {
			t.Fatalf("auth session failed: %v", err)
		}

		rec, err := f.store.GetToken(models.ServiceYouTube)
		if err != nil || rec == nil {
			t.Fatalf("expected stored token, got %v (%v)", rec, err)
		}
		if rec.AuthType != models.AuthSession {
			t.Errorf("expected session auth, got %s", rec.AuthType)
		}

		if err := f.run("auth", "status", "--json"); err != nil {
			t.Fatalf("auth status failed: %v", err)
		}
		if !strings.Contains(f.output.String(), `"mode": "session"`) {
			t.Errorf("expected session mode in status, got %s", f.output.String())
		}
	})

	t.Run("session headers from a cURL command", func(t *testing.T) {
		f := newFixture(t, `curl 'https://www.youtube.com/youtubei/v1/browse' -H 'cookie: SID=abc' -H 'authorization: SAPISIDHASH 1_x'`)

		if err := f.run("auth", "session"); err != nil {
			t.Fatalf("auth session failed: %v", err)
		}
		if rec, _ := f.store.GetToken(models.ServiceYouTube); rec == nil {
			t.Error("expected stored token")
		}
	})

	t.Run("session rejects malformed headers", func(t *testing.T) {
		f := newFixture(t, `["not", "an", "object"]`)

		if err := f.run("auth", "session"); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("session flags are exclusive", func(t *testing.T) {
		f := newFixture(t, "")

		err := f.run("auth", "session", "--file", "h.json", "--curl", "curl x")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("logout", func(t *testing.T) {
		f := newFixture(t, `{"Cookie": "SID=abc"}`)
		if err := f.run("auth", "session"); err != nil {
			t.Fatalf("auth session failed: %v", err)
		}

		if err := f.run("auth", "logout", models.ServiceYouTube); err != nil {
			t.Fatalf("logout failed: %v", err)
		}
		if rec, _ := f.store.GetToken(models.ServiceYouTube); rec != nil {
			t.Errorf("expected token to be removed, got %+v", rec)
		}

		if err := f.run("auth", "logout"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if err := f.run("auth", "logout", "napster"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("login without a client id", func(t *testing.T) {
		f := newFixture(t, "")
		if err := os.WriteFile(f.config, []byte("[credentials.spotify]\nclient_id = \"\"\n"), 0644); err != nil {
			t.Fatal(err)
		}

		if err := f.run("auth", "login", models.ServiceSpotify); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}

func TestSetup(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	runner := NewRunner(RunnerOpts{Logger: log.New(io.Discard), Output: &bytes.Buffer{}})
	config := filepath.Join(dir, "config.toml")

	if err := newApp(runner).Run(context.Background(), []string{"plmigrate", "--config", config, "setup"}); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	tu.AssertFileExists(t, config)
	tu.AssertFileExists(t, filepath.Join(dir, "plmigrate.db"))
	if runner.store != nil {
		t.Error("expected store to be closed after the command")
	}

	t.Run("is idempotent", func(t *testing.T) {
		if err := newApp(runner).Run(context.Background(), []string{"plmigrate", "--config", config, "setup"}); err != nil {
			t.Fatalf("second setup failed: %v", err)
		}
	})

	t.Run("rejects an invalid config", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.toml")
		if err := os.WriteFile(bad, []byte("[database]\ndriver = \"oracle\"\n"), 0644); err != nil {
			t.Fatal(err)
		}

		err := newApp(NewRunner(RunnerOpts{Logger: log.New(io.Discard)})).
			Run(context.Background(), []string{"plmigrate", "--config", bad, "setup"})
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}
