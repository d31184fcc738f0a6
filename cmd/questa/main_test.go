package main

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func findCommand(t *testing.T, app *cli.App, name string) *cli.Command {
	t.Helper()
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %q not found", name)
	return nil
}

func findStringFlag(t *testing.T, cmd *cli.Command, name string) *cli.StringFlag {
	t.Helper()
	for _, flag := range cmd.Flags {
		if f, ok := flag.(*cli.StringFlag); ok && f.Name == name {
			return f
		}
	}
	t.Fatalf("string flag %q not found on %q", name, cmd.Name)
	return nil
}

func TestAppCommands(t *testing.T) {
	app := newApp()

	for _, name := range []string{"ingest", "ask", "health", "reindex", "watch"} {
		t.Run(name+" command exists", func(t *testing.T) {
			assert.NotNil(t, findCommand(t, app, name))
		})
	}
}

func TestEngineFlags(t *testing.T) {
	app := newApp()

	t.Run("db is required", func(t *testing.T) {
		cmd := findCommand(t, app, "ask")
		dbFlag := findStringFlag(t, cmd, "db")
		assert.True(t, dbFlag.Required)
		assert.Empty(t, dbFlag.Value)
	})

	t.Run("host has default value", func(t *testing.T) {
		cmd := findCommand(t, app, "ingest")
		hostFlag := findStringFlag(t, cmd, "host")
		assert.Equal(t, "http://localhost:11434/v1", hostFlag.Value)
	})

	t.Run("ocr host defaults to disabled", func(t *testing.T) {
		cmd := findCommand(t, app, "ingest")
		ocrFlag := findStringFlag(t, cmd, "ocr-host")
		assert.Empty(t, ocrFlag.Value)
		assert.False(t, ocrFlag.Required)
	})

	t.Run("chat models default to a fallback chain", func(t *testing.T) {
		cmd := findCommand(t, app, "ask")
		var chainFlag *cli.StringSliceFlag
		for _, flag := range cmd.Flags {
			if f, ok := flag.(*cli.StringSliceFlag); ok && f.Name == "chat-model" {
				chainFlag = f
				break
			}
		}
		require.NotNil(t, chainFlag)
		assert.Len(t, chainFlag.Value.Value(), 2)
	})

	t.Run("watch requires a directory", func(t *testing.T) {
		cmd := findCommand(t, app, "watch")
		dirFlag := findStringFlag(t, cmd, "dir")
		assert.True(t, dirFlag.Required)
	})
}

func TestCommandValidation(t *testing.T) {
	t.Run("ingest requires a document path", func(t *testing.T) {
		err := newApp().Run([]string{"questa", "ingest", "--db", t.TempDir()})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "document path")
	})

	t.Run("reindex rejects zero batch size", func(t *testing.T) {
		err := newApp().Run([]string{
			"questa", "reindex", "--db", t.TempDir(), "--batch-size", "0",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "batch-size")
	})
}

func TestSupportedDocument(t *testing.T) {
	tests := []struct {
		path      string
		supported bool
	}{
		{"paper.pdf", true},
		{"report.DOCX", true},
		{"notes.txt", true},
		{"readme.md", true},
		{"image.png", false},
		{"archive.tar.gz", false},
		{"noextension", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.supported, supportedDocument(tt.path))
		})
	}
}

func TestSetupLogger(t *testing.T) {
	defer slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	t.Run("valid levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error", "DEBUG"} {
			app := &cli.App{
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "log-level", Value: level},
				},
				Before: setupLogger,
				Action: func(c *cli.Context) error { return nil },
			}
			assert.NoError(t, app.Run([]string{"questa"}), "level %q", level)
		}
	})

	t.Run("invalid level", func(t *testing.T) {
		app := &cli.App{
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "log-level", Value: "shout"},
			},
			Before: setupLogger,
			Action: func(c *cli.Context) error { return nil },
		}
		err := app.Run([]string{"questa"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}
