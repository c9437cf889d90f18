/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"storymark/internal/backend"
	"storymark/internal/config"
	"storymark/internal/crash"
	"storymark/internal/dialogue"
	"storymark/internal/domain"
	applog "storymark/internal/log"
	"storymark/internal/storage"
	"storymark/internal/telemetry"
	"storymark/internal/version"
)

func usage() {
	fmt.Println("StoryMark — dialogue script toolkit")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  storymark version|-v|--version         Show version")
	fmt.Println("  storymark check <file>                 Parse a script and report structural errors")
	fmt.Println("  storymark graph <file>                 Parse a script and print its dialogue graph")
	fmt.Println("  storymark init <dir> <name>            Create a new project at <dir> with name <name>")
	fmt.Println("  storymark open <dir>                   Open project at <dir> and print summary")
	fmt.Println("  storymark index <dir>                  Rebuild the embedded search index for a project")
	fmt.Println("  storymark search <dir> <query>         Full-text search over the project index")
	fmt.Println("  storymark scripts list                 List scripts in the configured archive")
	fmt.Println("  storymark scripts push <file>          Parse and archive a script")
	fmt.Println("  storymark scripts graph <id>           Print the archived dialogue graph of a script")
	fmt.Println("  storymark login <token>                Store the archive token in the OS keyring")
	fmt.Println("  storymark logout                       Remove the archive token from the OS keyring")
	fmt.Println("  storymark serve                        Run the shared archive server")
}

// backendClient builds an archive client from the user config plus the
// keyring token, with a per-invocation deadline from backend.timeout_ms.
func backendClient(cfg config.AppConfig, token string) (*backend.Client, context.Context, context.CancelFunc) {
	c := backend.NewClient(cfg.Backend.BaseURL, token)
	if cfg.Backend.TLSInsecure {
		c.AllowInsecureTLS()
	}
	timeout := time.Duration(cfg.Backend.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	return c, ctx, cancel
}

// readScript loads a script file, enforcing the configured size limit before
// the content reaches the parser. The parser itself is unbounded.
func readScript(path string, maxBytes int) (string, error) {
	st, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if maxBytes > 0 && st.Size() > int64(maxBytes) {
		return "", fmt.Errorf("script %s is %d bytes, limit is %d (raise parser.max_script_bytes)", path, st.Size(), maxBytes)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func reportParseError(err error) {
	var perr *dialogue.Error
	if errors.As(err, &perr) {
		fmt.Printf("Error at byte %d: %v\n", perr.Offset, perr)
		return
	}
	fmt.Println("Error:", err)
}

func main() {
	// initialize structured logging using environment defaults
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("cli")
	var ph *storage.ProjectHandle
	defer func() { crash.Recover(ph) }()

	cfg, token, err := config.Load()
	if err != nil {
		l.Warn("config load failed, using defaults", slog.Any("err", err))
		cfg = config.Defaults()
	}

	// telemetry: env config, with the user config able to opt in as well
	tcfg := telemetry.FromEnv()
	if cfg.General.TelemetryOptIn {
		tcfg.OptIn = true
	}
	telemetry.NewDefault(tcfg)

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) > 1 {
		switch args[1] {
		case "version", "--version", "-v":
			fmt.Println("StoryMark — dialogue script toolkit")
			fmt.Println(version.String())
			return
		case "check":
			if len(args) < 3 {
				fmt.Println("check requires <file>")
				usage()
				os.Exit(2)
			}
			crash.SetActiveScript(args[2])
			src, err := readScript(args[2], cfg.Parser.MaxScriptBytes)
			if err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			doc, graph, err := dialogue.Parse(src)
			if err != nil {
				crash.NoteParseError(err)
				l.Info("check failed", slog.String("file", args[2]), slog.Any("err", err))
				reportParseError(err)
				os.Exit(1)
			}
			telemetry.ScriptEvent("script_checked", telemetry.ScriptStats{
				Bytes:     len(src),
				Items:     len(doc.Items),
				Bookmarks: len(graph.Order),
				Choices:   len(graph.Edges),
			})
			fmt.Printf("OK: %d content items, %d bookmarks, %d choices\n",
				len(doc.Items), len(graph.Order), len(graph.Edges))
			return
		case "graph":
			if len(args) < 3 {
				fmt.Println("graph requires <file>")
				usage()
				os.Exit(2)
			}
			crash.SetActiveScript(args[2])
			src, err := readScript(args[2], cfg.Parser.MaxScriptBytes)
			if err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			_, graph, err := dialogue.Parse(src)
			if err != nil {
				crash.NoteParseError(err)
				reportParseError(err)
				os.Exit(1)
			}
			printGraph(graph)
			return
		case "init":
			if len(args) < 4 {
				fmt.Println("init requires <dir> and <name>")
				usage()
				os.Exit(2)
			}
			dir := args[2]
			name := args[3]
			abs, _ := filepath.Abs(dir)
			l.Info("init project", slog.String("root", abs), slog.String("name", name))
			p := domain.Project{Name: name, Scripts: []domain.ScriptRef{}}
			h, err := storage.InitProject(abs, p)
			if err != nil {
				l.Error("init failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			ph = h
			fmt.Println("Created project at", abs)
			return
		case "open":
			if len(args) < 3 {
				fmt.Println("open requires <dir>")
				usage()
				os.Exit(2)
			}
			dir := args[2]
			abs, _ := filepath.Abs(dir)
			l.Info("open project", slog.String("root", abs))
			h, err := storage.Open(abs)
			if err != nil {
				l.Error("open failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			ph = h
			fmt.Printf("Opened project: %s\n", h.Project.Name)
			fmt.Printf("Scripts: %d\n", len(h.Project.Scripts))
			fmt.Println("Root:", h.Root)
			return
		case "index":
			if len(args) < 3 {
				fmt.Println("index requires <dir>")
				usage()
				os.Exit(2)
			}
			abs, _ := filepath.Abs(args[2])
			h, err := storage.Open(abs)
			if err != nil {
				l.Error("open before index failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			ph = h
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()
			if err := storage.UpdateIndex(ctx, h); err != nil {
				l.Error("index failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			// Keep a text snapshot of every script that is on disk.
			for _, ref := range h.Project.Scripts {
				crash.SetActiveScript(ref.Name)
				b, err := os.ReadFile(h.ScriptPath(ref))
				if err != nil {
					continue
				}
				if err := storage.SaveScriptSnapshot(ctx, h, ref.Name, string(b), time.Now()); err != nil {
					l.Warn("snapshot failed", slog.String("script", ref.Name), slog.Any("err", err))
				}
			}
			fmt.Println("Index rebuilt at", storage.IndexPath(abs))
			return
		case "search":
			if len(args) < 4 {
				fmt.Println("search requires <dir> and <query>")
				usage()
				os.Exit(2)
			}
			abs, _ := filepath.Abs(args[2])
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			res, err := storage.Search(ctx, abs, storage.SearchQuery{Text: args[3]})
			if err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			for _, r := range res {
				fmt.Printf("%s [%s] @%d-%d  %s\n", r.Script, r.Kind, r.StartOff, r.EndOff, r.Snippet)
			}
			if len(res) == 0 {
				fmt.Println("No matches.")
			}
			return
		case "scripts":
			if len(args) < 3 {
				fmt.Println("scripts requires <list|push|graph>")
				usage()
				os.Exit(2)
			}
			switch args[2] {
			case "list":
				cli, ctx, cancel := backendClient(cfg, token)
				defer cancel()
				list, err := cli.ListScripts(ctx)
				if err != nil {
					fmt.Println("Error:", err)
					os.Exit(1)
				}
				for _, s := range list {
					fmt.Printf("%d\t%s\tv%d\t%s\n", s.ID, s.Name, s.Version, s.UpdatedAt.Format(time.RFC3339))
				}
				if len(list) == 0 {
					fmt.Println("No archived scripts.")
				}
			case "push":
				if len(args) < 4 {
					fmt.Println("scripts push requires <file>")
					usage()
					os.Exit(2)
				}
				crash.SetActiveScript(args[3])
				src, err := readScript(args[3], cfg.Parser.MaxScriptBytes)
				if err != nil {
					fmt.Println("Error:", err)
					os.Exit(1)
				}
				cli, ctx, cancel := backendClient(cfg, token)
				defer cancel()
				name := filepath.Base(args[3])
				id, err := cli.UploadScript(ctx, name, src)
				if err != nil {
					fmt.Println("Error:", err)
					os.Exit(1)
				}
				l.Info("script archived", slog.String("name", name), slog.Int64("id", id))
				fmt.Printf("Archived %s as script %d\n", name, id)
			case "graph":
				if len(args) < 4 {
					fmt.Println("scripts graph requires <id>")
					usage()
					os.Exit(2)
				}
				id, err := strconv.ParseInt(args[3], 10, 64)
				if err != nil {
					fmt.Println("Error: script id must be a number")
					os.Exit(2)
				}
				cli, ctx, cancel := backendClient(cfg, token)
				defer cancel()
				env, err := cli.GetGraph(ctx, id)
				if err != nil {
					fmt.Println("Error:", err)
					os.Exit(1)
				}
				fmt.Printf("Script %d (%s): %d bookmarks, %d choices\n",
					env.ScriptID, env.Name, len(env.Bookmarks), len(env.Choices))
				for _, b := range env.Bookmarks {
					fmt.Printf("  %s (at byte %d)\n", b.Name, b.Offset)
				}
				for _, e := range env.Choices {
					from := e.From
					if from == "" {
						from = "(root)"
					}
					fmt.Printf("  %s -> %s (at byte %d)\n", from, e.To, e.Offset)
				}
			default:
				fmt.Println("unknown scripts subcommand:", args[2])
				usage()
				os.Exit(2)
			}
			return
		case "login":
			if len(args) < 3 {
				fmt.Println("login requires <token>")
				usage()
				os.Exit(2)
			}
			if err := config.Save(cfg, args[2]); err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			fmt.Println("Archive token stored in the OS keyring.")
			return
		case "logout":
			if err := config.ForgetToken(); err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			fmt.Println("Archive token removed from the OS keyring.")
			return
		case "serve":
			if !cfg.General.EnableServer {
				fmt.Println("The archive server is disabled; set general.enable_server in the config or SMK_ENABLE_SERVER=1")
				os.Exit(2)
			}
			l.Info("starting archive server")
			if err := backend.Start(); err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			return
		}
	}

	usage()
}

func printGraph(g *dialogue.Graph) {
	fmt.Printf("Bookmarks: %d\n", len(g.Order))
	names := append([]string{dialogue.Root}, g.Order...)
	for _, name := range names {
		display := name
		if name == dialogue.Root {
			display = "(root)"
		}
		edges := g.ChoicesFrom(name)
		if name != dialogue.Root || len(edges) > 0 {
			fmt.Printf("  %s\n", display)
		}
		for _, e := range edges {
			fmt.Printf("    -> %s (at byte %d)\n", e.To, e.Offset)
		}
	}
}
