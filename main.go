package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MatusOllah/slogcolor"
	"github.com/modfin/bellman/models/embed"
	"github.com/modfin/bellman/models/gen"
	"github.com/modfin/clix"
	"github.com/urfave/cli/v3"
	_ "modernc.org/sqlite"

	"github.com/mjerling/dowser/internal/ai"
	"github.com/mjerling/dowser/internal/db"
	"github.com/mjerling/dowser/internal/db/vec"
	"github.com/mjerling/dowser/internal/ingest"
	"github.com/mjerling/dowser/internal/rag"
)

func main() {

	defer func() {
		vec.Statistics()
	}()

	cmd := &cli.Command{
		Name:  "dowser",
		Usage: "a RAG LLM tool that builds a knowledge base from files and adaptively answers questions over it",
		Action: func(context.Context, *cli.Command) error {
			fmt.Println("Nothing to do here, see --help")
			return nil
		},

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Value:   "./dowser.db",
				Sources: cli.EnvVars("DOWSER_DB"),
			},

			&cli.StringFlag{
				Name:    "bellman-url",
				Sources: cli.EnvVars("DOWSER_BELLMAN_URL"),
			},
			&cli.StringFlag{
				Name:    "bellman-key",
				Sources: cli.EnvVars("DOWSER_BELLMAN_KEY"),
			},
			&cli.StringFlag{
				Name:    "bellman-key-name",
				Value:   "dowser",
				Sources: cli.EnvVars("DOWSER_BELLMAN_KEY_NAME"),
			},

			&cli.StringFlag{
				Name:    "vertexai-credential",
				Sources: cli.EnvVars("DOWSER_VERTEXAI_CREDENTIAL"),
			},
			&cli.StringFlag{
				Name:    "vertexai-project",
				Sources: cli.EnvVars("DOWSER_VERTEXAI_PROJECT"),
			},
			&cli.StringFlag{
				Name:    "vertexai-region",
				Sources: cli.EnvVars("DOWSER_VERTEXAI_REGION"),
			},

			&cli.StringFlag{
				Name:    "openai-key",
				Sources: cli.EnvVars("DOWSER_OPENAI_KEY"),
			},
			&cli.StringFlag{
				Name:    "anthropic-key",
				Sources: cli.EnvVars("DOWSER_ANTHROPIC_KEY"),
			},
			&cli.StringFlag{
				Name:    "voyageai-key",
				Sources: cli.EnvVars("DOWSER_VOYAGEAI_KEY"),
			},

			&cli.StringFlag{
				Name:    "embed-model",
				Value:   "OpenAI/text-embedding-3-small",
				Sources: cli.EnvVars("DOWSER_EMBED_MODEL"),
			},
			&cli.StringFlag{
				Name:    "llm-model",
				Value:   "OpenAI/gpt-4o-mini",
				Sources: cli.EnvVars("DOWSER_LLM_MODEL"),
			},

			&cli.BoolFlag{
				Name:    "verbose",
				Sources: cli.EnvVars("DOWSER_VERBOSE"),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {

			opts := slogcolor.DefaultOptions
			if cmd.Bool("verbose") {
				opts.Level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slogcolor.NewHandler(os.Stderr, opts)))

			return ctx, nil
		},

		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "chunk and embed files into the knowledge base",
				ArgsUsage: "<file>...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "label",
						Usage:   "the label for the fragments",
						Value:   "default",
						Sources: cli.EnvVars("DOWSER_LABEL"),
					},
					&cli.IntFlag{
						Name:    "chunk-tokens",
						Usage:   "max tokens per fragment",
						Value:   512,
						Sources: cli.EnvVars("DOWSER_CHUNK_TOKENS"),
					},
				},
				Action: addAction,
			},

			{
				Name:  "search",
				Usage: "search the knowledge base for fragments",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Usage:   "the maximum number of fragments to return",
						Value:   5,
						Sources: cli.EnvVars("DOWSER_LIMIT"),
					},
					&cli.StringFlag{
						Name:    "label",
						Usage:   "LIKE pattern limiting which labels are searched",
						Value:   "%",
						Sources: cli.EnvVars("DOWSER_LABEL"),
					},
				},
				Action: searchAction,
			},

			{
				Name:      "ask",
				Usage:     "ask a question, routed adaptively between the basic and advanced strategies",
				ArgsUsage: "<question>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "label",
						Usage:   "LIKE pattern limiting which labels are searched",
						Value:   "%",
						Sources: cli.EnvVars("DOWSER_LABEL"),
					},
					&cli.StringFlag{
						Name:    "detail",
						Usage:   "routing trace rendering: silent, verbose or debug",
						Value:   "silent",
						Sources: cli.EnvVars("DOWSER_DETAIL"),
					},

					&cli.IntFlag{
						Name:    "top-k",
						Usage:   "chunks fetched per retrieval call",
						Value:   3,
						Sources: cli.EnvVars("DOWSER_TOP_K"),
					},
					&cli.IntFlag{
						Name:    "max-sub-queries",
						Usage:   "bound on decomposition sub-queries",
						Value:   5,
						Sources: cli.EnvVars("DOWSER_MAX_SUB_QUERIES"),
					},
					&cli.IntFlag{
						Name:    "query-variants",
						Usage:   "paraphrases used by the multi-query strategy",
						Value:   4,
						Sources: cli.EnvVars("DOWSER_QUERY_VARIANTS"),
					},
					&cli.FloatFlag{
						Name:    "completeness-threshold",
						Value:   0.7,
						Sources: cli.EnvVars("DOWSER_COMPLETENESS_THRESHOLD"),
					},
					&cli.FloatFlag{
						Name:    "relevance-threshold",
						Value:   0.7,
						Sources: cli.EnvVars("DOWSER_RELEVANCE_THRESHOLD"),
					},
					&cli.FloatFlag{
						Name:    "confidence-threshold",
						Value:   0.7,
						Sources: cli.EnvVars("DOWSER_CONFIDENCE_THRESHOLD"),
					},

					&cli.IntFlag{
						Name:    "llm-retries",
						Usage:   "attempts per model call",
						Value:   3,
						Sources: cli.EnvVars("DOWSER_LLM_RETRIES"),
					},
					&cli.DurationFlag{
						Name:    "llm-backoff",
						Usage:   "initial backoff between attempts, doubled each retry",
						Value:   500 * time.Millisecond,
						Sources: cli.EnvVars("DOWSER_LLM_BACKOFF"),
					},
					&cli.DurationFlag{
						Name:    "llm-timeout",
						Usage:   "deadline per model call attempt",
						Value:   45 * time.Second,
						Sources: cli.EnvVars("DOWSER_LLM_TIMEOUT"),
					},
				},
				Action: askAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Default().Error("got error running dowser", "err", err)
	}
}

func openQueries(ctx context.Context, cmd *cli.Command) (*db.Queries, error) {
	conn, err := sql.Open("sqlite", cmd.String("db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database file, %s: %w", "file://"+cmd.String("db"), err)
	}

	_, err = conn.ExecContext(ctx, db.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return db.New(conn), nil
}

func parseModel(spec string) (provider string, name string) {
	provider, name, _ = strings.Cut(spec, "/")
	return provider, name
}

func addAction(ctx context.Context, cmd *cli.Command) error {

	config := clix.ParseCommand[ai.Credentials](cmd)
	proxy, err := ai.New(config, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create proxy: %w", err)
	}

	queries, err := openQueries(ctx, cmd)
	if err != nil {
		return err
	}

	embeddingModel := cmd.String("embed-model")
	provider, modelName := parseModel(embeddingModel)
	slog.Default().Debug("embedding", "provider", provider, "model", modelName)
	model := embed.Model{
		Provider: provider,
		Name:     modelName,
	}

	chunker, err := ingest.NewChunker(clix.ParseCommand[ingest.ChunkerConfig](cmd))
	if err != nil {
		return fmt.Errorf("failed to create chunker: %w", err)
	}

	for _, f := range cmd.Args().Slice() {
		logger := slog.Default().With("file", f)

		logger.Debug("reading file")

		in, err := os.Open(f)
		if err != nil {
			return fmt.Errorf("failed to open file %s: %w", f, err)
		}

		data, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", f, err)
		}
		in.Close()

		label := cmd.String("label")
		document := filepath.Clean(f)

		chunks := chunker.Split(string(data))
		logger.Debug("chunked file", "chunks", len(chunks))

		for _, chunk := range chunks {
			dirty, err := queries.DirtyFragment(ctx, label, document, chunk.Position, chunk.Text)
			if err != nil {
				return fmt.Errorf("failed to check if fragment is dirty: %w", err)
			}
			if !dirty {
				logger.Debug("skipping already existing fragment", "position", chunk.Position)
				continue
			}

			logger.Debug("embedding fragment", "position", chunk.Position, "len", len(chunk.Text))
			resp, err := proxy.Embed(embed.Request{
				Ctx:   ctx,
				Model: model,
				Text:  chunk.Text,
			})
			if err != nil {
				return fmt.Errorf("failed to embed: %w", err)
			}

			frag, err := queries.AddFragment(ctx,
				label,
				document,
				chunk.Position,
				chunk.Text,
				embeddingModel,
				resp.AsFloat64(),
			)
			if err != nil {
				return fmt.Errorf("failed to add fragment: %w", err)
			}

			logger.Info("added fragment", "id", frag.ID, "position", frag.Position)
		}
	}

	return nil
}

func searchAction(ctx context.Context, cmd *cli.Command) error {

	config := clix.ParseCommand[ai.Credentials](cmd)
	proxy, err := ai.New(config, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create proxy: %w", err)
	}

	queries, err := openQueries(ctx, cmd)
	if err != nil {
		return err
	}

	provider, modelName := parseModel(cmd.String("embed-model"))
	model := embed.Model{
		Provider: provider,
		Name:     modelName,
		Type:     embed.TypeQuery,
	}

	search := strings.Join(cmd.Args().Slice(), " ")

	resp, err := proxy.Embed(embed.Request{
		Ctx:   ctx,
		Model: model,
		Text:  search,
	})
	if err != nil {
		return fmt.Errorf("failed to embed: %w", err)
	}

	frags, err := queries.KNN(ctx, resp.AsFloat64(), cmd.String("label"), int(cmd.Int("limit")))
	if err != nil {
		return fmt.Errorf("failed to query database: %w", err)
	}

	for _, frag := range frags {
		fmt.Printf("============ %s: %s #%d (similarity %.3f) ============\n%s\n",
			frag.Label, frag.Document, frag.Position, -frag.Distance, frag.Content)
	}

	return nil
}

func askAction(ctx context.Context, cmd *cli.Command) error {

	logger := slog.Default()

	config := clix.ParseCommand[ai.Credentials](cmd)
	proxy, err := ai.New(config, logger)
	if err != nil {
		return fmt.Errorf("failed to create proxy: %w", err)
	}

	queries, err := openQueries(ctx, cmd)
	if err != nil {
		return err
	}

	genProvider, genName := parseModel(cmd.String("llm-model"))
	embedProvider, embedName := parseModel(cmd.String("embed-model"))

	client := ai.NewClient(proxy,
		gen.Model{Provider: genProvider, Name: genName},
		embed.Model{Provider: embedProvider, Name: embedName},
		clix.ParseCommand[ai.RetryConfig](cmd),
		logger,
	)

	ragCfg := clix.ParseCommand[rag.Config](cmd)
	store := rag.NewFragmentStore(queries, cmd.String("label"), logger)

	basic := rag.NewBasic(ragCfg, client, store, logger)
	advanced := rag.NewAdvanced(ragCfg, client,
		rag.NewDecomposer(ragCfg, client, store, logger),
		rag.NewHyDE(ragCfg, client, store, logger),
		rag.NewMultiQuery(ragCfg, client, store, logger),
		logger,
	)
	evaluator := rag.NewEvaluator(ragCfg, client, logger)

	sink, err := newConsoleSink(cmd.String("detail"))
	if err != nil {
		return err
	}

	router := rag.NewRouter(basic, advanced, evaluator, sink, logger)

	question := strings.Join(cmd.Args().Slice(), " ")
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("no question given")
	}

	answer, decision := router.Route(ctx, question)

	fmt.Println(answer.Text)
	if answer.Degraded {
		fmt.Fprintf(os.Stderr, "note: degraded answer: %s\n", strings.Join(answer.Notes, "; "))
	}

	logger.Debug("routing done",
		"request", decision.ID,
		"stages", strings.Join(decision.Stages, "->"),
		"verdict", decision.Verdict,
		"escalated", decision.Escalated,
		"technique", answer.Technique)

	return nil
}

// consoleSink renders router transitions to stderr at the requested detail.
type consoleSink struct {
	level rag.Detail
}

func newConsoleSink(detail string) (consoleSink, error) {
	switch detail {
	case "silent":
		return consoleSink{level: rag.DetailSilent}, nil
	case "verbose":
		return consoleSink{level: rag.DetailVerbose}, nil
	case "debug":
		return consoleSink{level: rag.DetailDebug}, nil
	default:
		return consoleSink{}, fmt.Errorf("unknown detail level %q, want silent, verbose or debug", detail)
	}
}

func (s consoleSink) Write(stage string, level rag.Detail, payload any) {
	if level > s.level {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte(fmt.Sprintf("%+v", payload))
	}
	fmt.Fprintf(os.Stderr, "---- %s ----\n%s\n", stage, data)
}
