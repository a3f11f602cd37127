package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/loom/internal/logger"
	"github.com/samcharles93/loom/internal/logits"
	"github.com/samcharles93/loom/internal/session"
	"github.com/samcharles93/loom/internal/toy"
)

func runCmd() *cli.Command {
	var (
		prompt        string
		maxTokens     int64
		temp          float64
		topK          int64
		topP          float64
		repeatPenalty float64
		repeatLastN   int64
		repeatLimit   int64
		seed          int64
		engineSeed    int64
		hidden        int64
		maxContext    int64
		emitEOSText   bool
		echoPrompt    bool
		showTokens    bool
		rawOutput     bool
		streamMode    string
		logLevel      string
	)

	return &cli.Command{
		Name:  "run",
		Usage: "Run one generation session against the built-in engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "prompt",
				Aliases:     []string{"p"},
				Usage:       "prompt text",
				Destination: &prompt,
			},
			&cli.Int64Flag{
				Name:        "max-tokens",
				Aliases:     []string{"n", "num-tokens"},
				Usage:       "maximum number of tokens to generate",
				Value:       128,
				Destination: &maxTokens,
			},
			&cli.Float64Flag{
				Name:        "temp",
				Aliases:     []string{"temperature", "t"},
				Usage:       "sampling temperature (0 = greedy)",
				Value:       0.8,
				Destination: &temp,
			},
			&cli.Int64Flag{
				Name:        "top-k",
				Aliases:     []string{"top_k"},
				Usage:       "top-k sampling parameter",
				Value:       40,
				Destination: &topK,
			},
			&cli.Float64Flag{
				Name:        "top-p",
				Aliases:     []string{"top_p"},
				Usage:       "top-p sampling parameter",
				Value:       0.95,
				Destination: &topP,
			},
			&cli.Float64Flag{
				Name:        "repeat-penalty",
				Aliases:     []string{"repeat_penalty"},
				Usage:       "repetition penalty (1.0 = disabled)",
				Value:       1.1,
				Destination: &repeatPenalty,
			},
			&cli.Int64Flag{
				Name:        "repeat-last-n",
				Aliases:     []string{"repeat_last_n"},
				Usage:       "last n tokens to penalize",
				Value:       64,
				Destination: &repeatLastN,
			},
			&cli.Int64Flag{
				Name:        "repeat-limit",
				Usage:       "stop after this many consecutive identical tokens",
				Value:       3,
				Destination: &repeatLimit,
			},
			&cli.Int64Flag{
				Name:        "seed",
				Usage:       "sampling RNG seed (default -1 = random)",
				Value:       -1,
				Destination: &seed,
			},
			&cli.Int64Flag{
				Name:        "engine-seed",
				Usage:       "engine weight seed",
				Value:       1,
				Destination: &engineSeed,
			},
			&cli.Int64Flag{
				Name:        "hidden",
				Usage:       "engine hidden dimension",
				Value:       toy.DefaultHidden,
				Destination: &hidden,
			},
			&cli.Int64Flag{
				Name:        "max-context",
				Aliases:     []string{"ctx", "c"},
				Usage:       "engine context length",
				Value:       toy.DefaultSeqLen,
				Destination: &maxContext,
			},
			&cli.BoolFlag{
				Name:        "emit-eos-text",
				Usage:       "print the end-of-sequence token text instead of a newline",
				Destination: &emitEOSText,
			},
			&cli.BoolFlag{
				Name:        "echo-prompt",
				Usage:       "print prompt text before generation",
				Destination: &echoPrompt,
			},
			&cli.BoolFlag{
				Name:        "show-tokens",
				Usage:       "print prompt token ids",
				Destination: &showTokens,
			},
			&cli.BoolFlag{
				Name:        "raw-output",
				Usage:       "escape control characters in output",
				Destination: &rawOutput,
			},
			&cli.StringFlag{
				Name:        "stream-mode",
				Usage:       "output mode (instant, typewriter, quiet)",
				Value:       string(StreamInstant),
				Destination: &streamMode,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error)",
				Value:       "warn",
				Destination: &logLevel,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := LoadConfig()
			applyRunConfig(c, cfg, &temp, &topK, &topP, &repeatPenalty,
				&maxTokens, &seed, &maxContext, &streamMode, &logLevel)

			if strings.TrimSpace(prompt) == "" {
				return cli.Exit("error: --prompt is required", 1)
			}

			log := logger.Pretty(os.Stderr, logger.ParseLevel(logLevel))

			eng := toy.NewSized(int(hidden), int(maxContext), engineSeed)

			ids, err := eng.Tokenize(prompt, true)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: tokenize prompt: %v", err), 1)
			}
			if showTokens {
				fmt.Fprintf(os.Stderr, "Input tokens (%d): %v\n", len(ids), ids)
			}

			maxLen := len(ids) + int(maxTokens)
			if maxLen > eng.SeqLen() {
				maxLen = eng.SeqLen()
			}
			if maxLen <= len(ids) {
				return cli.Exit(fmt.Sprintf("error: prompt (%d tokens) leaves no room in context %d", len(ids), eng.SeqLen()), 1)
			}

			if seed == -1 {
				seed = time.Now().UnixNano()
			}
			sampler := logits.NewSampler(logits.SamplerConfig{
				Seed:          seed,
				Temperature:   float32(temp),
				TopK:          int(topK),
				TopP:          float32(topP),
				RepeatPenalty: float32(repeatPenalty),
				RepeatLastN:   int(repeatLastN),
			})

			sess, err := session.New(session.Config{
				Engine:          eng,
				Sampler:         sampler,
				Logger:          log,
				RepeatThreshold: int(repeatLimit),
				EmitEOSText:     emitEOSText,
			})
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			if echoPrompt {
				fmt.Print(prompt)
			}

			writer := NewStreamWriter(StreamMode(streamMode), rawOutput)
			res, err := sess.Run(ctx, ids, maxLen, writer.Write)
			writer.Finish()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: generation: %v", err), 1)
			}

			fmt.Println()
			fmt.Fprintf(os.Stderr, "Stats: %.2f TPS (%d tokens in %s), stop=%s\n",
				res.TPS, res.TokensGenerated, res.Duration, res.Reason)
			return nil
		},
	}
}
