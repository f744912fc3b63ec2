package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/rivulet-lab/rivulet/pkg/cli/config"
	httpctrl "github.com/rivulet-lab/rivulet/pkg/controller/http"
	"github.com/rivulet-lab/rivulet/pkg/service/source"
	"github.com/rivulet-lab/rivulet/pkg/service/stream"
	"github.com/rivulet-lab/rivulet/pkg/service/worker"
	"github.com/rivulet-lab/rivulet/pkg/usecase"
	"github.com/rivulet-lab/rivulet/pkg/utils/logging"
)

func cmdServe(version string) *cli.Command {
	var addr string
	var repoCfg config.Repository
	var geminiCfg config.Gemini
	var authCfg config.Auth
	var sentryCfg config.Sentry
	var genCfg config.Generation

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("RIVULET_ADDR"),
			Destination: &addr,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, authCfg.Flags()...)
	flags = append(flags, sentryCfg.Flags()...)
	flags = append(flags, genCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			policy, err := genCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load generation policy")
			}
			logging.Default().Info("Generation policy loaded", "policy", policy)

			sentryCloser, err := sentryCfg.Configure(version)
			if err != nil {
				return goerr.Wrap(err, "failed to configure sentry")
			}
			defer sentryCloser()

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			src, err := buildSource(ctx, &geminiCfg, policy)
			if err != nil {
				return err
			}

			hub := stream.NewHub()
			writer := stream.NewWriter(repo, hub, stream.WithFallbackText(policy.Fallback.Text))
			uc := usecase.New(repo, hub, src, usecase.WithWriter(writer))

			httpOpts := []httpctrl.Options{}
			verifier, err := authCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to configure authentication")
			}
			if verifier != nil {
				httpOpts = append(httpOpts, httpctrl.WithAuth(verifier))
				logging.Default().Info("Bearer token authentication enabled")
			} else {
				logging.Default().Warn("Authentication not configured, API is open")
			}

			interval, err := policy.ReaperInterval()
			if err != nil {
				return err
			}
			ceiling, err := policy.ReaperCeiling()
			if err != nil {
				return err
			}
			reaper := worker.NewStreamReaper(repo, hub, interval, ceiling,
				worker.WithReaperFallbackText(policy.Fallback.Text))
			if err := reaper.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start stream reaper")
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(uc, httpOpts...),
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			var eg errgroup.Group
			eg.Go(func() error {
				logging.Default().Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return goerr.Wrap(err, "failed to start server")
				}
				return nil
			})
			eg.Go(func() error {
				<-sigCtx.Done()
				logging.Default().Info("Shutting down")

				reaper.Stop()

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}
				return nil
			})

			if err := eg.Wait(); err != nil {
				return err
			}

			logging.Default().Info("Server shutdown completed")
			return nil
		},
	}
}

// buildSource selects the generation source: a Gemini-backed LLM stream when
// configured, otherwise the scripted source from the generation policy
func buildSource(ctx context.Context, geminiCfg *config.Gemini, policy *config.GenerationPolicy) (source.Source, error) {
	llmClient, err := geminiCfg.Configure(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to configure Gemini client")
	}

	if llmClient != nil {
		logging.Default().Info("Using Gemini generation source")
		var opts []source.LLMOption
		if policy.Prompt.System != "" {
			opts = append(opts, source.WithSystemPrompt(policy.Prompt.System))
		}
		return source.NewLLM(llmClient, opts...), nil
	}

	granularity, err := policy.Granularity()
	if err != nil {
		return nil, err
	}
	delay, err := policy.Delay()
	if err != nil {
		return nil, err
	}

	logging.Default().Info("Gemini not configured, using scripted generation source")
	return source.NewScripted(policy.Script.Text,
		source.WithGranularity(granularity),
		source.WithDelay(delay)), nil
}
