package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/urfave/cli"

	"github.com/Sternrassler/image-finder/internal/config"
	"github.com/Sternrassler/image-finder/internal/tui"
	"github.com/Sternrassler/image-finder/pkg/finder"
	"github.com/Sternrassler/image-finder/pkg/logging"
	"github.com/Sternrassler/image-finder/pkg/metrics"
	"github.com/Sternrassler/image-finder/pkg/pexels"
)

var version = "0.1.0"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "image-finder: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "image-finder"
	app.Usage = "search and browse Pexels photos"
	app.Version = version
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config, c",
			Usage:  "path to a TOML config file",
			EnvVar: "IMAGE_FINDER_CONFIG",
		},
		cli.StringFlag{
			Name:  "query, q",
			Usage: "initial search term (overrides default_query)",
		},
		cli.StringFlag{
			Name:  "log-file",
			Usage: "write logs to this file while the terminal UI runs",
		},
	}
	app.Action = runTUI
	app.Commands = []cli.Command{
		{
			Name:      "search",
			Usage:     "print search results without the terminal UI",
			ArgsUsage: "[query]",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "pages, p",
					Usage: "number of pages to fetch",
					Value: 1,
				},
			},
			Action: runSearch,
		},
	}
	return app
}

// session holds what both commands share.
type session struct {
	cfg    *config.Config
	logger zerolog.Logger
	client *pexels.Client
	redis  *redis.Client
	server *http.Server
	closer io.Closer
}

func newSession(c *cli.Context, logOutput io.Writer) (*session, error) {
	cfg, err := config.Load(c.GlobalString("config"))
	if err != nil {
		return nil, err
	}
	if q := strings.TrimSpace(c.GlobalString("query")); q != "" {
		cfg.DefaultQuery = q
	}
	if f := c.GlobalString("log-file"); f != "" {
		cfg.Log.File = f
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s := &session{cfg: cfg}

	if logOutput == nil {
		logOutput = io.Discard
		if cfg.Log.File != "" {
			f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, fmt.Errorf("open log file: %w", err)
			}
			logOutput = f
			s.closer = f
		}
	}

	logCfg := cfg.Logging()
	logCfg.Output = logOutput
	logging.Setup(logCfg)
	s.logger = logging.NewLogger("image-finder")

	clientCfg := cfg.Client()
	clientCfg.UserAgent = "image-finder/" + version

	if cfg.RedisURL != "" {
		s.redis = connectRedis(cfg.RedisURL, s.logger)
		clientCfg.Redis = s.redis
	}

	s.client, err = pexels.New(clientCfg)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create Pexels client: %w", err)
	}

	if cfg.MetricsAddr != "" {
		s.server = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           newMux(s.redis),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			s.logger.Info().Str("addr", cfg.MetricsAddr).Msg("Starting metrics listener")
			if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error().Err(err).Msg("Metrics listener failed")
			}
		}()
	}

	return s, nil
}

// connectRedis returns nil when Redis cannot be reached. Quota tracking is
// optional, so searching continues without it.
func connectRedis(addr string, logger zerolog.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", addr).Msg("Redis unreachable, quota tracking disabled")
		client.Close()
		return nil
	}

	logger.Info().Str("addr", addr).Msg("Connected to Redis")
	return client
}

func (s *session) Close() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctx)
	}
	if s.client != nil {
		s.client.Close()
	}
	if s.redis != nil {
		s.redis.Close()
	}
	if s.closer != nil {
		s.closer.Close()
	}
}

func runTUI(c *cli.Context) error {
	s, err := newSession(c, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	notifier := tui.NewNotifier(s.logger)
	ctrl, err := finder.New(s.client, notifier, s.cfg.Finder())
	if err != nil {
		return err
	}
	defer ctrl.Close()

	p := tea.NewProgram(tui.NewModel(ctrl), tea.WithAltScreen())
	notifier.Attach(p)
	unsubscribe := ctrl.Subscribe(tui.Forward(p))
	defer unsubscribe()

	s.logger.Info().Str("query", s.cfg.DefaultQuery).Msg("Starting terminal UI")

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("terminal UI: %w", err)
	}
	return nil
}

func runSearch(c *cli.Context) error {
	pages := c.Int("pages")
	if pages < 1 {
		return fmt.Errorf("--pages must be at least 1 (got %d)", pages)
	}

	s, err := newSession(c, os.Stderr)
	if err != nil {
		return err
	}
	defer s.Close()

	query := strings.Join(c.Args(), " ")
	if strings.TrimSpace(query) == "" {
		query = s.cfg.DefaultQuery
	}

	state, err := fetchPages(s.client, query, pages)
	printResults(c.App.Writer, state)
	return err
}

// fetchPages drives a controller through up to pages pages of query,
// stopping when the API advertises no next page, and returns the final
// state. A failed fetch stops early and is returned.
func fetchPages(searcher finder.Searcher, query string, pages int) (finder.State, error) {
	var failed bool
	notifier := finder.NotifierFunc(func(string) { failed = true })

	ctrl, err := finder.New(searcher, notifier, finder.Config{DefaultQuery: query})
	if err != nil {
		return finder.State{}, err
	}
	defer ctrl.Close()

	if err := ctrl.Start(); err != nil {
		return finder.State{}, err
	}
	ctrl.Wait()

	for page := 2; page <= pages && !failed; page++ {
		if !ctrl.State().HasMore {
			break
		}
		if err := ctrl.LoadMore(); err != nil {
			if errors.Is(err, finder.ErrNoResults) {
				break
			}
			return ctrl.State(), err
		}
		ctrl.Wait()
	}

	state := ctrl.State()
	if failed {
		return state, errors.New(finder.FetchErrorMessage)
	}
	return state, nil
}

func printResults(w io.Writer, state finder.State) {
	if state.IsEmpty() {
		fmt.Fprintf(w, "No images found for %q\n", state.Query)
		return
	}

	fmt.Fprintf(w, "Showing %s for %q (%s total)\n",
		english.Plural(len(state.Results), "photo", "photos"),
		state.Query,
		humanize.Comma(int64(state.TotalResults)))

	for i, photo := range state.Results {
		fmt.Fprintf(w, "%3d. %s by %s\n     %s\n", i+1, photo.Alt, photo.Photographer, photo.Src.Original)
	}
}

func newMux(redisClient *redis.Client) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(redisClient))
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports ready when quota tracking is disabled or Redis answers.
func readyHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := redisClient.Ping(ctx).Err(); err != nil {
				http.Error(w, fmt.Sprintf("redis not ready: %v", err), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "READY")
	}
}
