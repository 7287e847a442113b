package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/prism/internal/classify"
	"github.com/desertthunder/prism/internal/repositories"
	"github.com/desertthunder/prism/internal/server"
	"github.com/desertthunder/prism/internal/services"
	"github.com/desertthunder/prism/internal/shared"
	"github.com/desertthunder/prism/internal/source"
	"github.com/desertthunder/prism/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Remote clients and the catalog database are opened on first use, so commands that need neither stay cheap.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	input      io.Reader
	answers    *bufio.Reader
	httpClient *http.Client

	db         *sql.DB
	catalog    *tasks.Catalog
	creds      *services.CredentialProvider
	authorize  services.Authorizer
	host       services.VideoHost
	classifier classify.Classifier
	source     *source.Client
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Host, Classifier and Authorize replace the real YouTube, Gemini and browser integrations when set.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
	HTTPClient *http.Client
	Host       services.VideoHost
	Classifier classify.Classifier
	Authorize  services.Authorizer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		input:      opts.Input,
		httpClient: opts.HTTPClient,
		host:       opts.Host,
		classifier: opts.Classifier,
		authorize:  opts.Authorize,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, playlistCommand, catalogCommand, usersCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the file named by --config, falling back to the embedded defaults when it does not exist, and applies
// the log level.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}

	if r.configPath != "" {
		if _, err := os.Stat(r.configPath); err == nil {
			config, err := shared.LoadConfig(r.configPath)
			if err != nil {
				return ctx, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
			}
			r.config = config
		} else {
			r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		}
	}

	if err := r.config.Validate(); err != nil {
		return ctx, err
	}

	level := shared.ParseLogLevel(r.config.Log.Level)
	if cmd.Bool("verbose") {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)
	return ctx, nil
}

// After releases the catalog database.
func (r *Runner) After(ctx context.Context, cmd *cli.Command) error {
	return r.Close()
}

// Close releases the catalog database, if it was opened.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db, r.catalog = nil, nil
	return err
}

// SetLogger replaces the runner's logger, e.g. to move logs to a file while the TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Catalog opens the catalog database and runs pending migrations on first use.
func (r *Runner) Catalog() (*tasks.Catalog, error) {
	if r.catalog != nil {
		return r.catalog, nil
	}

	db, err := shared.OpenCatalog(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", r.config.Database.Path, err)
	}
	r.db = db
	r.catalog = tasks.NewCatalog(
		repositories.NewEntryRepository(db),
		repositories.NewUserRepository(db),
		shared.WithLogger(r.logger, "component", "catalog"),
	)
	return r.catalog, nil
}

// Credentials builds the YouTube credential provider. Consent runs through a loopback callback server.
func (r *Runner) Credentials() (*services.CredentialProvider, error) {
	if r.creds != nil {
		return r.creds, nil
	}

	yt := r.config.Credentials.YouTube
	oauthConfig, err := services.GoogleOAuthConfig(yt)
	if err != nil {
		return nil, err
	}

	authorize := r.authorize
	if authorize == nil {
		authorizer := server.NewAuthorizer("", r.output, shared.WithLogger(r.logger, "component", "oauth"))
		authorize = authorizer.Authorize
	}
	r.creds = services.NewCredentialProvider(oauthConfig, services.NewTokenCache(yt.TokenFile), authorize, r.logger)
	return r.creds, nil
}

// VideoHost returns the YouTube client, authorizing interactively when no usable token is cached.
func (r *Runner) VideoHost(ctx context.Context) (services.VideoHost, error) {
	if r.host != nil {
		return r.host, nil
	}

	creds, err := r.Credentials()
	if err != nil {
		return nil, err
	}
	client, err := creds.Client(ctx)
	if err != nil {
		return nil, err
	}
	host, err := services.NewYouTubeService(ctx, client, r.config.Credentials.YouTube.Endpoint, shared.WithLogger(r.logger, "component", "youtube"))
	if err != nil {
		return nil, err
	}
	r.host = host
	return host, nil
}

// withHost runs fn against the video host. When the API rejects the credentials, the token is discarded, consent is
// requested again and fn runs one more time.
func (r *Runner) withHost(ctx context.Context, fn func(services.VideoHost) error) error {
	host, err := r.VideoHost(ctx)
	if err != nil {
		return err
	}

	err = fn(host)
	if !errors.Is(err, shared.ErrReauthRequired) || r.creds == nil {
		return err
	}

	r.logger.Warn("YouTube rejected the stored credentials, re-authorizing", "err", err)
	if _, err := r.creds.Reauthorize(ctx); err != nil {
		return err
	}
	r.host = nil
	if host, err = r.VideoHost(ctx); err != nil {
		return err
	}
	return fn(host)
}

// Classifier returns the Gemini classifier when an API key is configured, else one that always answers "Unknown".
func (r *Runner) Classifier() classify.Classifier {
	if r.classifier == nil {
		r.classifier = classify.New(r.config.Credentials.Gemini, shared.WithLogger(r.logger, "component", "classify"))
	}
	return r.classifier
}

// Source returns the blog client used for archive listings and posts.
func (r *Runner) Source() *source.Client {
	if r.source == nil {
		r.source = source.NewClient(r.config.Source,
			source.WithHTTPClient(r.httpClient),
			source.WithLogger(shared.WithLogger(r.logger, "component", "source")),
		)
	}
	return r.source
}

func (r *Runner) ingester(host services.VideoHost, catalog *tasks.Catalog) *tasks.Ingester {
	return tasks.NewIngester(catalog.Entries(), host, r.Classifier(), tasks.IngestOptionsFromConfig(r.config.Ingest), shared.WithLogger(r.logger, "component", "ingest"))
}

// reportProgress prints progress updates until the returned stop function is called. stop waits for pending output.
func (r *Runner) reportProgress() (chan<- tasks.ProgressUpdate, func()) {
	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			if update.Message == "" {
				continue
			}
			if update.Total > 0 {
				r.writePlain("[%d/%d] %s\n", update.Step, update.Total, update.Message)
			} else {
				r.writePlain("%s\n", update.Message)
			}
		}
	}()
	return progressCh, func() {
		close(progressCh)
		<-done
	}
}

// confirm asks a yes/no question on the runner's input. Anything but y/yes declines.
func (r *Runner) confirm(format string, args ...any) (bool, error) {
	if r.answers == nil {
		r.answers = bufio.NewReader(r.input)
	}
	r.writePlain(format+" [y/N] ", args...)
	line, err := r.answers.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
