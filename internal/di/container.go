package di

import (
	"context"
	"fmt"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/ticket-automation/internal/adapters/imap"
	"github.com/mikey/ticket-automation/internal/adapters/jira"
	"github.com/mikey/ticket-automation/internal/adapters/notify"
	"github.com/mikey/ticket-automation/internal/config"
	"github.com/mikey/ticket-automation/internal/core"
	"github.com/mikey/ticket-automation/internal/digest"
	"github.com/mikey/ticket-automation/internal/factory"
	"github.com/mikey/ticket-automation/internal/logging"
	"github.com/mikey/ticket-automation/internal/mailparse"
	"github.com/mikey/ticket-automation/internal/monitor"
	"github.com/mikey/ticket-automation/internal/status"
	"github.com/mikey/ticket-automation/internal/utils"
	"github.com/mikey/ticket-automation/internal/whitelist"
)

// dashboardLogFile receives logs while the dashboard owns the terminal and
// no other output was configured
const dashboardLogFile = "ticket-automation.log"

// Options are the command line settings that shape the container
type Options struct {
	ConfigFile string
	LogOutput  string
	Dashboard  bool
}

// BuildContainer creates and configures a dependency injection container
func BuildContainer(opts Options) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(func() (*config.Config, error) {
		cfg, err := config.New(opts.ConfigFile)
		if err != nil {
			return nil, err
		}
		if opts.LogOutput != "" {
			cfg.Set("logging.output", opts.LogOutput)
		}
		if opts.Dashboard && cfg.GetString("logging.output") == "" {
			cfg.Set("logging.output", dashboardLogFile)
		}
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewLedgerFactory); err != nil {
		return nil, err
	}

	// Register summarizer
	if err := container.Provide(func(f *factory.LLMFactory) (core.Summarizer, error) {
		return f.CreateSummarizer(context.Background())
	}); err != nil {
		return nil, err
	}

	// Register ledger
	if err := container.Provide(func(f *factory.LedgerFactory) (core.Ledger, error) {
		return f.CreateLedger(context.Background())
	}); err != nil {
		return nil, err
	}

	// Register ticket sink
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (core.TicketSink, error) {
		c, err := cfg.GetJira()
		if err != nil {
			return nil, err
		}
		sink, err := jira.NewSink(jira.Settings{
			Server:   c.Server,
			Email:    c.Email,
			APIToken: c.APIToken,
			Timeout:  c.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return sink, nil
	}); err != nil {
		return nil, err
	}

	// Register authorized senders
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (core.SenderAuthorizer, error) {
		c, err := cfg.GetJira()
		if err != nil {
			return nil, err
		}
		return whitelist.NewChecker(c.AuthorizedUsers, logger), nil
	}); err != nil {
		return nil, err
	}

	// Register status board
	if err := container.Provide(status.NewBoard); err != nil {
		return nil, err
	}

	// Register dispatcher
	if err := container.Provide(func(
		cfg *config.Config,
		sink core.TicketSink,
		summarizer core.Summarizer,
		board *status.Board,
		authorizer core.SenderAuthorizer,
		logger *zap.Logger,
	) (*core.Dispatcher, error) {
		c, err := cfg.GetJira()
		if err != nil {
			return nil, err
		}
		if c.ProjectKey == "" {
			return nil, fmt.Errorf("jira.project_key is required")
		}
		return core.NewDispatcher(sink, summarizer, board, authorizer, logger, core.DispatcherSettings{
			Project:   c.ProjectKey,
			IssueType: c.IssueType,
		}), nil
	}); err != nil {
		return nil, err
	}

	// Register message parser
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (*mailparse.Parser, error) {
		c, err := cfg.GetMonitor()
		if err != nil {
			return nil, err
		}
		return mailparse.NewParser(c.AttachmentDir, logger), nil
	}); err != nil {
		return nil, err
	}

	// Register loop factory; every session gets its own mailbox connection
	if err := container.Provide(func(
		cfg *config.Config,
		logger *zap.Logger,
		parser *mailparse.Parser,
		dispatcher *core.Dispatcher,
		ledger core.Ledger,
		board *status.Board,
	) (monitor.LoopFactory, error) {
		imapCfg, err := cfg.GetIMAP()
		if err != nil {
			return nil, err
		}
		monitorCfg, err := cfg.GetMonitor()
		if err != nil {
			return nil, err
		}
		ledgerCfg, err := cfg.GetLedger()
		if err != nil {
			return nil, err
		}

		settings := monitor.Settings{
			Folder:            imapCfg.Folder,
			PollInterval:      monitorCfg.PollInterval,
			ReconnectAttempts: monitorCfg.ReconnectAttempts,
			ReconnectBackoff:  monitorCfg.ReconnectBackoff,
			StopTimeout:       monitorCfg.StopTimeout,
			LedgerTTL:         ledgerCfg.TTL,
		}

		return func() (*monitor.Loop, error) {
			source := imap.NewSource(imap.Settings{
				Host:           imapCfg.Host,
				Port:           imapCfg.Port,
				TLS:            imapCfg.TLS,
				Username:       imapCfg.Username,
				Password:       imapCfg.Password,
				DialTimeout:    imapCfg.DialTimeout,
				CommandTimeout: imapCfg.CommandTimeout,
			}, logger)
			return monitor.NewLoop(source, parser, dispatcher, ledger, board, logger, settings), nil
		}, nil
	}); err != nil {
		return nil, err
	}

	// Register supervisor
	if err := container.Provide(monitor.NewSupervisor); err != nil {
		return nil, err
	}

	// Register notifier
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (core.Notifier, error) {
		c, err := cfg.GetNotify()
		if err != nil {
			return nil, err
		}
		return notify.NewSMTPNotifier(notify.Settings{
			Host:     c.SMTPHost,
			Port:     c.SMTPPort,
			Username: c.Username,
			Password: c.Password,
			From:     c.From,
			StartTLS: c.StartTLS,
			Timeout:  c.Timeout,
		}, logger), nil
	}); err != nil {
		return nil, err
	}

	// Register digest reporter
	if err := container.Provide(func(
		cfg *config.Config,
		board *status.Board,
		notifier core.Notifier,
		logger *zap.Logger,
	) (*digest.Reporter, error) {
		notifyCfg, err := cfg.GetNotify()
		if err != nil {
			return nil, err
		}
		digestCfg, err := cfg.GetDigest()
		if err != nil {
			return nil, err
		}
		return digest.NewReporter(board, notifier, notifyCfg.Recipients, digestCfg.Interval, logger), nil
	}); err != nil {
		return nil, err
	}

	return container, nil
}
