// Package app wires configuration into a ready-to-use download service.
package app

import (
	"fmt"

	"github.com/rs/zerolog"

	"tracepayload/internal/assembler"
	"tracepayload/internal/auth"
	"tracepayload/internal/clients/appinsights"
	"tracepayload/internal/config"
	"tracepayload/internal/db"
	"tracepayload/internal/output"
	"tracepayload/internal/query"
	"tracepayload/internal/service"
)

// App holds the components shared by every front end.
type App struct {
	Service *service.Service
	Gate    *auth.Gate
	// DB is nil when export history is disabled.
	DB *db.DB
}

// QueryOptions maps the query section of cfg to builder options.
func QueryOptions(cfg config.QueryConfig) query.Options {
	opts := query.DefaultOptions()
	if cfg.Table != "" {
		opts.Table = cfg.Table
	}
	if cfg.RoleColumn != "" {
		opts.RoleColumn = cfg.RoleColumn
	}
	if cfg.ServiceRole != "" || cfg.ServiceRoleSuffix != "" {
		opts.Identities = nil
		if cfg.ServiceRole != "" {
			opts.Identities = append(opts.Identities, query.Identity{Op: query.OpEquals, Value: cfg.ServiceRole})
		}
		if cfg.ServiceRoleSuffix != "" {
			opts.Identities = append(opts.Identities, query.Identity{Op: query.OpEndsWith, Value: cfg.ServiceRoleSuffix})
		}
	}
	opts.IncludeDateFilter = cfg.IncludeDateFilter
	return opts
}

// AssemblerOptions maps the assembly section of cfg to assembler options.
func AssemblerOptions(cfg config.AssemblyConfig) (assembler.Options, error) {
	order, err := assembler.ParsePairingOrder(cfg.PairingOrder)
	if err != nil {
		return assembler.Options{}, err
	}
	orphans, err := assembler.ParseOrphanPolicy(cfg.OrphanPolicy)
	if err != nil {
		return assembler.Options{}, err
	}
	return assembler.Options{Order: order, Orphans: orphans}, nil
}

// New builds the service and its optional export, history and notification sinks from cfg.
func New(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	asmOpts, err := AssemblerOptions(cfg.Assembly)
	if err != nil {
		return nil, err
	}

	client := appinsights.NewClient(
		cfg.AppInsights.BaseURL,
		cfg.AppInsights.ApplicationID,
		cfg.AppInsights.APIKey,
		cfg.AppInsights.GetTimeoutDuration(),
		logger,
	)

	a := &App{Gate: auth.NewGate(cfg.Auth.SecretKey, cfg.Auth.SecretHash)}
	if !a.Gate.Enabled() {
		logger.Warn().Msg("No auth secret configured; /api/authorize will reject every password")
	}

	var opts []service.Option
	if cfg.Export.Enabled {
		opts = append(opts, service.WithExporter(output.NewFileExporter(cfg.Export.OutputDir, cfg.Export.Compress)))
	}
	if cfg.DB.Enabled {
		database, err := db.New(cfg.DB.Driver, cfg.DB.DSN)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(); err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		a.DB = database
		opts = append(opts, service.WithRecorder(database))
	}
	if cfg.Slack.Enabled {
		opts = append(opts, service.WithNotifier(output.NewSlackSenderFromConfig(cfg.Slack)))
	}

	a.Service = service.New(
		query.NewBuilder(QueryOptions(cfg.Query)),
		client,
		assembler.New(asmOpts, logger),
		logger,
		opts...,
	)

	return a, nil
}

// Close releases the database connection, if any.
func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
