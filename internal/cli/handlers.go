package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/BartekS5/fieldmapper/internal/config"
	"github.com/BartekS5/fieldmapper/internal/cost"
	"github.com/BartekS5/fieldmapper/internal/engine"
	"github.com/BartekS5/fieldmapper/internal/learning"
	"github.com/BartekS5/fieldmapper/internal/profile"
	"github.com/BartekS5/fieldmapper/internal/reasoner"
	"github.com/BartekS5/fieldmapper/pkg/database"
	"github.com/BartekS5/fieldmapper/pkg/logger"
	"github.com/BartekS5/fieldmapper/pkg/models"
	"gopkg.in/yaml.v3"
)

// app holds what a command needs and what must be closed afterwards.
type app struct {
	cfg     *config.Config
	store   learning.Store
	engine  *engine.Engine
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp loads the environment config, connects the configured backends and
// builds the engine. withEngine=false stops after the store is ready.
func newApp(ctx context.Context, schemaFile string, withEngine bool) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := logger.InitLogger(cfg.LogFile, cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	a := &app{cfg: cfg}
	if a.store, err = a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if !withEngine {
		return a, nil
	}

	registry, err := config.LoadTargetSchema(schemaFile)
	if err != nil {
		a.Close()
		return nil, err
	}

	ledger, err := a.openLedger()
	if err != nil {
		a.Close()
		return nil, err
	}
	r, err := a.openReasoner(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.engine, err = engine.New(engine.Options{
		Registry: registry,
		Store:    a.store,
		Governor: cost.NewGovernor(cfg.CostCeilingUSD, ledger),
		Reasoner: r,
		Deadline: cfg.StrategyDeadline,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context) (learning.Store, error) {
	switch a.cfg.CacheBackend {
	case config.BackendSQL:
		dialect, err := learning.ParseDialect(a.cfg.SQLDialect)
		if err != nil {
			return nil, err
		}
		db, err := database.ConnectSQL(dialect.Name, a.cfg.SQLConnString)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { db.Close() })
		store := learning.NewSQLStore(db, dialect, "")
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil

	case config.BackendMongo:
		client, err := database.ConnectMongo(a.cfg.MongoConnString)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(ctx)
		})
		store := learning.NewMongoStore(client, a.cfg.MongoDatabase, "")
		if err := store.EnsureIndexes(ctx); err != nil {
			logger.WithError(err).Warn("could not create learning cache index")
		}
		return store, nil

	default:
		logger.Warn("CACHE_BACKEND=memory, learned mappings are lost when the process exits")
		return learning.NewMemoryStore(), nil
	}
}

func (a *app) openLedger() (cost.Ledger, error) {
	if a.cfg.RedisAddr == "" {
		return cost.NewMemoryLedger(), nil
	}
	client, err := database.ConnectRedis(a.cfg.RedisAddr)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { client.Close() })
	return cost.NewRedisLedger(client, "", 0), nil
}

func (a *app) openReasoner(ctx context.Context) (reasoner.Reasoner, error) {
	pricing := reasoner.Pricing{
		InputPerMTok:  a.cfg.InputPricePerMTok,
		OutputPerMTok: a.cfg.OutputPricePerMTok,
	}
	switch a.cfg.LLMProvider {
	case config.ProviderOpenAI:
		return reasoner.NewOpenAIClient(reasoner.OpenAIConfig{
			APIKey:  a.cfg.LLMAPIKey,
			Model:   a.cfg.LLMModel,
			BaseURL: a.cfg.LLMBaseURL,
			Pricing: pricing,
		}), nil
	case config.ProviderGemini:
		client, err := reasoner.NewGeminiClient(ctx, reasoner.GeminiConfig{
			APIKey:  a.cfg.LLMAPIKey,
			Model:   a.cfg.LLMModel,
			Pricing: pricing,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, nil
	}
}

func runMap(ctx context.Context, opts *MapOptions, out io.Writer) error {
	a, err := newApp(ctx, opts.SchemaFile, true)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := profile.ReadFile(opts.File, profile.Options{SampleRows: max(opts.Preview, profile.DefaultOptions.SampleRows)})
	if err != nil {
		return err
	}
	logger.Infof("Profiled %s: %d columns, %d rows", opts.File, len(p.Fields), p.RowCount)

	res := a.engine.Map(ctx, engine.Request{
		SessionID:  opts.SessionID,
		Fields:     p.Fields,
		SampleRows: p.SampleRows,
		FileType:   p.FileType,
	})
	fmt.Fprintln(out, res.String())
	if !res.Success {
		return fmt.Errorf("mapping failed: %s", res.Error)
	}

	if opts.Preview > 0 {
		rows := p.SampleRows
		if len(rows) > opts.Preview {
			rows = rows[:opts.Preview]
		}
		preview := make([]map[string]string, 0, len(rows))
		for _, row := range rows {
			preview = append(preview, models.ApplyMappings(row, res.Mappings))
		}
		data, err := json.MarshalIndent(preview, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	}
	return nil
}

func runCacheTop(ctx context.Context, limit int, out io.Writer) error {
	a, err := newApp(ctx, "", false)
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.store.TopEntries(ctx, limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATTERN\tTARGET\tCONFIDENCE\tSTRATEGY\tUSAGE\tSUCCESS\tLAST USED")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\t%d\t%s\n",
			e.Pattern, e.TargetField, e.Confidence, e.Strategy, e.UsageCount, e.SuccessRate,
			e.LastUsedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func runSchema(schemaFile string, out io.Writer) error {
	registry, err := config.LoadTargetSchema(schemaFile)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(map[string][]models.TargetFieldSpec{"fields": registry.Fields()})
}
