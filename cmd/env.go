package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"

	"github.com/reviewpulse/reviewpulse/internal/embed"
	"github.com/reviewpulse/reviewpulse/internal/fetch"
	"github.com/reviewpulse/reviewpulse/internal/model"
	"github.com/reviewpulse/reviewpulse/internal/store"
)

// initStore opens and migrates the configured backend. Callers should
// defer st.Close().
func initStore(ctx context.Context) (*store.Store, error) {
	var poolCfg *store.PoolConfig
	if cfg.Store.MaxConns > 0 {
		poolCfg = &store.PoolConfig{MaxConns: int32(cfg.Store.MaxConns)}
	}
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func initEmbedder() (*embed.Client, error) {
	return embed.New(embed.Config{
		APIKey:    cfg.Embeddings.Key,
		BaseURL:   cfg.Embeddings.BaseURL,
		Model:     cfg.Embeddings.Model,
		BatchSize: cfg.Embeddings.BatchSize,
	})
}

func initFetcher() (fetch.Fetcher, error) {
	return fetch.NewHTTP(fetch.Config{
		BaseURL:           cfg.Fetch.BaseURL,
		Timeout:           time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries:        cfg.Fetch.MaxRetries,
		RetryDelay:        time.Duration(cfg.Fetch.RetryDelaySecs) * time.Second,
		RequestsPerMinute: cfg.Fetch.RequestsPerMinute,
	})
}

// resolveOrgIDs expands an empty argument list to every tracked
// organization.
func resolveOrgIDs(ctx context.Context, st *store.Store, args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	orgs, err := st.ListOrganizations(ctx, "")
	if err != nil {
		return nil, err
	}
	if len(orgs) == 0 {
		return nil, eris.New("no tracked organizations; use track or apply first")
	}
	ids := make([]string, len(orgs))
	for i, org := range orgs {
		ids[i] = org.OrgID
	}
	return ids, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// orgRoleFlag validates a --role value.
func orgRoleFlag(role string) (model.Role, error) {
	r := model.Role(role)
	if !r.Valid() {
		return "", eris.Errorf("invalid role %q (expected mine, competitor or tracked)", role)
	}
	return r, nil
}
