package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reviewpulse/reviewpulse/internal/fetch"
	"github.com/reviewpulse/reviewpulse/internal/model"
	"github.com/reviewpulse/reviewpulse/internal/pipeline"
	"github.com/reviewpulse/reviewpulse/internal/scorer"
	"github.com/reviewpulse/reviewpulse/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		fetcher, err := initFetcher()
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: apiRouter(st, fetcher),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func apiRouter(st *store.Store, fetcher fetch.Fetcher) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/sync/{orgID}", func(w http.ResponseWriter, req *http.Request) {
		full := req.URL.Query().Get("full") == "true"
		report, err := pipeline.NewSyncer(st, fetcher).SyncOrg(req.Context(), chi.URLParam(req, "orgID"), full)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	})

	r.Route("/api/orgs", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			orgs, err := st.ListOrganizations(req.Context(), "")
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, orgs)
		})

		r.Route("/{orgID}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, req *http.Request) {
				org, err := st.GetOrganization(req.Context(), chi.URLParam(req, "orgID"))
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, org)
			})

			r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
				summary, err := st.Stats(req.Context(), chi.URLParam(req, "orgID"))
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, summary)
			})

			r.Get("/score", func(w http.ResponseWriter, req *http.Request) {
				result, err := scorer.New(st).ComputeOrgScore(req.Context(), chi.URLParam(req, "orgID"))
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, result)
			})

			r.Get("/trends", func(w http.ResponseWriter, req *http.Request) {
				groupBy := req.URL.Query().Get("group_by")
				if groupBy == "" {
					groupBy = "month"
				}
				points, err := st.Trends(req.Context(), chi.URLParam(req, "orgID"),
					groupBy, req.URL.Query().Get("since"))
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, points)
			})

			r.Get("/reviews", func(w http.ResponseWriter, req *http.Request) {
				limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
				orgID := chi.URLParam(req, "orgID")
				var (
					reviews []model.Review
					err     error
				)
				if req.URL.Query().Get("unanswered") == "true" {
					reviews, err = st.UnansweredReviews(req.Context(), orgID, limit)
				} else {
					starsMin, _ := strconv.ParseFloat(req.URL.Query().Get("stars_min"), 64)
					starsMax, _ := strconv.ParseFloat(req.URL.Query().Get("stars_max"), 64)
					reviews, err = st.ListReviews(req.Context(), orgID, store.QueryReviewsOpts{
						Since:    req.URL.Query().Get("since"),
						StarsMin: starsMin,
						StarsMax: starsMax,
						Limit:    limit,
					})
				}
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, reviews)
			})
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, store.ErrNoRows) {
		status = http.StatusNotFound
	} else {
		zap.L().Error("api request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
