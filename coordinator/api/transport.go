package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/absmach/supermq"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/openfed/fedcoord/coordinator"
	"github.com/openfed/fedcoord/pkg/api"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func MakeHandler(svc coordinator.Service, logger *slog.Logger, instanceID string) http.Handler {
	mux := chi.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(apiutil.LoggingErrorEncoder(logger, api.EncodeError)),
	}

	mux.Route("/uploads", func(r chi.Router) {
		r.Post("/", otelhttp.NewHandler(kithttp.NewServer(
			acceptUploadEndpoint(svc),
			decodeUploadReq,
			api.EncodeResponse,
			opts...,
		), "accept-upload").ServeHTTP)
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			listUploadsEndpoint(svc),
			decodeListEntityReq,
			api.EncodeResponse,
			opts...,
		), "list-uploads").ServeHTTP)
	})

	mux.Post("/rounds", otelhttp.NewHandler(kithttp.NewServer(
		runRoundEndpoint(svc),
		decodeRunRoundReq,
		api.EncodeResponse,
		opts...,
	), "run-round").ServeHTTP)

	mux.Route("/versions", func(r chi.Router) {
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			listVersionsEndpoint(svc),
			decodeListEntityReq,
			api.EncodeResponse,
			opts...,
		), "list-versions").ServeHTTP)
		r.Get("/current", otelhttp.NewHandler(kithttp.NewServer(
			currentVersionEndpoint(svc),
			decodeEmptyReq,
			api.EncodeResponse,
			opts...,
		), "current-version").ServeHTTP)
		r.Route("/{versionID}", func(r chi.Router) {
			r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
				getVersionEndpoint(svc),
				decodeVersionReq,
				api.EncodeResponse,
				opts...,
			), "get-version").ServeHTTP)
			r.Get("/rewards", otelhttp.NewHandler(kithttp.NewServer(
				getRewardsEndpoint(svc),
				decodeVersionReq,
				api.EncodeResponse,
				opts...,
			), "get-rewards").ServeHTTP)
		})
	})

	mux.Post("/clients/{clientID}/dataset", otelhttp.NewHandler(kithttp.NewServer(
		registerDatasetEndpoint(svc),
		decodeEntityReq("clientID"),
		api.EncodeResponse,
		opts...,
	), "register-dataset").ServeHTTP)

	mux.Get("/health", supermq.Health("coordinator", instanceID))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func decodeUploadReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req uploadReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	return req, nil
}

// decodeRunRoundReq tolerates an empty body; evaluation defaults to on so a
// bare POST /rounds schedules the full round with evaluation.
func decodeRunRoundReq(_ context.Context, r *http.Request) (any, error) {
	req := runRoundReq{Evaluate: true}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	return req, nil
}

func decodeVersionReq(_ context.Context, r *http.Request) (any, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "versionID"), 10, 64)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	return versionReq{
		id: id,
	}, nil
}

func decodeEntityReq(key string) kithttp.DecodeRequestFunc {
	return func(_ context.Context, r *http.Request) (any, error) {
		return entityReq{
			id: chi.URLParam(r, key),
		}, nil
	}
}

func decodeEmptyReq(_ context.Context, _ *http.Request) (any, error) {
	return nil, nil
}

func decodeListEntityReq(_ context.Context, r *http.Request) (any, error) {
	o, err := apiutil.ReadNumQuery[uint64](r, api.OffsetKey, api.DefOffset)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	l, err := apiutil.ReadNumQuery[uint64](r, api.LimitKey, api.DefLimit)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	return listEntityReq{
		offset: o,
		limit:  l,
	}, nil
}
