package api

import (
	"context"
	"errors"

	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-kit/kit/endpoint"
	"github.com/openfed/fedcoord/coordinator"
	pkgerrors "github.com/openfed/fedcoord/pkg/errors"
	"github.com/openfed/fedcoord/upload"
)

func acceptUploadEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(uploadReq)
		if !ok {
			return uploadResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return uploadResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		u, err := svc.AcceptUpload(ctx, upload.ClientUpload{
			ClientID:    req.ClientID,
			DatasetSize: req.DatasetSize,
		}, req.Weights)
		if err != nil {
			return uploadResponse{}, err
		}

		return uploadResponse{
			ClientUpload: u,
		}, nil
	}
}

func listUploadsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listUploadsResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listUploadsResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		uploads, err := svc.ListUploads(ctx, req.offset, req.limit)
		if err != nil {
			return listUploadsResponse{}, err
		}

		return listUploadsResponse{
			UploadPage: uploads,
		}, nil
	}
}

func runRoundEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(runRoundReq)
		if !ok {
			return roundResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return roundResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		res, err := svc.RunRound(ctx, req.Evaluate)
		if err != nil {
			return roundResponse{RoundResult: res}, err
		}

		return roundResponse{
			RoundResult: res,
		}, nil
	}
}

func getVersionEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(versionReq)
		if !ok {
			return versionResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return versionResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		v, err := svc.GetVersion(ctx, req.id)
		if err != nil {
			return versionResponse{}, err
		}

		return versionResponse{
			ModelVersion: v,
		}, nil
	}
}

func currentVersionEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		v, err := svc.CurrentVersion(ctx)
		if err != nil {
			return versionResponse{}, err
		}

		return versionResponse{
			ModelVersion: v,
		}, nil
	}
}

func listVersionsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listVersionsResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listVersionsResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		versions, err := svc.ListVersions(ctx, req.offset, req.limit)
		if err != nil {
			return listVersionsResponse{}, err
		}

		return listVersionsResponse{
			VersionPage: versions,
		}, nil
	}
}

func getRewardsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(versionReq)
		if !ok {
			return rewardResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return rewardResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		rec, err := svc.GetRewards(ctx, req.id)
		if err != nil {
			return rewardResponse{}, err
		}

		return rewardResponse{
			Record: rec,
		}, nil
	}
}

func registerDatasetEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return datasetResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return datasetResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		if err := svc.RegisterDataset(ctx, req.id); err != nil {
			return datasetResponse{}, err
		}

		return datasetResponse{}, nil
	}
}
