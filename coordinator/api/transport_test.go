package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openfed/fedcoord/coordinator"
	"github.com/openfed/fedcoord/coordinator/api"
	"github.com/openfed/fedcoord/coordinator/mocks"
	pkgerrors "github.com/openfed/fedcoord/pkg/errors"
	"github.com/openfed/fedcoord/pkg/reward"
	"github.com/openfed/fedcoord/upload"
	"github.com/openfed/fedcoord/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) (*httptest.Server, *mocks.MockService) {
	t.Helper()

	svc := new(mocks.MockService)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(api.MakeHandler(svc, logger, "test-instance"))
	t.Cleanup(srv.Close)

	return srv, svc
}

func TestAcceptUploadEndpoint(t *testing.T) {
	srv, svc := newServer(t)

	svc.On("AcceptUpload", mock.Anything, mock.Anything, mock.Anything).Return(upload.ClientUpload{
		ID:          "u-1",
		ClientID:    "client-a",
		RoundMarker: 1,
		Count:       1,
	}, nil)

	body := `{"client_id":"client-a","dataset_size":100,"weights":{"layer":[1.0,2.0]}}`
	resp, err := http.Post(srv.URL+"/uploads", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "/uploads/u-1", resp.Header.Get("Location"))
	svc.AssertExpectations(t)
}

func TestAcceptUploadValidation(t *testing.T) {
	srv, _ := newServer(t)

	cases := []struct {
		desc        string
		contentType string
		body        string
		code        int
	}{
		{
			desc:        "missing client id",
			contentType: "application/json",
			body:        `{"dataset_size":100,"weights":{"layer":[1.0]}}`,
			code:        http.StatusBadRequest,
		},
		{
			desc:        "missing weights",
			contentType: "application/json",
			body:        `{"client_id":"client-a","dataset_size":100}`,
			code:        http.StatusBadRequest,
		},
		{
			desc:        "wrong content type",
			contentType: "text/plain",
			body:        `{"client_id":"client-a"}`,
			code:        http.StatusBadRequest,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/uploads", tc.contentType, strings.NewReader(tc.body))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tc.code, resp.StatusCode)
		})
	}
}

func TestRunRoundEndpoint(t *testing.T) {
	srv, svc := newServer(t)

	svc.On("RunRound", mock.Anything, true).Return(coordinator.RoundResult{
		Published:    true,
		VersionID:    2,
		ParentID:     1,
		Contributors: []string{"client-a"},
	}, nil)

	resp, err := http.Post(srv.URL+"/rounds", "application/json", bytes.NewReader(nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "/versions/2", resp.Header.Get("Location"))

	var res coordinator.RoundResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, uint64(2), res.VersionID)
	svc.AssertExpectations(t)
}

func TestRunRoundEndpointSkipsEvaluation(t *testing.T) {
	srv, svc := newServer(t)

	svc.On("RunRound", mock.Anything, false).Return(coordinator.RoundResult{
		Published: true,
		VersionID: 2,
		ParentID:  1,
	}, nil)

	resp, err := http.Post(srv.URL+"/rounds", "application/json", strings.NewReader(`{"evaluate":false}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	svc.AssertExpectations(t)
}

func TestRunRoundEndpointNoUploads(t *testing.T) {
	srv, svc := newServer(t)

	svc.On("RunRound", mock.Anything, true).Return(coordinator.RoundResult{ParentID: 1}, pkgerrors.ErrNoNewUploads)

	resp, err := http.Post(srv.URL+"/rounds", "application/json", bytes.NewReader(nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestGetVersionEndpoint(t *testing.T) {
	srv, svc := newServer(t)

	svc.On("GetVersion", mock.Anything, uint64(2)).Return(version.ModelVersion{
		ID:          2,
		ParentID:    1,
		ArtifactRef: "models/model_v2.cbor",
	}, nil)

	resp, err := http.Get(srv.URL + "/versions/2")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var v version.ModelVersion
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	assert.Equal(t, "models/model_v2.cbor", v.ArtifactRef)
}

func TestGetVersionEndpointNotFound(t *testing.T) {
	srv, svc := newServer(t)

	svc.On("GetVersion", mock.Anything, uint64(99)).Return(version.ModelVersion{}, pkgerrors.ErrNotFound)

	resp, err := http.Get(srv.URL + "/versions/99")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetVersionEndpointBadID(t *testing.T) {
	srv, _ := newServer(t)

	resp, err := http.Get(srv.URL + "/versions/nope")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCurrentVersionEndpoint(t *testing.T) {
	srv, svc := newServer(t)

	svc.On("CurrentVersion", mock.Anything).Return(version.ModelVersion{ID: 3}, nil)

	resp, err := http.Get(srv.URL + "/versions/current")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var v version.ModelVersion
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	assert.Equal(t, uint64(3), v.ID)
}

func TestGetRewardsEndpoint(t *testing.T) {
	srv, svc := newServer(t)

	svc.On("GetRewards", mock.Anything, uint64(2)).Return(reward.Record{
		VersionID:   2,
		Coefficient: 1,
		Shares: map[string]reward.Share{
			"client-a": {RawScore: 104, Amount: 66.67},
		},
	}, nil)

	resp, err := http.Get(srv.URL + "/versions/2/rewards")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var rec reward.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.InDelta(t, 66.67, rec.Shares["client-a"].Amount, 1e-9)
}

func TestRegisterDatasetEndpoint(t *testing.T) {
	srv, svc := newServer(t)

	svc.On("RegisterDataset", mock.Anything, "client-a").Return(nil)

	resp, err := http.Post(srv.URL+"/clients/client-a/dataset", "application/json", bytes.NewReader(nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	svc.AssertExpectations(t)
}

func TestListVersionsEndpoint(t *testing.T) {
	srv, svc := newServer(t)

	svc.On("ListVersions", mock.Anything, uint64(0), uint64(100)).Return(version.VersionPage{
		Total:    2,
		Limit:    100,
		Versions: []version.ModelVersion{{ID: 1}, {ID: 2}},
	}, nil)

	resp, err := http.Get(srv.URL + "/versions")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var page version.VersionPage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.Equal(t, uint64(2), page.Total)
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
