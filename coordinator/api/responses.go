package api

import (
	"fmt"
	"net/http"

	"github.com/absmach/supermq"
	"github.com/openfed/fedcoord/coordinator"
	"github.com/openfed/fedcoord/pkg/reward"
	"github.com/openfed/fedcoord/upload"
	"github.com/openfed/fedcoord/version"
)

var (
	_ supermq.Response = (*uploadResponse)(nil)
	_ supermq.Response = (*listUploadsResponse)(nil)
	_ supermq.Response = (*roundResponse)(nil)
	_ supermq.Response = (*versionResponse)(nil)
	_ supermq.Response = (*listVersionsResponse)(nil)
	_ supermq.Response = (*rewardResponse)(nil)
	_ supermq.Response = (*datasetResponse)(nil)
)

type uploadResponse struct {
	upload.ClientUpload
}

func (u uploadResponse) Code() int {
	return http.StatusCreated
}

func (u uploadResponse) Headers() map[string]string {
	return map[string]string{
		"Location": "/uploads/" + u.ID,
	}
}

func (u uploadResponse) Empty() bool {
	return false
}

type listUploadsResponse struct {
	upload.UploadPage
}

func (l listUploadsResponse) Code() int {
	return http.StatusOK
}

func (l listUploadsResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listUploadsResponse) Empty() bool {
	return false
}

type roundResponse struct {
	coordinator.RoundResult
}

func (r roundResponse) Code() int {
	if r.Published {
		return http.StatusCreated
	}

	return http.StatusOK
}

func (r roundResponse) Headers() map[string]string {
	if r.Published {
		return map[string]string{
			"Location": fmt.Sprintf("/versions/%d", r.VersionID),
		}
	}

	return map[string]string{}
}

func (r roundResponse) Empty() bool {
	return false
}

type versionResponse struct {
	version.ModelVersion
}

func (v versionResponse) Code() int {
	return http.StatusOK
}

func (v versionResponse) Headers() map[string]string {
	return map[string]string{}
}

func (v versionResponse) Empty() bool {
	return false
}

type listVersionsResponse struct {
	version.VersionPage
}

func (l listVersionsResponse) Code() int {
	return http.StatusOK
}

func (l listVersionsResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listVersionsResponse) Empty() bool {
	return false
}

type rewardResponse struct {
	reward.Record
}

func (r rewardResponse) Code() int {
	return http.StatusOK
}

func (r rewardResponse) Headers() map[string]string {
	return map[string]string{}
}

func (r rewardResponse) Empty() bool {
	return false
}

type datasetResponse struct{}

func (d datasetResponse) Code() int {
	return http.StatusAccepted
}

func (d datasetResponse) Headers() map[string]string {
	return map[string]string{}
}

func (d datasetResponse) Empty() bool {
	return true
}
