package api

import (
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/openfed/fedcoord/pkg/aggregate"
)

type uploadReq struct {
	ClientID    string            `json:"client_id"`
	DatasetSize uint64            `json:"dataset_size"`
	Weights     aggregate.Weights `json:"weights"`
}

func (u *uploadReq) validate() error {
	if u.ClientID == "" {
		return apiutil.ErrMissingID
	}
	if len(u.Weights) == 0 {
		return apiutil.ErrEmptyList
	}

	return nil
}

type runRoundReq struct {
	Evaluate bool `json:"evaluate"`
}

func (r *runRoundReq) validate() error {
	return nil
}

type versionReq struct {
	id uint64
}

func (v *versionReq) validate() error {
	if v.id == 0 {
		return apiutil.ErrMissingID
	}

	return nil
}

type entityReq struct {
	id string
}

func (e *entityReq) validate() error {
	if e.id == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type listEntityReq struct {
	offset, limit uint64
}

func (e *listEntityReq) validate() error {
	return nil
}
