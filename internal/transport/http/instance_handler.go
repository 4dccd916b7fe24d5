// Copyright 2026 The CyberCode Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/cybercodeedulabs/cybercode-backend/internal/compute"
	"github.com/cybercodeedulabs/cybercode-backend/internal/identity"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 64 << 10

// ListResponse is the body of GET /instances.
type ListResponse struct {
	Instances []*compute.Instance `json:"instances"`
}

// CreateInstances provisions one or more instances for the caller
// @Summary Create instances
// @Tags Instances
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body compute.CreateRequest true "Instance shape"
// @Success 201 {object} compute.CreateResult
// @Failure 400 {object} errorResponse
// @Failure 403 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Failure 502 {object} errorResponse
// @Router /instances [post]
func (h *Handler) CreateInstances(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req compute.CreateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		msg := "invalid request body"
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		respondError(w, http.StatusBadRequest, compute.CodeInvalidRequest, msg)
		return
	}

	res, err := h.instances.CreateInstances(r.Context(), ident, req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

// CreateFreeInstance provisions the caller's complimentary instance
// @Summary Create the free instance
// @Tags Instances
// @Produce json
// @Security BearerAuth
// @Success 201 {object} compute.CreateResult
// @Failure 409 {object} errorResponse
// @Router /free-instance [post]
func (h *Handler) CreateFreeInstance(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.caller(w, r)
	if !ok {
		return
	}

	res, err := h.instances.CreateFreeInstance(r.Context(), ident)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

// ListInstances returns the instances visible to the caller
// @Summary List instances
// @Tags Instances
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ListResponse
// @Router /instances [get]
func (h *Handler) ListInstances(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.caller(w, r)
	if !ok {
		return
	}

	list, err := h.instances.ListInstances(r.Context(), ident)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []*compute.Instance{}
	}
	respondJSON(w, http.StatusOK, ListResponse{Instances: list})
}

// TerminateInstance destroys an instance and deletes its record
// @Summary Terminate an instance
// @Tags Instances
// @Produce json
// @Security BearerAuth
// @Param id path string true "Instance ID"
// @Success 200 {object} compute.TerminateResult
// @Failure 404 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Failure 502 {object} errorResponse
// @Router /instances/{id} [delete]
func (h *Handler) TerminateInstance(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.caller(w, r)
	if !ok {
		return
	}

	res, err := h.instances.TerminateInstance(r.Context(), ident, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// GetUsage reports resource consumption against quotas
// @Summary Usage report
// @Tags Instances
// @Produce json
// @Security BearerAuth
// @Success 200 {object} compute.Usage
// @Router /usage [get]
func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.caller(w, r)
	if !ok {
		return
	}

	usage, err := h.instances.GetUsage(r.Context(), ident)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, usage)
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (identity.Identity, bool) {
	ident, ok := GetIdentity(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, compute.CodeUnauthorized, "authentication required")
	}
	return ident, ok
}
