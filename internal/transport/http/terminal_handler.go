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
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/cybercodeedulabs/cybercode-backend/internal/observability/logger"
	"github.com/cybercodeedulabs/cybercode-backend/internal/terminal"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/net/websocket"
)

// Terminal upgrades the request to a websocket and relays raw bytes to a
// shell in the requested container. The credential and target travel in
// the query string: ?token=...&container=...
func (h *Handler) Terminal(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := terminal.Request{
		Token:      q.Get("token"),
		Container:  q.Get("container"),
		RemoteAddr: getClientIP(r),
		UserAgent:  r.UserAgent(),
	}
	reqID := middleware.GetReqID(r.Context())

	websocket.Server{
		Handshake: h.checkOrigin,
		Handler: func(ws *websocket.Conn) {
			ws.PayloadType = websocket.BinaryFrame
			// The hijacked connection keeps the server's request deadlines.
			_ = ws.SetDeadline(time.Time{})
			err := h.terminals.Serve(r.Context(), ws, req)
			if err != nil && !errors.Is(err, terminal.ErrUnauthorized) {
				slog.InfoContext(r.Context(), "terminal connection ended",
					logger.RequestID(reqID),
					logger.ContainerName(req.Container),
					logger.Error(err),
				)
			}
		},
	}.ServeHTTP(w, r)
}

// checkOrigin accepts the handshake when no origins are configured or the
// Origin header matches one of them.
func (h *Handler) checkOrigin(cfg *websocket.Config, r *http.Request) error {
	origin, err := websocket.Origin(cfg, r)
	if err != nil {
		return err
	}
	cfg.Origin = origin
	if len(h.cfg.AllowedOrigins) == 0 {
		return nil
	}
	if origin == nil {
		return fmt.Errorf("missing origin")
	}
	got := strings.TrimSuffix(origin.Scheme+"://"+origin.Host, "/")
	if !slices.ContainsFunc(h.cfg.AllowedOrigins, func(allowed string) bool {
		return strings.EqualFold(strings.TrimSuffix(allowed, "/"), got)
	}) {
		slog.WarnContext(r.Context(), "terminal origin rejected",
			logger.RequestID(middleware.GetReqID(r.Context())),
			logger.String("origin", got),
		)
		return fmt.Errorf("origin %q not allowed", got)
	}
	return nil
}
