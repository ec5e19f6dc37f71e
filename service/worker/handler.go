package worker

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
	"github.com/viant/scatter/service/invoker"
)

// Handler accepts invocations over HTTP and evaluates them in the background
type Handler struct {
	service *Service
	wg      conc.WaitGroup
}

// ServeHTTP answers 202 once the request is decoded; the trial then runs
// detached from the HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	request := &invoker.Request{}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(request); err != nil {
		http.Error(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if request.CorrelationID == "" {
		http.Error(w, "message_id was empty", http.StatusBadRequest)
		return
	}
	ctx := context.WithoutCancel(r.Context())
	h.wg.Go(func() {
		h.service.Handle(ctx, request)
	})
	w.WriteHeader(http.StatusAccepted)
}

// Wait blocks until every accepted trial finished. A panicking trial is
// logged and does not take the worker down.
func (h *Handler) Wait() {
	if recovered := h.wg.WaitAndRecover(); recovered != nil {
		logrus.WithField("panic", recovered.Value).Error("trial panicked")
	}
}

// NewHandler creates an HTTP handler for service
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}
