package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/koopa0/llamagate/internal/dispatch"
	"github.com/koopa0/llamagate/internal/model"
)

// modelsHandler serves model listing, hot-swap and health.
type modelsHandler struct {
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
}

type modelsResponse struct {
	Models       []model.Info `json:"models"`
	CurrentModel string       `json:"current_model"`
}

// list handles GET /models.
func (h *modelsHandler) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, modelsResponse{
		Models:       h.dispatcher.ListModels(),
		CurrentModel: h.dispatcher.Current().Name(),
	}, h.logger)
}

type switchRequest struct {
	Name string `json:"name"`
}

type switchResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	CurrentModel string `json:"current_model"`
}

// switchModel handles POST /models/switch. Concurrent switch requests
// serialize behind the dispatcher; requests in flight on the old model
// finish before the swap happens.
func (h *modelsHandler) switchModel(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}

	target, err := model.Resolve(req.Name)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	if err := h.dispatcher.SwitchModel(r.Context(), target); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, switchResponse{
		Success:      true,
		Message:      "switched to " + target.Name(),
		CurrentModel: target.Name(),
	}, h.logger)
}

type healthResponse struct {
	Status          string   `json:"status"`
	CurrentModel    string   `json:"current_model"`
	AvailableModels []string `json:"available_models"`
}

// health handles GET /health. Always 200; model state is reported in the
// body so load balancers can keep probing while a swap is in progress.
func (h *modelsHandler) health(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(model.All()))
	for _, id := range model.All() {
		names = append(names, id.Name())
	}
	status := "ok"
	if !h.dispatcher.Loaded() {
		status = "model_not_loaded"
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:          status,
		CurrentModel:    h.dispatcher.Current().Name(),
		AvailableModels: names,
	}, h.logger)
}
