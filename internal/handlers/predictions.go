package handlers

import (
	"net/http"
	"strconv"

	"github.com/corn-moisture/platform/internal/logging"
	"github.com/corn-moisture/platform/internal/services"
	"github.com/corn-moisture/platform/types"
	"github.com/go-chi/chi/v5"
)

var predictionMessages = errorMessages{notFound: "Prediction not found"}

// PredictionHandler provides HTTP handlers for predictions.
type PredictionHandler struct {
	predictions *services.PredictionService
	responder
}

// NewPredictionHandler constructs a PredictionHandler. In development internal
// error details are included in responses.
func NewPredictionHandler(predictions *services.PredictionService, log logging.Logger, dev bool) *PredictionHandler {
	return &PredictionHandler{
		predictions: predictions,
		responder:   newResponder(log, dev, ErrorFieldStyle),
	}
}

// PredictionRouter registers prediction routes on the given router.
func PredictionRouter(r chi.Router, handler *PredictionHandler) {
	r.Post("/", handler.CreatePrediction)
	r.Get("/", handler.ListPredictions)
	r.Get("/queue/{queue}", handler.ListPredictionsByQueue)
	r.Get("/{sensorID}", handler.ListPredictionsBySensor)
	r.Put("/{predictionID}", handler.UpdatePrediction)
	r.Delete("/{predictionID}", handler.DeletePrediction)
}

// CreatePrediction stores a prediction batch and returns it with 201.
func (h *PredictionHandler) CreatePrediction(w http.ResponseWriter, r *http.Request) {
	var req services.PredictionInput
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.fail(w, r, err, predictionMessages)
		return
	}

	created, err := h.predictions.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, err, predictionMessages)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListPredictions returns every stored prediction.
func (h *PredictionHandler) ListPredictions(w http.ResponseWriter, r *http.Request) {
	rows, err := h.predictions.List(r.Context())
	if err != nil {
		h.fail(w, r, err, predictionMessages)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// ListPredictionsBySensor returns the predictions recorded for one sensor.
func (h *PredictionHandler) ListPredictionsBySensor(w http.ResponseWriter, r *http.Request) {
	rows, err := h.predictions.ListBySensor(r.Context(), chi.URLParam(r, "sensorID"))
	if err != nil {
		h.fail(w, r, err, predictionMessages)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// ListPredictionsByQueue returns the predictions recorded for one queue.
func (h *PredictionHandler) ListPredictionsByQueue(w http.ResponseWriter, r *http.Request) {
	rows, err := h.predictions.ListByQueue(r.Context(), chi.URLParam(r, "queue"))
	if err != nil {
		h.fail(w, r, err, predictionMessages)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// UpdatePrediction patches the allow-listed fields; unknown keys are rejected.
func (h *PredictionHandler) UpdatePrediction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.predictionID(w, r)
	if !ok {
		return
	}

	var req services.PredictionPatchInput
	if err := decodeJSON(w, r, &req, true); err != nil {
		h.fail(w, r, err, predictionMessages)
		return
	}

	updated, err := h.predictions.Update(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err, predictionMessages)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeletePrediction removes a prediction by id.
func (h *PredictionHandler) DeletePrediction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.predictionID(w, r)
	if !ok {
		return
	}

	deleted, err := h.predictions.Delete(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, predictionMessages)
		return
	}
	writeJSON(w, http.StatusOK, PredictionDeletedResponse{
		Message:           "Prediction deleted successfully",
		DeletedPrediction: deleted,
	})
}

func (h *PredictionHandler) predictionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "predictionID"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "Invalid prediction id")
		return 0, false
	}
	return id, true
}

type PredictionDeletedResponse struct {
	Message           string           `json:"message"`
	DeletedPrediction types.Prediction `json:"deletedPrediction"`
}
