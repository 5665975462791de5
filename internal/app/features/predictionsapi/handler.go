// internal/app/features/predictionsapi/handler.go

// Package predictionsapi proxies demand-prediction requests to the
// external model service and keeps a per-user history of runs.
package predictionsapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/stockboard/stockboard/internal/app/store/predictions"
	"github.com/stockboard/stockboard/internal/app/system/auth"
	"github.com/stockboard/stockboard/internal/app/system/errlog"
	"github.com/stockboard/stockboard/internal/app/system/jsonutil"
	"github.com/stockboard/stockboard/internal/app/system/mlapi"
	"github.com/stockboard/stockboard/internal/app/system/timeouts"
)

// historyLimit caps the prediction history listing.
const historyLimit = 50

// predictInput is the request body for POST /predictions.
type predictInput struct {
	ProductIDs []string `json:"productIds"`
	Horizon    string   `json:"horizon"`
}

// Handler serves the prediction endpoints.
type Handler struct {
	ml     *mlapi.Client
	store  *predictions.Store
	errs   *errlog.Logger
	logger *zap.Logger
}

// New creates a predictions Handler.
func New(ml *mlapi.Client, store *predictions.Store, errs *errlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{ml: ml, store: store, errs: errs, logger: logger}
}

// HandlePredict requests predictions from the model service and stores
// the run in the user's history.
func (h *Handler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		jsonutil.Unauthorized(w, "authentication required")
		return
	}

	var in predictInput
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.BadRequest(w, "invalid JSON body")
		return
	}
	if len(in.ProductIDs) == 0 {
		jsonutil.BadRequest(w, "productIds is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	resp, err := h.ml.Predict(ctx, mlapi.PredictRequest{
		Branch:     user.Branch,
		ProductIDs: in.ProductIDs,
		Horizon:    in.Horizon,
	})
	if err != nil {
		h.errs.Record(ctx, "predictions", err, zap.String("user_id", user.ID))
		jsonutil.InternalError(w, "prediction service unavailable")
		return
	}

	result := map[string]any{"modelTag": resp.ModelTag, "predictions": resp.Predictions}
	id, err := h.store.Insert(ctx, predictions.Prediction{
		UserID:       user.ID,
		Username:     user.Username,
		Branch:       user.Branch,
		ProductCount: len(in.ProductIDs),
		Horizon:      in.Horizon,
		Result:       result,
	})
	if err != nil {
		// The prediction itself succeeded; a history write failure is
		// logged but not surfaced.
		h.errs.Record(ctx, "predictions", err, zap.String("user_id", user.ID))
	}

	jsonutil.Success(w, map[string]any{
		"predictionId": id.Hex(),
		"predictions":  resp.Predictions,
		"modelTag":     resp.ModelTag,
	})
}

// HandleHistory lists the current user's prediction runs, newest first.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		jsonutil.Unauthorized(w, "authentication required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	preds, err := h.store.ListByUser(ctx, user.ID, historyLimit)
	if err != nil {
		h.errs.Record(ctx, "predictions", err, zap.String("user_id", user.ID))
		jsonutil.InternalError(w, "failed to load prediction history")
		return
	}

	out := make([]map[string]any, 0, len(preds))
	for _, p := range preds {
		out = append(out, map[string]any{
			"predictionId": p.ID.Hex(),
			"productCount": p.ProductCount,
			"horizon":      p.Horizon,
			"generatedAt":  p.GeneratedAt,
		})
	}
	jsonutil.Success(w, map[string]any{"history": out})
}

// HandleGet returns one stored prediction run.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		jsonutil.Unauthorized(w, "authentication required")
		return
	}

	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.BadRequest(w, "invalid prediction id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	p, err := h.store.GetByID(ctx, id)
	if err != nil {
		h.errs.Record(ctx, "predictions", err, zap.String("user_id", user.ID))
		jsonutil.InternalError(w, "failed to load prediction")
		return
	}
	if p == nil || p.UserID != user.ID {
		jsonutil.NotFound(w, "prediction not found")
		return
	}

	jsonutil.Success(w, map[string]any{
		"predictionId": p.ID.Hex(),
		"productCount": p.ProductCount,
		"horizon":      p.Horizon,
		"result":       p.Result,
		"generatedAt":  p.GeneratedAt,
	})
}
