package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/iwvelando/meal-budget/internal/devicesync"
	"github.com/iwvelando/meal-budget/internal/household"
	"github.com/iwvelando/meal-budget/internal/mealplan"
	"github.com/iwvelando/meal-budget/internal/planner"
	"github.com/iwvelando/meal-budget/internal/recipe"
	"github.com/iwvelando/meal-budget/pkg/constants"
	"github.com/iwvelando/meal-budget/pkg/money"
	"go.uber.org/zap"
)

// PlanRunner runs the plan workflow. *planner.Service satisfies it.
type PlanRunner interface {
	Run(ctx context.Context, req planner.Request) (*planner.Outcome, error)
}

// Dependencies are the services the API exposes.
type Dependencies struct {
	Planner     PlanRunner
	Distributor *household.Distributor
	Adapter     *recipe.Adapter
	Resolver    *devicesync.Resolver
}

type handler struct {
	logger        *zap.Logger
	deps          Dependencies
	bodyLimit int64
	version       string
}

// NewHandler constructs the HTTP handler that serves the planning API.
func NewHandler(logger *zap.Logger, deps Dependencies, bodyLimit int64, version string) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	if bodyLimit <= 0 {
		bodyLimit = constants.DefaultMaxBodyBytes
	}

	trimmedVersion := strings.TrimSpace(version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	h := &handler{logger: logger, deps: deps, bodyLimit: bodyLimit, version: trimmedVersion}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/plan", h.handlePlan)
	mux.HandleFunc("/api/household/distribution", h.handleDistribution)
	mux.HandleFunc("/api/recipes/adapt", h.handleAdapt)
	mux.HandleFunc("/api/sync/resolve", h.handleSync)
	mux.HandleFunc("/api/version", h.handleVersion)

	return mux
}

type planRequest struct {
	UserID         int64   `json:"userId"`
	Budget         float64 `json:"budget"` // major units
	CaloriesTarget int     `json:"caloriesTarget"`
	Days           int     `json:"days"`
	MealsPerDay    int     `json:"mealsPerDay"`
	AcceptPartial  bool    `json:"acceptPartial"`
}

type planResponse struct {
	*planner.Outcome
	Duration string `json:"duration"`
}

type distributionRequest struct {
	Members     []household.Member `json:"members"`
	TotalBudget float64            `json:"totalBudget"` // major units
}

type adaptRequest struct {
	Recipe recipe.Recipe `json:"recipe"`
	Pantry recipe.Pantry `json:"pantry"`
}

type adaptResponse struct {
	Adapted *recipe.Adapted `json:"adapted"`
	BuyList []recipe.Line   `json:"buyList"`
}

type syncRequest struct {
	DeviceA []devicesync.Change `json:"deviceA"`
	DeviceB []devicesync.Change `json:"deviceB"`
}

func (h *handler) handlePlan(w http.ResponseWriter, r *http.Request) {
	const op = "server.handlePlan"
	if !h.allow(w, r, http.MethodPost) {
		return
	}
	if h.deps.Planner == nil {
		h.respondErrorWithOp(w, http.StatusServiceUnavailable, "planner is not configured", op)
		return
	}

	start := time.Now()
	var req planRequest
	if !h.decode(w, r, &req, op) {
		return
	}

	outcome, err := h.deps.Planner.Run(r.Context(), planner.Request{
		Request: mealplan.Request{
			UserID:         req.UserID,
			Budget:         money.FromMajor(req.Budget),
			CaloriesTarget: req.CaloriesTarget,
			Days:           req.Days,
			MealsPerDay:    req.MealsPerDay,
		},
		AcceptPartial: req.AcceptPartial,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, planner.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		h.respondErrorWithOp(w, status, err.Error(), op)
		return
	}

	h.writeJSON(w, http.StatusOK, planResponse{Outcome: outcome, Duration: time.Since(start).String()})
}

func (h *handler) handleDistribution(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleDistribution"
	if !h.allow(w, r, http.MethodPost) {
		return
	}
	if h.deps.Distributor == nil {
		h.respondErrorWithOp(w, http.StatusServiceUnavailable, "household distribution is not configured", op)
		return
	}

	var req distributionRequest
	if !h.decode(w, r, &req, op) {
		return
	}

	dist, err := h.deps.Distributor.Distribute(req.Members, money.FromMajor(req.TotalBudget))
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}
	h.writeJSON(w, http.StatusOK, dist)
}

func (h *handler) handleAdapt(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleAdapt"
	if !h.allow(w, r, http.MethodPost) {
		return
	}
	if h.deps.Adapter == nil {
		h.respondErrorWithOp(w, http.StatusServiceUnavailable, "recipe adapter is not configured", op)
		return
	}

	var req adaptRequest
	if !h.decode(w, r, &req, op) {
		return
	}

	adapted, err := h.deps.Adapter.Adapt(req.Recipe, req.Pantry)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}
	buy := adapted.BuyList()
	if buy == nil {
		buy = []recipe.Line{}
	}
	h.writeJSON(w, http.StatusOK, adaptResponse{Adapted: adapted, BuyList: buy})
}

func (h *handler) handleSync(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSync"
	if !h.allow(w, r, http.MethodPost) {
		return
	}
	if h.deps.Resolver == nil {
		h.respondErrorWithOp(w, http.StatusServiceUnavailable, "sync resolver is not configured", op)
		return
	}

	var req syncRequest
	if !h.decode(w, r, &req, op) {
		return
	}

	result, err := h.deps.Resolver.Sync(req.DeviceA, req.DeviceB)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, http.MethodGet) {
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

func (h *handler) allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// decode reads a JSON body capped at the upload limit into dst. It writes
// the error response itself and reports whether decoding succeeded.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}, op string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.bodyLimit)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request exceeds limit of %d bytes", h.bodyLimit), op)
			return false
		}
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to decode request: %v", err), op)
		return false
	}
	return true
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	h.logger.Error("api request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)

	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}
