// Package server exposes the health agents over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"healthflow/internal/agents"
	"healthflow/internal/core"
	"healthflow/internal/hrv"
)

// Handler holds the HTTP handlers
type Handler struct {
	deps agents.Deps
	now  func() time.Time
}

// NewHandler creates a handler that runs agents with deps.
func NewHandler(deps agents.Deps) *Handler {
	return &Handler{
		deps: deps,
		now:  time.Now,
	}
}

// Health handles GET /api/health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"message": "HealthFlow AI API is running",
	})
}

// CheckHRV handles GET /api/hrv/check. It analyzes today's simulated reading.
func (h *Handler) CheckHRV(c echo.Context) error {
	reading := hrv.Today(h.now())
	analysis := agents.AnalyzeRecovery(c.Request().Context(), h.deps, reading)
	return c.JSON(http.StatusOK, map[string]any{
		"hrv_data": reading,
		"analysis": analysis,
	})
}

// AnalyzeHRV handles POST /api/hrv/analyze
func (h *Handler) AnalyzeHRV(c echo.Context) error {
	var reading core.HRVReading
	if err := bindJSON(c, &reading); err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, agents.AnalyzeRecovery(c.Request().Context(), h.deps, reading))
}

// ParseMedical handles POST /api/medical/parse
func (h *Handler) ParseMedical(c echo.Context) error {
	var profile core.MedicalProfile
	if err := bindJSON(c, &profile); err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, agents.ExtractConstraints(c.Request().Context(), h.deps, profile))
}

// MedicalConstraints handles POST /api/medical/constraints
func (h *Handler) MedicalConstraints(c echo.Context) error {
	var profile core.MedicalProfile
	if err := bindJSON(c, &profile); err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, agents.StructuredConstraints(c.Request().Context(), h.deps, profile))
}

// nutritionRequest accepts the meal under any of the names clients use.
type nutritionRequest struct {
	MealDescription string          `json:"meal_description"`
	Meal            string          `json:"meal"`
	RecentMeals     json.RawMessage `json:"recent_meals"`
	Medications     []string        `json:"medications"`
}

func (r nutritionRequest) meal() string {
	for _, m := range []string{r.MealDescription, r.Meal} {
		if strings.TrimSpace(m) != "" {
			return m
		}
	}
	if len(r.RecentMeals) == 0 {
		return ""
	}
	var one string
	if err := json.Unmarshal(r.RecentMeals, &one); err == nil {
		return one
	}
	var many []string
	if err := json.Unmarshal(r.RecentMeals, &many); err == nil {
		return strings.Join(many, ", ")
	}
	return ""
}

// AnalyzeNutrition handles POST /api/nutrition/analyze and /api/nutrition/check
func (h *Handler) AnalyzeNutrition(c echo.Context) error {
	var req nutritionRequest
	if err := bindJSON(c, &req); err != nil {
		return handleError(c, err)
	}
	meal := req.meal()
	if strings.TrimSpace(meal) == "" {
		return handleError(c, core.NewInvalidRequestError("meal_description is required", nil))
	}
	return c.JSON(http.StatusOK, agents.AnalyzeMeal(c.Request().Context(), h.deps, meal, req.Medications))
}

// workoutRequest takes either a user_context object or its fields flattened
// onto the body.
type workoutRequest struct {
	MedicalConstraints string              `json:"medical_constraints"`
	HRVAnalysis        string              `json:"hrv_analysis"`
	UserContext        *core.UserContext   `json:"user_context"`
	Equipment          []string            `json:"equipment"`
	TimeAvailable      core.OptionalNumber `json:"time_available"`
	EnergyLevel        core.OptionalNumber `json:"energy_level"`
}

func (r workoutRequest) toAgent() agents.WorkoutRequest {
	ctx := core.UserContext{
		TimeMinutes: r.TimeAvailable,
		Equipment:   r.Equipment,
		EnergyLevel: r.EnergyLevel,
	}
	if r.UserContext != nil {
		ctx = *r.UserContext
	}
	return agents.WorkoutRequest{
		MedicalConstraints: r.MedicalConstraints,
		HRVAnalysis:        r.HRVAnalysis,
		Context:            ctx,
	}
}

// GenerateWorkout handles POST /api/workout/generate
func (h *Handler) GenerateWorkout(c echo.Context) error {
	var req workoutRequest
	if err := bindJSON(c, &req); err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, agents.GenerateWorkout(c.Request().Context(), h.deps, req.toAgent()))
}

// Orchestrate handles POST /api/orchestrate
func (h *Handler) Orchestrate(c echo.Context) error {
	var req agents.DailyRequest
	if err := bindJSON(c, &req); err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, agents.DailyWorkout(c.Request().Context(), h.deps, req))
}

// bindJSON decodes the request body. An empty body decodes as the zero value.
func bindJSON(c echo.Context, dst any) error {
	body := c.Request().Body
	if body == nil || body == http.NoBody {
		return nil
	}
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code == http.StatusRequestEntityTooLarge {
			return &core.GatewayError{
				Type:       core.ErrorTypeInvalidRequest,
				Message:    "request body too large",
				StatusCode: http.StatusRequestEntityTooLarge,
				Err:        err,
			}
		}
		return core.NewInvalidRequestError("invalid request body: "+err.Error(), err)
	}
	return nil
}

// handleError converts gateway errors to appropriate HTTP responses
func handleError(c echo.Context, err error) error {
	var gatewayErr *core.GatewayError
	if errors.As(err, &gatewayErr) {
		return c.JSON(gatewayErr.HTTPStatusCode(), gatewayErr.ToJSON())
	}

	slog.Error("unexpected handler error", "error", err, core.RequestIDAttr(c.Request().Context()))
	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"error": map[string]interface{}{
			"type":    "internal_error",
			"message": "an unexpected error occurred",
		},
	})
}

// httpErrorHandler renders echo's own errors (404, 405, 413) in the same
// envelope as handler errors.
func httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if !errors.As(err, &he) {
		_ = handleError(c, err) //nolint:errcheck
		return
	}

	errType := core.ErrorTypeInvalidRequest
	switch {
	case he.Code == http.StatusUnauthorized:
		errType = core.ErrorTypeAuthentication
	case he.Code == http.StatusNotFound:
		errType = core.ErrorTypeNotFound
	case he.Code >= http.StatusInternalServerError:
		errType = core.ErrorTypeInternal
	}
	_ = handleError(c, &core.GatewayError{ //nolint:errcheck
		Type:       errType,
		Message:    strings.ToLower(fmt.Sprint(he.Message)),
		StatusCode: he.Code,
		Err:        err,
	})
}
