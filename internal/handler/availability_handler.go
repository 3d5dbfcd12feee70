package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/renraku/internal/model"
)

// AvailabilityServiceInterface は空き時間ハンドラーが必要とするサービスインターフェース。
type AvailabilityServiceInterface interface {
	// FindAvailability は検索窓内で指定時間長の空き枠を開始時刻昇順で返す。
	FindAvailability(ctx context.Context, userID string, startDate, endDate time.Time, durationMinutes, stepMinutes int) ([]model.TimeSlot, error)
}

// AvailabilityHandler は空き時間検索のHTTPハンドラー。
type AvailabilityHandler struct {
	service AvailabilityServiceInterface
}

// NewAvailabilityHandler はAvailabilityHandlerを生成する。
func NewAvailabilityHandler(service AvailabilityServiceInterface) *AvailabilityHandler {
	return &AvailabilityHandler{
		service: service,
	}
}

// timeSlotResponse は空き枠1件のAPIレスポンス。
type timeSlotResponse struct {
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
}

// FindAvailability は空き時間を検索する。
// GET /api/availability?start=RFC3339&end=RFC3339&duration_minutes=30&step_minutes=15
func (h *AvailabilityHandler) FindAvailability(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()

	start, err := time.Parse(time.RFC3339, query.Get("start"))
	if err != nil {
		invalidQueryParam(w, "startにはRFC3339形式の日時を指定してください。")
		return
	}

	end, err := time.Parse(time.RFC3339, query.Get("end"))
	if err != nil {
		invalidQueryParam(w, "endにはRFC3339形式の日時を指定してください。")
		return
	}

	durationMinutes, err := strconv.Atoi(query.Get("duration_minutes"))
	if err != nil {
		invalidQueryParam(w, "duration_minutesには数値を指定してください。")
		return
	}

	// step_minutes省略時は0を渡し、サービス側でduration_minutesが使われる
	stepMinutes := 0
	if stepStr := query.Get("step_minutes"); stepStr != "" {
		stepMinutes, err = strconv.Atoi(stepStr)
		if err != nil {
			invalidQueryParam(w, "step_minutesには数値を指定してください。")
			return
		}
	}

	slots, err := h.service.FindAvailability(r.Context(), userID, start, end, durationMinutes, stepMinutes)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]timeSlotResponse, len(slots))
	for i, slot := range slots {
		results[i] = timeSlotResponse{
			StartTime:       slot.StartTime,
			EndTime:         slot.EndTime,
			DurationMinutes: slot.DurationMinutes,
		}
	}

	writeJSON(w, http.StatusOK, results)
}
