// Package availability はカレンダー予定から空き時間枠を計算するドメインロジックを提供する。
package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hitoshi/renraku/internal/model"
	"github.com/hitoshi/renraku/internal/repository"
)

// Interval は半開区間 [Start, End) の時間帯を表す。
type Interval struct {
	Start time.Time
	End   time.Time
}

// Query は空き時間検索の条件。
// StepMinutesが0以下の場合はDurationMinutesが使われ、候補枠は重ならない。
type Query struct {
	StartDate       time.Time
	EndDate         time.Time
	DurationMinutes int
	StepMinutes     int
}

// Calculator は予定で埋まった時間帯から空き枠を計算するサービス層。
type Calculator struct {
	eventRepo repository.EventRepository
}

// NewCalculator はCalculatorの新しいインスタンスを生成する。
func NewCalculator(eventRepo repository.EventRepository) *Calculator {
	return &Calculator{eventRepo: eventRepo}
}

// FindAvailability は検索窓内で指定時間長の空き枠を開始時刻昇順で返す。
// フロー: 検証 → 窓と重なる予定の取得 → 区間の統合 → 候補枠の走査
func (c *Calculator) FindAvailability(ctx context.Context, userID string, query Query) ([]model.TimeSlot, error) {
	// 1. 検証（ストア呼び出し前に完了させる）
	if query.DurationMinutes <= 0 {
		return nil, model.NewInvalidDurationError(query.DurationMinutes)
	}
	// 空または逆転した窓は異常ではなく空の結果
	if !query.StartDate.Before(query.EndDate) {
		return []model.TimeSlot{}, nil
	}

	stepMinutes := query.StepMinutes
	if stepMinutes <= 0 {
		stepMinutes = query.DurationMinutes
	}

	// 2. 窓と重なる予定の取得
	events, err := c.eventRepo.ListOverlapping(ctx, userID, query.StartDate, query.EndDate)
	if err != nil {
		return nil, fmt.Errorf("予定の取得に失敗しました: %w", err)
	}

	busy := make([]Interval, 0, len(events))
	for _, event := range events {
		busy = append(busy, Interval{Start: event.StartTime, End: event.EndTime})
	}

	// 3. 重なる・隣接する区間を統合する（空き計算の二重減算を防ぐ）
	merged := MergeBusyIntervals(busy)

	// 4. 候補枠の走査。候補の終了が窓を超えた時点で打ち切る。
	duration := time.Duration(query.DurationMinutes) * time.Minute
	step := time.Duration(stepMinutes) * time.Minute

	slots := make([]model.TimeSlot, 0)
	for start := query.StartDate; !start.Add(duration).After(query.EndDate); start = start.Add(step) {
		candidate := Interval{Start: start, End: start.Add(duration)}
		if overlapsAny(candidate, merged) {
			continue
		}
		slots = append(slots, model.TimeSlot{
			StartTime:       candidate.Start,
			EndTime:         candidate.End,
			DurationMinutes: query.DurationMinutes,
		})
	}
	return slots, nil
}

// MergeBusyIntervals は区間を開始時刻昇順に並べ替え、重なる区間と
// 隣接する区間を1つに畳んで返す。入力のスライスは変更しない。
func MergeBusyIntervals(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return []Interval{}
	}

	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start.Equal(sorted[j].Start) {
			return sorted[i].End.Before(sorted[j].End)
		}
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := make([]Interval, 0, len(sorted))
	current := sorted[0]
	for _, next := range sorted[1:] {
		// 隣接（current.End == next.Start）も1つの区間に畳む
		if !next.Start.After(current.End) {
			if next.End.After(current.End) {
				current.End = next.End
			}
			continue
		}
		merged = append(merged, current)
		current = next
	}
	return append(merged, current)
}

// Overlaps は2つの半開区間が重なるかを判定する。
// 境界が接しているだけの区間は重ならない。
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// overlapsAny は候補枠が統合済み区間のいずれかと重なるかを判定する。
func overlapsAny(candidate Interval, merged []Interval) bool {
	for _, interval := range merged {
		if Overlaps(candidate, interval) {
			return true
		}
		// mergedは開始時刻昇順なので、候補より後ろの区間とは重ならない
		if !interval.Start.Before(candidate.End) {
			break
		}
	}
	return false
}
