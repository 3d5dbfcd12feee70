package calsync

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
)

// ParsedEvent はICSフィードからパースした予定1件を表す。
type ParsedEvent struct {
	UID         string
	Title       string
	Description string
	Location    string
	StartTime   time.Time
	EndTime     time.Time
	AllDay      bool
}

// ParseICS はICSデータをパースして予定のリストを返す。
// UIDが無い、または期間が不正（終了が開始以前）なVEVENTはスキップし、
// スキップ件数を第2戻り値で返す。
func ParseICS(data []byte) ([]ParsedEvent, int, error) {
	cal, err := ics.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("ICSのパースに失敗しました: %w", err)
	}

	var events []ParsedEvent
	skipped := 0

	for _, ve := range cal.Events() {
		ev, ok := parseEvent(ve)
		if !ok {
			skipped++
			continue
		}
		events = append(events, ev)
	}

	return events, skipped, nil
}

// parseEvent はVEVENT 1件をParsedEventへ変換する。
// 変換できない場合はfalseを返す。
func parseEvent(ve *ics.VEvent) (ParsedEvent, bool) {
	uid := propValue(ve, ics.ComponentPropertyUniqueId)
	if uid == "" {
		return ParsedEvent{}, false
	}

	allDay := isAllDay(ve)

	var start, end time.Time
	var err error
	if allDay {
		start, err = ve.GetAllDayStartAt()
		if err != nil {
			return ParsedEvent{}, false
		}
		end, err = ve.GetAllDayEndAt()
		if err != nil {
			// DTENDの無い終日予定は1日分として扱う
			end = start.Add(24 * time.Hour)
		}
	} else {
		start, err = ve.GetStartAt()
		if err != nil {
			return ParsedEvent{}, false
		}
		end, err = ve.GetEndAt()
		if err != nil {
			return ParsedEvent{}, false
		}
	}

	if !end.After(start) {
		return ParsedEvent{}, false
	}

	return ParsedEvent{
		UID:         uid,
		Title:       unescapeText(propValue(ve, ics.ComponentPropertySummary)),
		Description: unescapeText(propValue(ve, ics.ComponentPropertyDescription)),
		Location:    unescapeText(propValue(ve, ics.ComponentPropertyLocation)),
		StartTime:   start,
		EndTime:     end,
		AllDay:      allDay,
	}, true
}

// isAllDay はDTSTARTのVALUEパラメータがDATEかどうかで終日予定を判定する。
func isAllDay(ve *ics.VEvent) bool {
	p := ve.GetProperty(ics.ComponentPropertyDtStart)
	if p == nil {
		return false
	}
	values, ok := p.ICalParameters["VALUE"]
	if !ok || len(values) == 0 {
		return false
	}
	return values[0] == "DATE"
}

// propValue は指定プロパティの値を返す。存在しない場合は空文字列。
func propValue(ve *ics.VEvent, name ics.ComponentProperty) string {
	p := ve.GetProperty(name)
	if p == nil {
		return ""
	}
	return p.Value
}

// unescapeText はiCalendarのTEXT型エスケープを解除する。
// \n は改行に、\, \; \\ はそれぞれの文字に変換する。
func unescapeText(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n', 'N':
			b.WriteByte('\n')
		case ',', ';', '\\':
			b.WriteByte(s[i])
		default:
			// 未知のエスケープはそのまま残す
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
