package export

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
)

// CalendarEvent is one weekly recurring session.
type CalendarEvent struct {
	UID         string
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
}

// Calendar groups events under a calendar name.
type Calendar struct {
	Name   string
	Events []CalendarEvent
}

// ICSExporter renders calendars as iCalendar text.
type ICSExporter struct {
	productID string
	now       func() time.Time
}

// NewICSExporter builds an ICS exporter.
func NewICSExporter() *ICSExporter {
	return &ICSExporter{
		productID: "-//sma-timetable-api//timetable//ID",
		now:       time.Now,
	}
}

// Render emits a VCALENDAR where every event repeats weekly from its first occurrence.
func (e *ICSExporter) Render(calendar Calendar) ([]byte, error) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(e.productID)
	if calendar.Name != "" {
		cal.SetXWRCalName(calendar.Name)
	}

	stamp := e.now().UTC()
	for _, item := range calendar.Events {
		if item.UID == "" {
			return nil, fmt.Errorf("ics event %q has no uid", item.Summary)
		}
		if !item.End.After(item.Start) {
			return nil, fmt.Errorf("ics event %s ends before it starts", item.UID)
		}
		event := cal.AddEvent(item.UID)
		event.SetDtStampTime(stamp)
		event.SetStartAt(item.Start)
		event.SetEndAt(item.End)
		event.SetSummary(item.Summary)
		if item.Description != "" {
			event.SetDescription(item.Description)
		}
		if item.Location != "" {
			event.SetLocation(item.Location)
		}
		event.AddProperty(ics.ComponentPropertyRrule, "FREQ=WEEKLY")
	}

	return []byte(cal.Serialize()), nil
}
