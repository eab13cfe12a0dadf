package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleTable() Table {
	return Table{
		Title:   "Jadwal X IPA 1",
		Headers: []string{"Day", "Slot", "Time", "Course", "Teacher"},
		Rows: [][]string{
			{"MONDAY", "1-2", "07:00-08:30", "Matematika", "Bu Ani"},
			{"TUESDAY", "3", "08:30-09:15", "Agama"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleTable())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Day,Slot,Time,Course,Teacher", lines[0])
	assert.Equal(t, "MONDAY,1-2,07:00-08:30,Matematika,Bu Ani", lines[1])
	assert.Equal(t, "TUESDAY,3,08:30-09:15,Agama,", lines[2])
}

func TestExportersRejectBadTables(t *testing.T) {
	_, err := NewCSVExporter().Render(Table{})
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Table{Headers: []string{"a"}, Rows: [][]string{{"1", "2"}}})
	assert.Error(t, err)
	_, err = NewXLSXExporter().Render(Table{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleTable())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestXLSXExporterRender(t *testing.T) {
	out, err := NewXLSXExporter().Render(sampleTable())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{defaultSheetName}, f.GetSheetList())
	title, err := f.GetCellValue(defaultSheetName, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Jadwal X IPA 1", title)
	header, err := f.GetCellValue(defaultSheetName, "D2")
	require.NoError(t, err)
	assert.Equal(t, "Course", header)
	teacher, err := f.GetCellValue(defaultSheetName, "E3")
	require.NoError(t, err)
	assert.Equal(t, "Bu Ani", teacher)
}

func TestICSExporterRender(t *testing.T) {
	exporter := NewICSExporter()
	exporter.now = func() time.Time { return time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC) }
	start := time.Date(2024, 7, 15, 7, 0, 0, 0, time.UTC)

	out, err := exporter.Render(Calendar{
		Name: "X IPA 1",
		Events: []CalendarEvent{{
			UID:         "a-1@sma-timetable",
			Summary:     "Matematika",
			Description: "Bu Ani",
			Location:    "X IPA 1",
			Start:       start,
			End:         start.Add(90 * time.Minute),
		}},
	})
	require.NoError(t, err)

	cal, err := ics.ParseCalendar(bytes.NewReader(out))
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "Matematika", events[0].GetProperty(ics.ComponentPropertySummary).Value)
	assert.Equal(t, "FREQ=WEEKLY", events[0].GetProperty(ics.ComponentPropertyRrule).Value)
	assert.Equal(t, "20240715T070000Z", events[0].GetProperty(ics.ComponentPropertyDtStart).Value)
}

func TestICSExporterRejectsInvertedEvent(t *testing.T) {
	start := time.Date(2024, 7, 15, 7, 0, 0, 0, time.UTC)
	_, err := NewICSExporter().Render(Calendar{Events: []CalendarEvent{{UID: "x", Start: start, End: start}}})
	assert.Error(t, err)
}
