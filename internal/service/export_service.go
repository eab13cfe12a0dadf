package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
)

// Export formats.
const (
	ExportFormatCSV  = "csv"
	ExportFormatPDF  = "pdf"
	ExportFormatXLSX = "xlsx"
	ExportFormatICS  = "ics"
)

var exportContentTypes = map[string]string{
	ExportFormatCSV:  "text/csv; charset=utf-8",
	ExportFormatPDF:  "application/pdf",
	ExportFormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	ExportFormatICS:  "text/calendar; charset=utf-8",
}

type timetableReader interface {
	ListByClass(ctx context.Context, classID string) ([]models.ScheduleAssignment, error)
}

type tableRenderer interface {
	Render(table export.Table) ([]byte, error)
}

type calendarRenderer interface {
	Render(calendar export.Calendar) ([]byte, error)
}

// ExportFile is a rendered timetable ready to be streamed.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders persisted class timetables as downloadable files.
type ExportService struct {
	classes     schedulerClassReader
	courses     schedulerCourseReader
	teachers    schedulerTeacherReader
	assignments timetableReader
	tables      map[string]tableRenderer
	calendar    calendarRenderer
	location    *time.Location
	logger      *zap.Logger
	now         func() time.Time
}

// NewExportService wires exporters. An unknown timezone falls back to UTC.
func NewExportService(classes schedulerClassReader, courses schedulerCourseReader, teachers schedulerTeacherReader, assignments timetableReader, timezone string, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	location := time.UTC
	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			logger.Warn("unknown export timezone, using UTC", zap.String("timezone", timezone), zap.Error(err))
		} else {
			location = loc
		}
	}
	return &ExportService{
		classes:     classes,
		courses:     courses,
		teachers:    teachers,
		assignments: assignments,
		tables: map[string]tableRenderer{
			ExportFormatCSV:  export.NewCSVExporter(),
			ExportFormatPDF:  export.NewPDFExporter(),
			ExportFormatXLSX: export.NewXLSXExporter(),
		},
		calendar: export.NewICSExporter(),
		location: location,
		logger:   logger,
		now:      time.Now,
	}
}

// ExportClass renders the timetable of one class in the requested format (csv by default).
func (s *ExportService) ExportClass(ctx context.Context, classID string, query dto.ExportQuery) (*ExportFile, error) {
	format := strings.ToLower(strings.TrimSpace(query.Format))
	if format == "" {
		format = ExportFormatCSV
	}
	contentType, ok := exportContentTypes[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", query.Format))
	}

	classes, err := s.classes.ListByIDs(ctx, []string{classID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if len(classes) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	class := classes[0]

	items, err := s.assignments.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	sortAssignments(items)
	courses, err := s.courses.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}
	teachers, err := s.teachers.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teachers")
	}
	names := newTimetableNames(courses, teachers)

	var body []byte
	if format == ExportFormatICS {
		monday, err := s.weekStart(query.WeekOf)
		if err != nil {
			return nil, err
		}
		body, err = s.calendar.Render(buildCalendar(class, items, names, monday))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render calendar")
		}
	} else {
		body, err = s.tables[format].Render(buildTable(class, items, names))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable")
		}
	}

	s.logger.Debug("timetable exported", zap.String("class_id", classID), zap.String("format", format), zap.Int("bytes", len(body)))
	return &ExportFile{
		Filename:    fmt.Sprintf("timetable_%s.%s", sanitizeFilename(class.Name), format),
		ContentType: contentType,
		Body:        body,
	}, nil
}

// weekStart returns midnight of the Monday of the week containing weekOf (today when empty).
func (s *ExportService) weekStart(weekOf string) (time.Time, error) {
	day := s.now().In(s.location)
	if weekOf != "" {
		parsed, err := time.ParseInLocation("2006-01-02", weekOf, s.location)
		if err != nil {
			return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "weekOf must be YYYY-MM-DD")
		}
		day = parsed
	}
	offset := (int(day.Weekday()) + 6) % 7
	y, m, d := day.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.location), nil
}

type timetableNames struct {
	courses  map[string]models.Course
	teachers map[string]string
}

func newTimetableNames(courses []models.Course, teachers []models.Teacher) timetableNames {
	names := timetableNames{
		courses:  make(map[string]models.Course, len(courses)),
		teachers: make(map[string]string, len(teachers)),
	}
	for _, course := range courses {
		names.courses[course.ID] = course
	}
	for _, teacher := range teachers {
		names.teachers[teacher.ID] = teacher.Name
	}
	return names
}

func (n timetableNames) course(id string) (string, string) {
	if course, ok := n.courses[id]; ok {
		return course.Code, course.Name
	}
	return "", id
}

func (n timetableNames) teacher(id string) string {
	if name, ok := n.teachers[id]; ok {
		return name
	}
	return id
}

func buildTable(class models.ClassSection, items []models.ScheduleAssignment, names timetableNames) export.Table {
	table := export.Table{
		Title:   fmt.Sprintf("Timetable %s", class.Name),
		Headers: []string{"Day", "Slot", "Start", "End", "Code", "Course", "Teacher"},
		Rows:    make([][]string, 0, len(items)),
	}
	for _, item := range items {
		code, name := names.course(item.CourseID)
		table.Rows = append(table.Rows, []string{
			item.Day,
			slotLabel(item),
			item.StartTime.String(),
			item.EndTime.String(),
			code,
			name,
			names.teacher(item.TeacherID),
		})
	}
	return table
}

func buildCalendar(class models.ClassSection, items []models.ScheduleAssignment, names timetableNames, monday time.Time) export.Calendar {
	calendar := export.Calendar{
		Name:   fmt.Sprintf("Timetable %s", class.Name),
		Events: make([]export.CalendarEvent, 0, len(items)),
	}
	for _, item := range items {
		rank := dayRank(item.Day)
		if rank > 6 {
			continue
		}
		date := monday.AddDate(0, 0, rank)
		_, name := names.course(item.CourseID)
		calendar.Events = append(calendar.Events, export.CalendarEvent{
			UID:         fmt.Sprintf("%s@sma-timetable", item.ID),
			Summary:     fmt.Sprintf("%s (%s)", name, class.Name),
			Description: fmt.Sprintf("Teacher: %s", names.teacher(item.TeacherID)),
			Location:    class.Name,
			Start:       item.StartTime.On(date),
			End:         item.EndTime.On(date),
		})
	}
	return calendar
}

func slotLabel(item models.ScheduleAssignment) string {
	if item.DurationSlots <= 1 {
		return fmt.Sprintf("%d", item.StartSlotIndex)
	}
	return fmt.Sprintf("%d-%d", item.StartSlotIndex, item.EndSlotIndex()-1)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "class"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "\"", "")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
