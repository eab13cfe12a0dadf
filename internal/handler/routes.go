package handler

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the ops endpoints at the root and the timetable API under prefix.
func RegisterRoutes(r gin.IRouter, prefix string, timetable *ScheduleGeneratorHandler, ops *MetricsHandler) {
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)

	api := r.Group(prefix)
	group := api.Group("/timetable")
	group.POST("/slots/preview", timetable.PreviewSlots)
	group.POST("/regenerate", timetable.Regenerate)
	group.POST("/regenerate/jobs", timetable.EnqueueRegeneration)
	group.GET("/regenerate/jobs/:id", timetable.RegenerationJob)
	group.GET("/classes/:classId", timetable.ClassTimetable)
	group.DELETE("/classes/:classId", timetable.DeleteClassTimetable)
	group.GET("/classes/:classId/export", timetable.ExportClassTimetable)
}
