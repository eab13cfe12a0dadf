package handler

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

func pathParam(c *gin.Context, name string) (string, error) {
	value := strings.TrimSpace(c.Param(name))
	if value == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s is required", name))
	}
	return value, nil
}
