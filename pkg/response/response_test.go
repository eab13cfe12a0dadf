package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

func testContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func TestErrorUsesTypedStatus(t *testing.T) {
	c, w := testContext()
	Error(c, appErrors.Clone(appErrors.ErrConfig, "sessionDurationMinutes must be positive"))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "CONFIG_ERROR", body.Error.Code)
	assert.Equal(t, "sessionDurationMinutes must be positive", body.Error.Message)
	assert.Len(t, c.Errors, 1)
}

func TestErrorFallsBackToInternal(t *testing.T) {
	c, w := testContext()
	Error(c, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAcceptedAndFile(t *testing.T) {
	c, w := testContext()
	Accepted(c, map[string]string{"id": "job-1"}, "/api/v1/timetable/regenerate/jobs/job-1")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "/api/v1/timetable/regenerate/jobs/job-1", w.Header().Get("Location"))

	c, w = testContext()
	File(c, "text/csv", "x-1.csv", []byte("a,b\n"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="x-1.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "a,b\n", w.Body.String())
}
