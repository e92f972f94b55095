package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/pliu/roomlet/internal/export"
	"github.com/pliu/roomlet/internal/models"
)

func TestApplications(t *testing.T) {
	api := newTestAPI(t)
	owner := api.register("a@x.com", "Alice", "secret1")
	other := api.register("b@x.com", "Bob", "secret2")
	room := api.createRoom(owner.Token, "Bedroom 1", 500)
	appsPath := fmt.Sprintf("/rooms/%d/applications", room.ID)

	rr := api.do(http.MethodPost, appsPath, "", applicationBody())
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[models.Application](t, rr)
	assert.Equal(t, room.ID, created.RoomID)

	bad := applicationBody()
	bad.Age = 17
	rr = api.do(http.MethodPost, appsPath, "", bad)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do(http.MethodPost, "/rooms/9999/applications", "", applicationBody())
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = api.do(http.MethodGet, appsPath, owner.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	apps := decode[[]models.Application](t, rr)
	require.Len(t, apps, 1)
	assert.Equal(t, "Carol Applicant", apps[0].FullName)

	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, appsPath, other.Token, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, appsPath, "", nil).Code)
}

func TestExportApplications(t *testing.T) {
	api := newTestAPI(t)
	owner := api.register("a@x.com", "Alice", "secret1")
	other := api.register("b@x.com", "Bob", "secret2")
	room := api.createRoom(owner.Token, "Bedroom 1", 500)
	appsPath := fmt.Sprintf("/rooms/%d/applications", room.ID)

	rr := api.do(http.MethodPost, appsPath, "", applicationBody())
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = api.do(http.MethodGet, appsPath+"/export", owner.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, xlsxContentType, rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), fmt.Sprintf("room-%d-applications.xlsx", room.ID))

	f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rr = api.do(http.MethodGet, appsPath+"/export", other.Token, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}
