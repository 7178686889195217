package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arnavshah/ionm-board/pkg/models"
)

var (
	statusOptions     = []string{"case_called", "prep", "setup_done", "begin", "done", "tornoff"}
	caseTypes         = []string{"", "Crani", "Spine", "Ablation", "EEG"}
	lunchBreakOpts    = []string{"Request", "No", "Begin", "Done"}
	errAdminOnlyField = errors.New("field can only be changed by an admin")
)

// noCover is written to the cover field when lunch or break is declined
const noCover = "--"

// StaffPatch is a partial edit of the scheduling fields of one staff member
type StaffPatch struct {
	Name        *string `json:"name"`
	LateNumber  *string `json:"lateNumber"`
	LateCover   *string `json:"lateCover"`
	Room        *string `json:"room"`
	CaseNumber  *string `json:"caseNumber"`
	CaseType    *string `json:"caseType"`
	BeginTime   *string `json:"beginTime"`
	DoneTime    *string `json:"doneTime"`
	Status      *string `json:"status"`
	HelpNeeded  *bool   `json:"helpNeeded"`
	LunchStatus *string `json:"lunchStatus"`
	LunchCover  *string `json:"lunchCover"`
	BreakStatus *string `json:"breakStatus"`
	BreakCover  *string `json:"breakCover"`
}

// Fields converts the patch into store columns. Setting the status to
// begin or done stamps the matching time, and declining lunch or break
// clears its cover.
func (p StaffPatch) Fields(now time.Time, admin bool) (models.Fields, error) {
	f := models.Fields{}

	if p.Name != nil || p.LateNumber != nil || p.LateCover != nil {
		if !admin {
			return nil, errAdminOnlyField
		}
		if p.Name != nil {
			if *p.Name == "" {
				return nil, fmt.Errorf("name cannot be empty")
			}
			f[models.FieldName] = *p.Name
		}
		setString(f, models.FieldLateNumber, p.LateNumber)
		setString(f, models.FieldLateCover, p.LateCover)
	}

	setString(f, models.FieldRoom, p.Room)
	setString(f, models.FieldCaseNumber, p.CaseNumber)
	setString(f, models.FieldBeginTime, p.BeginTime)
	setString(f, models.FieldDoneTime, p.DoneTime)

	if p.CaseType != nil {
		if !slices.Contains(caseTypes, *p.CaseType) {
			return nil, fmt.Errorf("unknown case type %q", *p.CaseType)
		}
		f[models.FieldCaseType] = *p.CaseType
	}

	if p.Status != nil {
		if !slices.Contains(statusOptions, *p.Status) {
			return nil, fmt.Errorf("unknown status %q", *p.Status)
		}
		f[models.FieldStatus] = *p.Status
		switch *p.Status {
		case "begin":
			f[models.FieldBeginTime] = now.Format("15:04")
		case "done":
			f[models.FieldDoneTime] = now.Format("15:04")
		}
	}

	if p.HelpNeeded != nil {
		f[models.FieldHelpNeeded] = *p.HelpNeeded
	}

	if err := lunchBreak(f, models.FieldLunchStatus, models.FieldLunchCover, p.LunchStatus, p.LunchCover); err != nil {
		return nil, err
	}
	if err := lunchBreak(f, models.FieldBreakStatus, models.FieldBreakCover, p.BreakStatus, p.BreakCover); err != nil {
		return nil, err
	}

	if len(f) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}
	return f, nil
}

func setString(f models.Fields, key string, v *string) {
	if v != nil {
		f[key] = *v
	}
}

func lunchBreak(f models.Fields, statusKey, coverKey string, status, cover *string) error {
	setString(f, coverKey, cover)
	if status == nil {
		return nil
	}
	if !slices.Contains(lunchBreakOpts, *status) {
		return fmt.Errorf("unknown %s %q", statusKey, *status)
	}
	f[statusKey] = *status
	if *status == "No" {
		f[coverKey] = noCover
	}
	return nil
}

// ListStaff returns the full staff collection
func (h *Handler) ListStaff(c *gin.Context) {
	staff, err := h.Board.Staff(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"staff": staff})
}

// UpdateSelf applies a patch to the signed-in staff member
func (h *Handler) UpdateSelf(c *gin.Context) {
	claims := currentClaims(c)
	h.patchStaff(c, claims.StaffID, claims.IsAdmin())
}

// UpdateStaff applies a patch to any staff member
func (h *Handler) UpdateStaff(c *gin.Context) {
	h.patchStaff(c, c.Param("id"), true)
}

func (h *Handler) patchStaff(c *gin.Context, id string, admin bool) {
	var p StaffPatch
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fields, err := p.Fields(time.Now(), admin)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errAdminOnlyField) {
			status = http.StatusForbidden
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if err := h.Store.Update(ctx, id, fields); err != nil {
		h.writeError(c, err)
		return
	}
	rec, err := h.Store.Get(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"staff": rec})
}
