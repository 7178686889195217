package models

import (
	"encoding/json"
	"time"
)

// UnassignedLateNumber marks a staff member who sits in the roster
const UnassignedLateNumber = "999"

// Column names used in partial updates
const (
	FieldLateNumber  = "late_number"
	FieldDuty        = "duty"
	FieldRoom        = "room"
	FieldName        = "name"
	FieldStatus      = "status"
	FieldCaseNumber  = "case_number"
	FieldCaseType    = "case_type"
	FieldBeginTime   = "begin_time"
	FieldDoneTime    = "done_time"
	FieldHelpNeeded  = "help_needed"
	FieldLunchStatus = "lunch_status"
	FieldLunchCover  = "lunch_cover"
	FieldBreakStatus = "break_status"
	FieldBreakCover  = "break_cover"
	FieldLateCover   = "late_cover"
)

// StaffRecord represents one row of the ionm_staff table
type StaffRecord struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"not null;index" json:"name"`
	PinHash     string    `gorm:"not null" json:"-"`
	Role        string    `gorm:"default:user" json:"role"`
	LateNumber  string    `gorm:"index;default:999" json:"lateNumber"`
	Duty        string    `json:"duty"`
	Room        string    `json:"room"`
	Status      string    `json:"status"`
	CaseNumber  string    `json:"caseNumber"`
	CaseType    string    `json:"caseType"`
	BeginTime   string    `json:"beginTime"`
	DoneTime    string    `json:"doneTime"`
	HelpNeeded  bool      `json:"helpNeeded"`
	LunchStatus string    `json:"lunchStatus"`
	LunchCover  string    `json:"lunchCover"`
	BreakStatus string    `json:"breakStatus"`
	BreakCover  string    `json:"breakCover"`
	LateCover   string    `json:"lateCover"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TableName keeps the table name stable across drivers
func (StaffRecord) TableName() string {
	return "ionm_staff"
}

// IsAdmin reports whether the record carries the admin role flag
func (r StaffRecord) IsAdmin() bool {
	return r.Role == RoleAdmin
}

// Roles
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Slot is one derived position on the assignment board
type Slot struct {
	Label           string `json:"label"`
	AssignedStaffID string `json:"assignedStaffId"`
	AssignedName    string `json:"assignedName"`
	Duty            string `json:"duty"`
}

// Occupied reports whether a staff member holds the slot
func (s Slot) Occupied() bool {
	return s.AssignedStaffID != ""
}

// SourceKind says where a drag gesture started
type SourceKind string

const (
	SourceRoster SourceKind = "roster"
	SourceSlot   SourceKind = "slot"
)

// DropPayload carries a drag-and-drop move from the gesture handler
type DropPayload struct {
	DraggedStaffID  string     `json:"draggedStaffId" binding:"required"`
	Source          SourceKind `json:"sourceKind" binding:"required"`
	DraggedDuty     string     `json:"draggedDuty"`
	TargetSlotLabel string     `json:"targetSlotLabel" binding:"required"`
}

// Fields is a partial update keyed by column name. In JSON the keys use
// the StaffRecord field names.
type Fields map[string]any

var jsonNames = map[string]string{
	FieldLateNumber:  "lateNumber",
	FieldDuty:        "duty",
	FieldRoom:        "room",
	FieldName:        "name",
	FieldStatus:      "status",
	FieldCaseNumber:  "caseNumber",
	FieldCaseType:    "caseType",
	FieldBeginTime:   "beginTime",
	FieldDoneTime:    "doneTime",
	FieldHelpNeeded:  "helpNeeded",
	FieldLunchStatus: "lunchStatus",
	FieldLunchCover:  "lunchCover",
	FieldBreakStatus: "breakStatus",
	FieldBreakCover:  "breakCover",
	FieldLateCover:   "lateCover",
}

var columnNames = func() map[string]string {
	m := make(map[string]string, len(jsonNames))
	for col, name := range jsonNames {
		m[name] = col
	}
	return m
}()

// MarshalJSON writes column names as StaffRecord JSON names
func (f Fields) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(f))
	for k, v := range f {
		if name, ok := jsonNames[k]; ok {
			k = name
		}
		out[k] = v
	}
	return json.Marshal(out)
}

// UnmarshalJSON maps StaffRecord JSON names back to column names
func (f *Fields) UnmarshalJSON(data []byte) error {
	var in map[string]any
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*f = make(Fields, len(in))
	for k, v := range in {
		if col, ok := columnNames[k]; ok {
			k = col
		}
		(*f)[k] = v
	}
	return nil
}

// Update is a partial update of a single staff record
type Update struct {
	StaffID string `json:"staffId"`
	Fields  Fields `json:"fields"`
}

// FilterOp is the comparison used by a bulk update filter
type FilterOp string

const (
	OpEq  FilterOp = "eq"
	OpNeq FilterOp = "neq"
)

// Filter selects the records a bulk update applies to
type Filter struct {
	Field string   `json:"field"`
	Op    FilterOp `json:"op"`
	Value string   `json:"value"`
}

// ChangeType is the kind of change observed on the staff collection
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// ChangeEvent is one notification on the staff change feed
type ChangeEvent struct {
	Type ChangeType   `json:"eventType"`
	New  *StaffRecord `json:"new,omitempty"`
	Old  *StaffRecord `json:"old,omitempty"`
}
