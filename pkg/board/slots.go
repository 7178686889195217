package board

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/arnavshah/ionm-board/pkg/models"
)

// SlotCount is the fixed number of slots on the board
const SlotCount = 22

const (
	numberedSlots = 20
	ocIndex       = 20
	svIndex       = 21
)

var labels = func() [SlotCount]string {
	var l [SlotCount]string
	for i := 0; i < numberedSlots; i++ {
		l[i] = strconv.Itoa(i + 1)
	}
	l[ocIndex] = "OC"
	l[svIndex] = "SV"
	return l
}()

// Projection is the board derived from one snapshot of the staff collection
type Projection struct {
	Slots  [SlotCount]models.Slot `json:"slots"`
	Roster []models.StaffRecord   `json:"roster"`
	// Conflicts lists records that lost a slot to a later duplicate claim.
	Conflicts []Conflict `json:"conflicts,omitempty"`
}

// Conflict records a staff member displaced from a slot by a duplicate lateNumber
type Conflict struct {
	Label   string `json:"label"`
	StaffID string `json:"staffId"`
}

// Labels returns the slot labels in board order
func Labels() [SlotCount]string {
	return labels
}

// SlotIndex maps a late number to its slot index
func SlotIndex(lateNumber string) (int, bool) {
	switch lateNumber {
	case "OC":
		return ocIndex, true
	case "SV":
		return svIndex, true
	}
	n, err := strconv.Atoi(strings.TrimSpace(lateNumber))
	if err != nil || n < 1 || n > numberedSlots {
		return -1, false
	}
	return n - 1, true
}

// LabelIndex returns the index of a slot label
func LabelIndex(label string) (int, bool) {
	for i, l := range labels {
		if l == label {
			return i, true
		}
	}
	return -1, false
}

// LateNumberFor is the inverse of SlotIndex
func LateNumberFor(index int) (string, bool) {
	if index < 0 || index >= SlotCount {
		return "", false
	}
	return labels[index], true
}

// IsNumeric reports whether a duty is a room number rather than a task label
func IsNumeric(s string) bool {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil && !math.IsNaN(f)
}

// RoomFor returns the legacy room value mirrored from a duty
func RoomFor(duty string) string {
	if IsNumeric(duty) {
		return duty
	}
	return ""
}

// EmptySlots returns a board with every slot unassigned
func EmptySlots() [SlotCount]models.Slot {
	var slots [SlotCount]models.Slot
	for i, l := range labels {
		slots[i] = models.Slot{Label: l}
	}
	return slots
}

// Derive builds the slots and roster from the full staff collection.
// When several records claim the same slot the last one in collection
// order wins; the displaced records stay in the roster and are listed
// in Conflicts.
func Derive(staff []models.StaffRecord) Projection {
	p := Projection{Slots: EmptySlots()}
	placed := make(map[string]bool, len(staff))

	for _, s := range staff {
		idx, ok := SlotIndex(s.LateNumber)
		if !ok {
			continue
		}
		if prev := p.Slots[idx].AssignedStaffID; prev != "" && prev != s.ID {
			delete(placed, prev)
			p.Conflicts = append(p.Conflicts, Conflict{Label: labels[idx], StaffID: prev})
		}
		duty := s.Duty
		if duty == "" {
			duty = s.Room
		}
		p.Slots[idx] = models.Slot{
			Label:           labels[idx],
			AssignedStaffID: s.ID,
			AssignedName:    s.Name,
			Duty:            duty,
		}
		placed[s.ID] = true
	}

	p.Roster = make([]models.StaffRecord, 0, len(staff)-len(placed))
	for _, s := range staff {
		if !placed[s.ID] {
			p.Roster = append(p.Roster, s)
		}
	}
	sort.SliceStable(p.Roster, func(i, j int) bool {
		return p.Roster[i].Name < p.Roster[j].Name
	})
	return p
}

// Slot returns the slot with the given label
func (p Projection) Slot(label string) (models.Slot, bool) {
	idx, ok := LabelIndex(label)
	if !ok {
		return models.Slot{}, false
	}
	return p.Slots[idx], true
}
