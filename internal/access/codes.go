package access

import (
	"fmt"
	"strings"
)

// Code identifies one authorizable operation.
type Code string

const (
	CanView              Code = "can_view"
	CanAdd               Code = "can_add"
	CanEditEntry         Code = "can_edit_entry"
	CanDeleteEntry       Code = "can_delete_entry"
	CanMoveEntry         Code = "can_move_entry"
	CanMarkCompleted     Code = "can_mark_completed"
	CanUnmarkCompleted   Code = "can_unmark_completed"
	CanMarkCancelled     Code = "can_mark_cancelled"
	CanUnmarkCancelled   Code = "can_unmark_cancelled"
	CanMarkPass          Code = "can_mark_pass"
	CanRevokePass        Code = "can_revoke_pass"
	CanMoveUI            Code = "can_move_ui"
	CanDeleteUI          Code = "can_delete_ui"
	CanEditEntryUI       Code = "can_edit_entry_ui"
	CanMarkCompletedUI   Code = "can_mark_completed_ui"
	CanUnmarkCompletedUI Code = "can_unmark_completed_ui"
	CanMarkCancelledUI   Code = "can_mark_cancelled_ui"
	CanUnmarkCancelledUI Code = "can_unmark_cancelled_ui"
	CanMarkPassUI        Code = "can_mark_pass_ui"
	CanRevokePassUI      Code = "can_revoke_pass_ui"
)

const uiSuffix = "_ui"

// catalog lists every known code with its description, in display order.
var catalog = []struct {
	Code        Code
	Description string
}{
	{CanView, "View the visit calendar"},
	{CanAdd, "Create visit entries"},
	{CanEditEntry, "Edit entry name and responsible person"},
	{CanDeleteEntry, "Delete entries"},
	{CanMoveEntry, "Reschedule entries"},
	{CanMarkCompleted, "Mark a visit as completed"},
	{CanUnmarkCompleted, "Clear the completed mark"},
	{CanMarkCancelled, "Mark a visit as cancelled"},
	{CanUnmarkCancelled, "Clear the cancelled mark"},
	{CanMarkPass, "Order an access pass"},
	{CanRevokePass, "Revoke an access pass"},
	{CanMoveUI, "Show the move control"},
	{CanDeleteUI, "Show the delete control"},
	{CanEditEntryUI, "Show the edit control"},
	{CanMarkCompletedUI, "Show the complete control"},
	{CanUnmarkCompletedUI, "Show the uncomplete control"},
	{CanMarkCancelledUI, "Show the cancel control"},
	{CanUnmarkCancelledUI, "Show the uncancel control"},
	{CanMarkPassUI, "Show the order pass control"},
	{CanRevokePassUI, "Show the revoke pass control"},
}

var known = func() map[Code]string {
	m := make(map[Code]string, len(catalog))
	for _, c := range catalog {
		m[c.Code] = c.Description
	}
	return m
}()

// All returns every code in the catalog.
func All() []Code {
	codes := make([]Code, len(catalog))
	for i, c := range catalog {
		codes[i] = c.Code
	}
	return codes
}

// Describe returns the catalog description of a code.
func Describe(c Code) string {
	return known[c]
}

// Valid reports whether c belongs to the catalog.
func (c Code) Valid() bool {
	_, ok := known[c]
	return ok
}

// IsUI reports whether c only toggles client controls. UI codes are the
// only ones ever exposed to display contexts.
func (c Code) IsUI() bool {
	return strings.HasSuffix(string(c), uiSuffix)
}

// ParseCode converts a raw string into a catalog code.
func ParseCode(raw string) (Code, error) {
	c := Code(strings.TrimSpace(raw))
	if !c.Valid() {
		return "", fmt.Errorf("unknown permission code %q", raw)
	}
	return c, nil
}

// ParseCodes converts raw strings into catalog codes, failing on the first unknown one.
func ParseCodes(raw []string) ([]Code, error) {
	codes := make([]Code, 0, len(raw))
	for _, r := range raw {
		c, err := ParseCode(r)
		if err != nil {
			return nil, err
		}
		codes = append(codes, c)
	}
	return codes, nil
}
