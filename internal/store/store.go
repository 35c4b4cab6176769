// Package store defines the narrow external-store interface the engine
// depends on (spec.md §6 "External store (database)"). This package only
// describes the contract; the SQLite-backed implementation lives in
// internal/store/sqlitestore.
package store

import "time"

// Line is one SIP account row (spec.md §3 "Line config").
type Line struct {
	ID          int
	Username    string
	Password    string
	ServerHost  string
	ServerPort  int
	DisplayName string
	Enabled     bool
	Status      string
}

// Store is the narrow interface spec.md §6 names: get_all_sip_lines,
// update_sip_line_status, get_or_create_caller, create_call, get_call,
// end_call.
type Store interface {
	GetAllSIPLines() ([]Line, error)
	UpdateSIPLineStatus(lineID int, status string) error
	GetOrCreateCaller(number string) (callerID int, err error)
	CreateCall(callID string, callerID, lineID int, number string) (numericID int, err error)
	GetCall(callID string) (numericID int, found bool, err error)
	EndCall(callID string, endedAt time.Time) error
}
