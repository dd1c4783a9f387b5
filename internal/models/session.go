package models

import (
	"errors"
	"time"
)

// Mode is the screen the operator is on
type Mode string

const (
	ModeHome      Mode = "home"
	ModePurchaser Mode = "purchaser"
	ModeUnloader  Mode = "unloader"
)

var ErrInvalidTransition = errors.New("invalid mode transition")

// CanTransition reports whether the form may move from one mode to another.
// Intake modes are entered from home only and can only go back home.
func CanTransition(from, to Mode) bool {
	switch from {
	case ModeHome:
		return to == ModePurchaser || to == ModeUnloader
	case ModePurchaser, ModeUnloader:
		return to == ModeHome
	}
	return false
}

// ParseMode returns the Mode for s, or false if s is not a mode name
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeHome, ModePurchaser, ModeUnloader:
		return Mode(s), true
	}
	return "", false
}

// ReportVariant selects one of the three printable documents
type ReportVariant string

const (
	VariantOffice       ReportVariant = "office"
	VariantUnloaderCopy ReportVariant = "unloader_copy"
	VariantUnloaderSlip ReportVariant = "unloader_slip"
)

var ErrUnknownVariant = errors.New("unknown report variant")

// ParseVariant returns the ReportVariant for s
func ParseVariant(s string) (ReportVariant, error) {
	switch ReportVariant(s) {
	case VariantOffice, VariantUnloaderCopy, VariantUnloaderSlip:
		return ReportVariant(s), nil
	}
	return "", ErrUnknownVariant
}

// VariantsFor lists the reports offered in a mode
func VariantsFor(m Mode) []ReportVariant {
	switch m {
	case ModePurchaser:
		return []ReportVariant{VariantOffice, VariantUnloaderCopy}
	case ModeUnloader:
		return []ReportVariant{VariantUnloaderSlip}
	}
	return nil
}

// Offers reports whether variant v is available in mode m
func Offers(m Mode, v ReportVariant) bool {
	for _, candidate := range VariantsFor(m) {
		if candidate == v {
			return true
		}
	}
	return false
}

// FormSession is the in-memory state of one operator's form
type FormSession struct {
	ID        string            `json:"id"`
	Mode      Mode              `json:"mode"`
	Record    TransactionRecord `json:"record"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NavigateRequest is the body of PUT /api/sessions/{id}/mode
type NavigateRequest struct {
	Mode string `json:"mode"`
}

// UpdateFieldsRequest is the body of PATCH /api/sessions/{id}/fields
type UpdateFieldsRequest struct {
	Updates []FieldUpdate `json:"updates"`
}
