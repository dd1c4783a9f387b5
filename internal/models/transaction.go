package models

import (
	"errors"
	"fmt"
	"strings"
)

// Field keys shared by the entry form, the JSON API and the websocket channel
const (
	FieldPurchaserName      = "purchaserName"
	FieldUnloaderName       = "unloaderName"
	FieldDate               = "date"
	FieldVillageName        = "villageName"
	FieldKisanName          = "kisanName"
	FieldVariety            = "variety"
	FieldVehicleNo          = "vehicleNo"
	FieldKisanBankName      = "kisanBankName"
	FieldBags               = "bags"
	FieldBharti             = "bharti"
	FieldKaataWeight        = "kaataWeight"
	FieldRate               = "rate"
	FieldHammali            = "hammali"
	FieldAdvancePayment     = "advancePayment"
	FieldAdvancePaymentMode = "advancePaymentMode"
	FieldAdvanceAmount      = "advanceAmount"
	FieldAmountOnHold       = "amountOnHold"
	FieldPurchaserRemark    = "purchaserRemark"
	FieldUnloaderRemark     = "unloaderRemark"
)

var ErrUnknownField = errors.New("unknown field")

// TransactionRecord is one purchase/unloading transaction as entered on the form.
// It lives only as long as the operator's session.
type TransactionRecord struct {
	PurchaserName      string `json:"purchaserName"`
	UnloaderName       string `json:"unloaderName"`
	Date               string `json:"date"` // DD/MM/YY by convention, never validated
	VillageName        string `json:"villageName"`
	KisanName          string `json:"kisanName"`
	Variety            string `json:"variety"`
	VehicleNo          string `json:"vehicleNo"`
	KisanBankName      string `json:"kisanBankName"`
	Bags               Number `json:"bags"`
	Bharti             Number `json:"bharti"`
	KaataWeight        Number `json:"kaataWeight"` // kg
	Rate               Number `json:"rate"`        // per quintal
	Hammali            Number `json:"hammali"`     // per quintal
	AdvancePayment     bool   `json:"advancePayment"`
	AdvancePaymentMode string `json:"advancePaymentMode"`
	AdvanceAmount      Number `json:"advanceAmount"`
	AmountOnHold       Number `json:"amountOnHold"`
	PurchaserRemark    string `json:"purchaserRemark"`
	UnloaderRemark     string `json:"unloaderRemark"`
}

// FieldUpdate is a single edit coming from the form. Checked is used by boolean fields;
// when nil the boolean is read from Value.
type FieldUpdate struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Checked *bool  `json:"checked,omitempty"`
}

type fieldKind int

const (
	kindText fieldKind = iota
	kindNumber
	kindBool
)

type fieldSpec struct {
	kind fieldKind
	text func(r *TransactionRecord) *string
	num  func(r *TransactionRecord) *Number
	flag func(r *TransactionRecord) *bool
}

var fields = map[string]fieldSpec{
	FieldPurchaserName:      {kind: kindText, text: func(r *TransactionRecord) *string { return &r.PurchaserName }},
	FieldUnloaderName:       {kind: kindText, text: func(r *TransactionRecord) *string { return &r.UnloaderName }},
	FieldDate:               {kind: kindText, text: func(r *TransactionRecord) *string { return &r.Date }},
	FieldVillageName:        {kind: kindText, text: func(r *TransactionRecord) *string { return &r.VillageName }},
	FieldKisanName:          {kind: kindText, text: func(r *TransactionRecord) *string { return &r.KisanName }},
	FieldVariety:            {kind: kindText, text: func(r *TransactionRecord) *string { return &r.Variety }},
	FieldVehicleNo:          {kind: kindText, text: func(r *TransactionRecord) *string { return &r.VehicleNo }},
	FieldKisanBankName:      {kind: kindText, text: func(r *TransactionRecord) *string { return &r.KisanBankName }},
	FieldAdvancePaymentMode: {kind: kindText, text: func(r *TransactionRecord) *string { return &r.AdvancePaymentMode }},
	FieldPurchaserRemark:    {kind: kindText, text: func(r *TransactionRecord) *string { return &r.PurchaserRemark }},
	FieldUnloaderRemark:     {kind: kindText, text: func(r *TransactionRecord) *string { return &r.UnloaderRemark }},
	FieldBags:               {kind: kindNumber, num: func(r *TransactionRecord) *Number { return &r.Bags }},
	FieldBharti:             {kind: kindNumber, num: func(r *TransactionRecord) *Number { return &r.Bharti }},
	FieldKaataWeight:        {kind: kindNumber, num: func(r *TransactionRecord) *Number { return &r.KaataWeight }},
	FieldRate:               {kind: kindNumber, num: func(r *TransactionRecord) *Number { return &r.Rate }},
	FieldHammali:            {kind: kindNumber, num: func(r *TransactionRecord) *Number { return &r.Hammali }},
	FieldAdvanceAmount:      {kind: kindNumber, num: func(r *TransactionRecord) *Number { return &r.AdvanceAmount }},
	FieldAmountOnHold:       {kind: kindNumber, num: func(r *TransactionRecord) *Number { return &r.AmountOnHold }},
	FieldAdvancePayment:     {kind: kindBool, flag: func(r *TransactionRecord) *bool { return &r.AdvancePayment }},
}

// IsKnownField reports whether key names a TransactionRecord field
func IsKnownField(key string) bool {
	_, ok := fields[key]
	return ok
}

// ApplyUpdate returns a copy of rec with one field changed. rec itself is not modified.
func ApplyUpdate(rec TransactionRecord, upd FieldUpdate) (TransactionRecord, error) {
	spec, ok := fields[upd.Field]
	if !ok {
		return rec, fmt.Errorf("%w: %q", ErrUnknownField, upd.Field)
	}

	next := rec
	switch spec.kind {
	case kindText:
		*spec.text(&next) = upd.Value
	case kindNumber:
		*spec.num(&next) = ParseNumber(upd.Value)
	case kindBool:
		if upd.Checked != nil {
			*spec.flag(&next) = *upd.Checked
		} else {
			*spec.flag(&next) = parseFlag(upd.Value)
		}
	}
	return next, nil
}

// ApplyUpdates folds updates over rec, stopping at the first unknown field
func ApplyUpdates(rec TransactionRecord, updates []FieldUpdate) (TransactionRecord, error) {
	for _, u := range updates {
		var err error
		rec, err = ApplyUpdate(rec, u)
		if err != nil {
			return rec, err
		}
	}
	return rec, nil
}

// RecordFromValues builds a record from form values (url.Values or similar).
// Keys that are not record fields are ignored.
func RecordFromValues(values map[string][]string) TransactionRecord {
	var rec TransactionRecord
	for key, vals := range values {
		if !IsKnownField(key) || len(vals) == 0 {
			continue
		}
		rec, _ = ApplyUpdate(rec, FieldUpdate{Field: key, Value: vals[0]})
	}
	return rec
}

func parseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
