package models

import (
	"fmt"
	"strings"
)

// DescriptorSep 下拉框里药品/事件的拼接分隔符，前端原样回传
const DescriptorSep = " ; "

type DescriptorError struct {
	Kind  string
	Value string
	Msg   string
}

func (e *DescriptorError) Error() string {
	return fmt.Sprintf("invalid %s descriptor %q: %s", e.Kind, e.Value, e.Msg)
}

// MedicationDescriptor 格式：product ; dosage ; YYYY-MM-DD
func MedicationDescriptor(k MedicationKey) string {
	return strings.Join([]string{k.Product, k.Dosage, FormatDate(k.ExpiryDate)}, DescriptorSep)
}

func ParseMedicationDescriptor(s string) (MedicationKey, error) {
	parts := strings.Split(s, DescriptorSep)
	if len(parts) != 3 {
		return MedicationKey{}, &DescriptorError{Kind: "medication", Value: s, Msg: "expected product ; dosage ; expiry"}
	}
	product, dosage := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if product == "" || dosage == "" {
		return MedicationKey{}, &DescriptorError{Kind: "medication", Value: s, Msg: "empty product or dosage"}
	}
	expiry, err := ParseDate(strings.TrimSpace(parts[2]))
	if err != nil {
		return MedicationKey{}, &DescriptorError{Kind: "medication", Value: s, Msg: "bad expiry date"}
	}
	return MedicationKey{Product: product, Dosage: dosage, ExpiryDate: expiry}, nil
}

// IncidentDescriptor 格式：location ; YYYY-MM-DD
func IncidentDescriptor(r IncidentRef) string {
	return r.Location + DescriptorSep + FormatDate(r.EventDate)
}

func ParseIncidentDescriptor(s string) (IncidentRef, error) {
	parts := strings.Split(s, DescriptorSep)
	if len(parts) != 2 {
		return IncidentRef{}, &DescriptorError{Kind: "incident", Value: s, Msg: "expected location ; date"}
	}
	loc := strings.TrimSpace(parts[0])
	if loc == "" {
		return IncidentRef{}, &DescriptorError{Kind: "incident", Value: s, Msg: "empty location"}
	}
	d, err := ParseDate(strings.TrimSpace(parts[1]))
	if err != nil {
		return IncidentRef{}, &DescriptorError{Kind: "incident", Value: s, Msg: "bad event date"}
	}
	return IncidentRef{Location: loc, EventDate: d}, nil
}
