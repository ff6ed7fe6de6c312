// Package validation holds the form rules checked before anything reaches the
// database. Every rule is pure: it returns nil when the input is acceptable and
// an *Error carrying a user-facing message otherwise.
package validation

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"escrim/models"

	"gorm.io/datatypes"
)

type Error struct {
	Field   string `json:"field"`
	Message string `json:"error"`
}

func (e *Error) Error() string { return e.Message }

func fail(field, msg string) *Error { return &Error{Field: field, Message: msg} }

const MinPasswordLen = 5

// GenerateIdentifier builds the login name: lower(first) + "." + lower(last).
func GenerateIdentifier(firstName, lastName string) string {
	return strings.ToLower(firstName) + "." + strings.ToLower(lastName)
}

func Password(password string) error {
	if strings.Contains(password, " ") {
		return fail("password", "Password must not contain spaces.")
	}
	if utf8.RuneCountInString(password) < MinPasswordLen {
		return fail("password", "Password must be at least 5 characters long.")
	}
	return nil
}

func Registration(firstName, lastName, password string, birthDate *time.Time, role models.Role, today time.Time) error {
	if strings.TrimSpace(firstName) == "" || strings.TrimSpace(lastName) == "" {
		return fail("name", "First name and last name are required.")
	}
	if birthDate == nil || birthDate.IsZero() {
		return fail("birthDate", "Birth date is required.")
	}
	if dateAfter(*birthDate, today) {
		return fail("birthDate", "Birth date cannot be in the future.")
	}
	if err := Password(password); err != nil {
		return err
	}
	if !role.Valid() {
		return fail("role", "Unknown role.")
	}
	return nil
}

func PasswordChange(identifier string, birthDate *time.Time, password string) error {
	if strings.TrimSpace(identifier) == "" {
		return fail("identifier", "Identifier is required.")
	}
	if birthDate == nil || birthDate.IsZero() {
		return fail("birthDate", "Birth date is required.")
	}
	return Password(password)
}

func Login(identifier, password string) error {
	if strings.TrimSpace(identifier) == "" {
		return fail("identifier", "Identifier is required.")
	}
	if password == "" {
		return fail("password", "Password is required.")
	}
	return nil
}

// IncidentCounts 是 IncidentInput 解析出的两个计数
type IncidentCounts struct {
	Total     int
	Remaining int
}

func IncidentInput(location, totalStr, remainingStr string, date *time.Time, today time.Time) (IncidentCounts, error) {
	if date == nil || date.IsZero() {
		return IncidentCounts{}, fail("eventDate", "Incident date is required.")
	}
	if dateAfter(*date, today) {
		return IncidentCounts{}, fail("eventDate", "Incident date cannot be after today.")
	}
	if strings.TrimSpace(location) == "" {
		return IncidentCounts{}, fail("location", "Incident location is required.")
	}
	total, err1 := strconv.Atoi(strings.TrimSpace(totalStr))
	remaining, err2 := strconv.Atoi(strings.TrimSpace(remainingStr))
	if err1 != nil || err2 != nil {
		return IncidentCounts{}, fail("totalInjured", "Injured and to-treat counts must be positive integers.")
	}
	if total <= 0 || remaining <= 0 {
		return IncidentCounts{}, fail("totalInjured", "Injured and to-treat counts must be positive.")
	}
	if remaining > total {
		return IncidentCounts{}, fail("remainingToTreat", "The number to treat must be less than or equal to the total injured.")
	}
	return IncidentCounts{Total: total, Remaining: remaining}, nil
}

type Restock struct {
	Product     string
	DCI         string
	Dosage      string
	ExpiryDate  *time.Time
	Lot         string
	CrateNumber string
	Class       string
	CrateName   string
	Quantity    int
}

// MedicationRestock returns the parsed crate number when the form is valid.
func MedicationRestock(in Restock, today time.Time) (int, error) {
	if strings.TrimSpace(in.Product) == "" || strings.TrimSpace(in.Dosage) == "" || strings.TrimSpace(in.DCI) == "" {
		return 0, fail("product", "Product, active ingredient and dosage are required.")
	}
	if strings.TrimSpace(in.Lot) == "" {
		return 0, fail("lot", "Lot number is required.")
	}
	if in.ExpiryDate == nil || in.ExpiryDate.IsZero() {
		return 0, fail("expiryDate", "Expiry date is required.")
	}
	if dateBefore(*in.ExpiryDate, today) {
		return 0, fail("expiryDate", "Expiry date cannot be before today.")
	}
	crate, err := strconv.Atoi(strings.TrimSpace(in.CrateNumber))
	if err != nil {
		return 0, fail("crateNumber", "Crate number must be a valid number.")
	}
	if crate <= 0 {
		return 0, fail("crateNumber", "Crate number must be a positive integer.")
	}
	if strings.TrimSpace(in.Class) == "" {
		return 0, fail("class", "Product class is required.")
	}
	if strings.TrimSpace(in.CrateName) == "" {
		return 0, fail("crateName", "Crate name is required.")
	}
	if in.Quantity <= 0 {
		return 0, fail("quantity", "Quantity must be a positive integer.")
	}
	return crate, nil
}

func AircraftUpdate(target models.AircraftState, aircraftName string, current models.AircraftState, incident string) error {
	if err := AircraftRequest(target, aircraftName, incident); err != nil {
		return err
	}
	return AircraftStateChange(target, current)
}

// AircraftRequest 只检查请求字段，不需要飞机当前状态
func AircraftRequest(target models.AircraftState, aircraftName, incident string) error {
	if target == "" {
		return fail("state", "State must be selected.")
	}
	if !target.Valid() {
		return fail("state", "Unknown aircraft state.")
	}
	if strings.TrimSpace(aircraftName) == "" {
		return fail("aircraft", "Aircraft is required.")
	}
	if target == models.AircraftOccupied && strings.TrimSpace(incident) == "" {
		return fail("incident", "An incident is required.")
	}
	return nil
}

func AircraftStateChange(target, current models.AircraftState) error {
	if target == current {
		return fail("state", "Aircraft is already in this state.")
	}
	return nil
}

func Prescription(firstName, lastName, medication, incident string, quantity int) error {
	if strings.TrimSpace(firstName) == "" || strings.TrimSpace(lastName) == "" {
		return fail("name", "Patient first name and last name are required.")
	}
	if strings.TrimSpace(medication) == "" {
		return fail("medication", "Medication is required.")
	}
	if strings.TrimSpace(incident) == "" {
		return fail("incident", "An incident is required.")
	}
	if quantity <= 0 {
		return fail("quantity", "Quantity must be positive.")
	}
	return nil
}

// 只比较日历日期
func dateAfter(a, b time.Time) bool {
	return time.Time(models.NewDate(a)).After(time.Time(models.NewDate(b)))
}

func dateBefore(a, b time.Time) bool {
	return time.Time(models.NewDate(a)).Before(time.Time(models.NewDate(b)))
}

// Date 把可选日期转成存储用的日历日期
func Date(t *time.Time) datatypes.Date {
	if t == nil {
		return datatypes.Date{}
	}
	return models.NewDate(*t)
}
