package validation

import (
	"errors"
	"testing"
	"time"

	"escrim/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func field(t *testing.T, err error) string {
	t.Helper()
	var ve *Error
	require.True(t, errors.As(err, &ve), "expected *validation.Error, got %v", err)
	return ve.Field
}

func TestGenerateIdentifier(t *testing.T) {
	assert.Equal(t, "jean.dupont", GenerateIdentifier("Jean", "DUPONT"))
	assert.Equal(t, "élodie.martin", GenerateIdentifier("Élodie", "Martin"))
}

func TestRegistration(t *testing.T) {
	ok := Registration("Jean", "Dupont", "secret", day(1990, 1, 1), models.RoleMedic, today)
	assert.NoError(t, ok)

	tests := []struct {
		name  string
		err   error
		field string
	}{
		{"missing first", Registration("", "Dupont", "secret", day(1990, 1, 1), models.RoleMedic, today), "name"},
		{"missing date", Registration("Jean", "Dupont", "secret", nil, models.RoleMedic, today), "birthDate"},
		{"future date", Registration("Jean", "Dupont", "secret", day(2030, 1, 1), models.RoleMedic, today), "birthDate"},
		{"space in password", Registration("Jean", "Dupont", "sec ret", day(1990, 1, 1), models.RoleMedic, today), "password"},
		{"short password", Registration("Jean", "Dupont", "abcd", day(1990, 1, 1), models.RoleMedic, today), "password"},
		{"bad role", Registration("Jean", "Dupont", "secret", day(1990, 1, 1), models.Role("Pilot"), today), "role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.field, field(t, tt.err))
		})
	}
}

func TestPasswordChange(t *testing.T) {
	assert.NoError(t, PasswordChange("jean.dupont", day(1990, 1, 1), "abcde"))
	assert.Equal(t, "identifier", field(t, PasswordChange(" ", day(1990, 1, 1), "abcde")))
	assert.Equal(t, "birthDate", field(t, PasswordChange("jean.dupont", nil, "abcde")))
	assert.Equal(t, "password", field(t, PasswordChange("jean.dupont", day(1990, 1, 1), "abc")))
}

func TestPassword_CountsCharacters(t *testing.T) {
	// 4 个字符但 8 个字节
	assert.Equal(t, "password", field(t, Password("éééé")))
	assert.NoError(t, Password("ééééé"))
	assert.Equal(t, "password", field(t, Registration("Jean", "Dupont", "éééé", day(1990, 1, 1), models.RoleMedic, today)))
	assert.Equal(t, "password", field(t, PasswordChange("jean.dupont", day(1990, 1, 1), "éééé")))
}

func TestIncidentInput(t *testing.T) {
	c, err := IncidentInput("Paris", "12", "7", day(2024, 6, 15), today)
	require.NoError(t, err)
	assert.Equal(t, IncidentCounts{Total: 12, Remaining: 7}, c)

	_, err = IncidentInput("Paris", "12", "7", day(2024, 6, 16), today)
	assert.Equal(t, "eventDate", field(t, err))
	_, err = IncidentInput("", "12", "7", day(2024, 6, 1), today)
	assert.Equal(t, "location", field(t, err))
	_, err = IncidentInput("Paris", "twelve", "7", day(2024, 6, 1), today)
	assert.Equal(t, "totalInjured", field(t, err))
	_, err = IncidentInput("Paris", "0", "0", day(2024, 6, 1), today)
	assert.Equal(t, "totalInjured", field(t, err))
	_, err = IncidentInput("Paris", "3", "5", day(2024, 6, 1), today)
	assert.Equal(t, "remainingToTreat", field(t, err))
}

func TestMedicationRestock(t *testing.T) {
	in := Restock{
		Product: "Paracétamol", DCI: "paracetamol", Dosage: "500mg",
		ExpiryDate: day(2025, 1, 1), Lot: "L42", CrateNumber: "3",
		Class: "Analgesic", CrateName: "Pharma A", Quantity: 20,
	}
	crate, err := MedicationRestock(in, today)
	require.NoError(t, err)
	assert.Equal(t, 3, crate)

	expired := in
	expired.ExpiryDate = day(2024, 6, 14)
	_, err = MedicationRestock(expired, today)
	assert.Equal(t, "expiryDate", field(t, err))

	sameDay := in
	sameDay.ExpiryDate = day(2024, 6, 15)
	_, err = MedicationRestock(sameDay, today)
	assert.NoError(t, err)

	badCrate := in
	badCrate.CrateNumber = "-1"
	_, err = MedicationRestock(badCrate, today)
	assert.Equal(t, "crateNumber", field(t, err))

	noLot := in
	noLot.Lot = ""
	_, err = MedicationRestock(noLot, today)
	assert.Equal(t, "lot", field(t, err))

	zero := in
	zero.Quantity = 0
	_, err = MedicationRestock(zero, today)
	assert.Equal(t, "quantity", field(t, err))
}

func TestAircraftUpdate(t *testing.T) {
	assert.NoError(t, AircraftUpdate(models.AircraftOccupied, "A400M", models.AircraftAvailable, "Paris ; 2024-03-22"))
	assert.NoError(t, AircraftUpdate(models.AircraftAvailable, "A400M", models.AircraftOccupied, ""))

	assert.Equal(t, "state", field(t, AircraftUpdate("", "A400M", models.AircraftAvailable, "")))
	assert.Equal(t, "aircraft", field(t, AircraftUpdate(models.AircraftAvailable, "", models.AircraftOccupied, "")))
	assert.Equal(t, "incident", field(t, AircraftUpdate(models.AircraftOccupied, "A400M", models.AircraftAvailable, "")))
	assert.Equal(t, "state", field(t, AircraftUpdate(models.AircraftAvailable, "A400M", models.AircraftAvailable, "")))

	// 请求字段检查不依赖当前状态
	assert.NoError(t, AircraftRequest(models.AircraftAvailable, "A400M", ""))
	assert.Equal(t, "incident", field(t, AircraftRequest(models.AircraftOccupied, "A400M", " ")))
	assert.Equal(t, "state", field(t, AircraftStateChange(models.AircraftOccupied, models.AircraftOccupied)))
	assert.NoError(t, AircraftStateChange(models.AircraftOccupied, models.AircraftAvailable))
}

func TestPrescription(t *testing.T) {
	assert.NoError(t, Prescription("jean", "dupont", "Paracétamol ; 500mg ; 2025-01-01", "Paris ; 2024-03-22", 2))
	assert.Equal(t, "name", field(t, Prescription("", "dupont", "m", "i", 1)))
	assert.Equal(t, "medication", field(t, Prescription("jean", "dupont", "", "i", 1)))
	assert.Equal(t, "incident", field(t, Prescription("jean", "dupont", "m", "", 1)))
	assert.Equal(t, "quantity", field(t, Prescription("jean", "dupont", "m", "i", 0)))
}
