package model

import "fmt"

// Literal column headers of the historical charging sessions dataset.
const (
	ColumnEnergy      = "Energy Consumed (kWh)"
	ColumnDuration    = "Charging Duration (hours)"
	ColumnRate        = "Charging Rate (kW)"
	ColumnChargerType = "Charger Type"
	ColumnTimeOfDay   = "Time of Day"
	ColumnUserType    = "User Type"
	ColumnTemperature = "Temperature (°C)"
	ColumnCost        = "Charging Cost (USD)"
)

// Known charger types.
const (
	ChargerLevel1 = "Level 1"
	ChargerLevel2 = "Level 2"
	ChargerDCFast = "DC Fast Charger"
)

// Known times of day.
const (
	TimeMorning   = "Morning"
	TimeAfternoon = "Afternoon"
	TimeEvening   = "Evening"
	TimeNight     = "Night"
)

// Known user types.
const (
	UserCommuter     = "Commuter"
	UserCasualDriver = "Casual Driver"
	UserLongDistance = "Long-Distance Traveler"
)

// ChargerTypes lists the charger types offered by the front-ends.
var ChargerTypes = []string{ChargerLevel1, ChargerLevel2, ChargerDCFast}

// TimesOfDay lists the times of day offered by the front-ends.
var TimesOfDay = []string{TimeMorning, TimeAfternoon, TimeEvening, TimeNight}

// UserTypes lists the user types offered by the front-ends.
var UserTypes = []string{UserCommuter, UserCasualDriver, UserLongDistance}

// Request holds the seven input attributes of a charging session.
// Categorical fields are free strings: values outside the known domains are
// accepted and encoded as unseen categories.
type Request struct {
	EnergyKWh     float64 `json:"energy_kwh"`
	DurationHours float64 `json:"duration_hours"`
	RateKW        float64 `json:"rate_kw"`
	ChargerType   string  `json:"charger_type"`
	TimeOfDay     string  `json:"time_of_day"`
	UserType      string  `json:"user_type"`
	TemperatureC  float64 `json:"temperature_c"`
}

// Session is a historical charging session with its observed cost.
type Session struct {
	Request
	CostUSD float64 `json:"cost_usd"`
}

// Categorical returns the categorical fields in encoding order.
func (r Request) Categorical() [3]string {
	return [3]string{r.ChargerType, r.TimeOfDay, r.UserType}
}

// Numeric returns the numeric fields in encoding order.
func (r Request) Numeric() [4]float64 {
	return [4]float64{r.EnergyKWh, r.DurationHours, r.RateKW, r.TemperatureC}
}

func (r Request) String() string {
	return fmt.Sprintf("%.2fkWh/%.2fh/%.2fkW %s %s %s %.1f°C",
		r.EnergyKWh, r.DurationHours, r.RateKW, r.ChargerType, r.TimeOfDay, r.UserType, r.TemperatureC)
}

// CategoricalColumns lists the categorical headers in encoding order.
var CategoricalColumns = []string{ColumnChargerType, ColumnTimeOfDay, ColumnUserType}

// NumericColumns lists the numeric headers in encoding order.
var NumericColumns = []string{ColumnEnergy, ColumnDuration, ColumnRate, ColumnTemperature}
