package report

func categorySet(categories ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		set[c] = struct{}{}
	}
	return set
}

// Display categories eligible for proactive reporting, per integration.
var (
	alexaCategories = categorySet(
		"LIGHT",
		"SMARTPLUG",
		"SMARTLOCK",
		"THERMOSTAT",
		"SWITCH",
		"CONTACT_SENSOR",
		"MOTION_SENSOR",
		"TEMPERATURE_SENSOR",
	)

	googleCategories = categorySet(
		"LIGHT",
		"SMARTPLUG",
		"SMARTLOCK",
		"THERMOSTAT",
		"SWITCH",
	)
)
