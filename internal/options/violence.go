package options

import "github.com/sells-group/conflict-dash/internal/model"

// Definition explains one violence type for the violence control.
type Definition struct {
	ViolenceType model.ViolenceType `json:"violence_type"`
	Text         string             `json:"text"`
}

// Definitions lists the UCDP violence categories in presentation order.
var Definitions = []Definition{
	{
		ViolenceType: model.ViolenceStateBased,
		Text: "State-based armed conflict involves a dispute over government or territory, " +
			"where armed force between at least one government and another party results in " +
			"at least 25 battle-related deaths in a year.",
	},
	{
		ViolenceType: model.ViolenceNonState,
		Text: "Non-state conflict is armed force between two organized groups, neither of " +
			"which is a state government, resulting in at least 25 battle-related deaths in a year.",
	},
	{
		ViolenceType: model.ViolenceOneSided,
		Text: "One-sided violence is the use of armed force by a government or organized group " +
			"against civilians, resulting in at least 25 deaths, excluding extrajudicial killings in custody.",
	},
}

// Define returns the definition of v and whether one exists.
func Define(v model.ViolenceType) (Definition, bool) {
	for _, d := range Definitions {
		if d.ViolenceType == v {
			return d, true
		}
	}
	return Definition{}, false
}
