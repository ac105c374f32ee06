package patterns

// Mode is a canonical game mode and the label shown to players.
type Mode struct {
	Name    string
	Display string
}

// ModeTable maps raw gamerules values to canonical modes.
type ModeTable map[string]Mode

// DefaultModeTable returns the modes known to the current client build.
func DefaultModeTable() ModeTable {
	return ModeTable{
		"EA_TeamElimination":      {Name: "EA_TeamElimination", Display: "Team Elimination"},
		"EA_Elimination":          {Name: "EA_Elimination", Display: "Elimination"},
		"EA_FreeFlight":           {Name: "EA_FreeFlight", Display: "Free Flight"},
		"EA_SquadronBattle":       {Name: "EA_SquadronBattle", Display: "Squadron Battle"},
		"EA_VehicleKillConfirmed": {Name: "EA_VehicleKillConfirmed", Display: "Vehicle Kill Confirmed"},
		"EA_FPSKillConfirmed":     {Name: "EA_FPSKillConfirmed", Display: "FPS Kill Confirmed"},
		"EA_FPSGunGame":           {Name: "EA_FPSGunGame", Display: "Gun Rush"},
		"EA_Control":              {Name: "EA_Control", Display: "Control"},
		"EA_Duel":                 {Name: "EA_Duel", Display: "Duel"},
		"EA_StarFighter":          {Name: "EA_StarFighter", Display: "Star Fighter"},
		"EA_ExperimentalRaces":    {Name: "EA_ExperimentalRaces", Display: "Experimental Races"},
		"SC_Default":              {Name: "SC_Default", Display: "Persistent Universe"},
		"SC_Frontend":             {Name: "SC_Frontend", Display: "Main Menu"},
	}
}

// Lookup resolves a raw gamerules value.
func (t ModeTable) Lookup(raw string) (Mode, bool) {
	m, ok := t[raw]
	return m, ok
}

// Display returns the label for a canonical mode name, or the name itself
// when the table has no entry (including the pre-registration "Unknown").
func (t ModeTable) Display(name string) string {
	if m, ok := t[name]; ok {
		return m.Display
	}
	return name
}
