package loggen

import (
	"fmt"
	"time"
)

const tsLayout = "2006-01-02T15:04:05.000Z"

func stamp(t time.Time) string { return t.UTC().Format(tsLayout) }

// RegistrationLine is a character login line.
func RegistrationLine(t time.Time, geid int, name string) string {
	return fmt.Sprintf("<%s> [Notice] <AccountLoginCharacterStatus_Character> Character: createdAt 1 - updatedAt 1 - geid %d - accountId %d - name %s - state STATE_CURRENT [Team_GameServices][Login]",
		stamp(t), geid, geid+1, name)
}

// GameModeLine is a context establisher line naming the game rules.
func GameModeLine(t time.Time, gamerules string) string {
	return fmt.Sprintf(`<%s> [Notice] <Context Establisher Done> establisher="CReplicationModel" runningTime=1.5 map="megamap" gamerules="%s" sessionId="sim" [Team_Network][Network][Replication][Loading][Persistence]`,
		stamp(t), gamerules)
}

// Kill describes one actor death.
type Kill struct {
	Victim, Attacker     string
	VictimID, AttackerID int
	Zone, Weapon, Damage string
}

// KillLine is an actor death line.
func KillLine(t time.Time, k Kill) string {
	return fmt.Sprintf("<%s> [Notice] <Actor Death> CActor::Kill: '%s' [%d] in zone '%s' killed by '%s' [%d] using '%s' [Class %s] with damage type '%s' from direction x: 0.12, y: -0.5, z: 0.01 [Team_ActorTech][Actor]",
		stamp(t), k.Victim, k.VictimID, k.Zone, k.Attacker, k.AttackerID, k.Weapon, k.Weapon, k.Damage)
}

// NoiseLine is an unrelated line the matcher must ignore.
func NoiseLine(t time.Time) string {
	return fmt.Sprintf("<%s> [Notice] <Vehicle Control Flow> CVehicleMovementBase::SetDriver: Local client node [0] requesting control token [Team_VehicleFeatures]", stamp(t))
}
