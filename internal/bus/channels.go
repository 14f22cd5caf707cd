package bus

// Role names one side of a room.
type Role string

const (
	RolePlayer   Role = "player"
	RoleCreative Role = "creative"
)

func (r Role) Peer() Role {
	if r == RolePlayer {
		return RoleCreative
	}
	return RolePlayer
}

func (r Role) Valid() bool {
	return r == RolePlayer || r == RoleCreative
}

// InboxChannel carries traffic addressed to role in room.
func InboxChannel(room string, role Role) string {
	return "room:" + room + ":" + string(role)
}

// ClaimKey marks that role in room is taken.
func ClaimKey(room string, role Role) string {
	return "room:" + room + ":" + string(role) + ":claim"
}
