package amm

// AuthGate answers the two capability questions the engines ask. Role
// assignment and revocation live outside the settlement core; the engines
// depend only on this interface.
type AuthGate interface {
	IsAdministrator(addr [20]byte) bool
	IsAuthorizedRelay(addr [20]byte) bool
}

// StaticGate is an AuthGate with a fixed administrator and relay, configured
// at construction.
type StaticGate struct {
	admin [20]byte
	relay [20]byte
}

// NewStaticGate builds a gate recognising exactly one administrator and one
// relay address.
func NewStaticGate(admin, relay [20]byte) *StaticGate {
	return &StaticGate{admin: admin, relay: relay}
}

func (g *StaticGate) IsAdministrator(addr [20]byte) bool {
	return g != nil && addr == g.admin
}

func (g *StaticGate) IsAuthorizedRelay(addr [20]byte) bool {
	return g != nil && addr == g.relay
}
