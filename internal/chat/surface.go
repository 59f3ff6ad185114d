package chat

import "github.com/helpchat/internal/model"

// Actor is the identity operating the engine for one dashboard session.
type Actor struct {
	ID   string
	Name string
	Role model.Role
}

// Surface captures how one dashboard role consumes the engine. The
// four dashboards collapse into one core plus these thin adapters.
type Surface struct {
	Name string

	// ListUnjoined lists conversations the actor is not a member of,
	// with a join affordance. Unprivileged surfaces only ever see
	// member conversations; membership that cannot be established
	// counts as absent either way.
	ListUnjoined bool
}

var (
	SurfaceClient     = Surface{Name: "client"}
	SurfaceAgent      = Surface{Name: "agent"}
	SurfaceAdmin      = Surface{Name: "admin", ListUnjoined: true}
	SurfaceSuperAdmin = Surface{Name: "superadmin", ListUnjoined: true}
)

// SurfaceByName resolves a configured surface name, defaulting to the
// strictest (client) policy for unknown names.
func SurfaceByName(name string) Surface {
	switch name {
	case "agent":
		return SurfaceAgent
	case "admin":
		return SurfaceAdmin
	case "superadmin", "super-admin":
		return SurfaceSuperAdmin
	default:
		return SurfaceClient
	}
}
