package roster

import "fmt"

// Role identifies a specialist agent. Using a closed enum keeps invalid role
// strings from surviving past construction.
type Role int

const (
	RoleDeveloper Role = iota
	RoleDesigner
	RoleTester
	RoleIntegrator
	RoleAnalyst
)

var roleNames = map[Role]string{
	RoleDeveloper:  "developer",
	RoleDesigner:   "designer",
	RoleTester:     "tester",
	RoleIntegrator: "integrator",
	RoleAnalyst:    "analyst",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// ParseRole converts a role name to a Role. Unknown names are an error.
func ParseRole(s string) (Role, error) {
	for r, name := range roleNames {
		if name == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown agent role: %q", s)
}

func (r Role) MarshalText() ([]byte, error) {
	name, ok := roleNames[r]
	if !ok {
		return nil, fmt.Errorf("invalid role value %d", int(r))
	}
	return []byte(name), nil
}

func (r *Role) UnmarshalText(data []byte) error {
	parsed, err := ParseRole(string(data))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
