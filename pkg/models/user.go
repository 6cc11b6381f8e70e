package models

// Role is the client-facing role derived from the backend role.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleRegulator  Role = "regulator"
	RoleOwner      Role = "owner"
	RoleIndividual Role = "individual"
)

// UserType groups roles into the audience a view is built for.
type UserType string

const (
	UserTypeIndividual UserType = "individual"
	UserTypeBusiness   UserType = "business"
	UserTypeGovernment UserType = "government"
)

// Credentials are exchanged for a token pair at POST /token/.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Tokens is the access/refresh pair issued by the backend.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// User is the payload of GET /users/me/ enriched with the derived Role and UserType.
type User struct {
	ID          int      `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	BackendRole string   `json:"role"`
	IsSuperuser bool     `json:"is_superuser"`
	Role        Role     `json:"-"`
	UserType    UserType `json:"-"`
}
