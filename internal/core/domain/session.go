package domain

// SessionUserKey is the session entry holding the JSON-encoded user.
const SessionUserKey = "user"

type User struct {
	Type   string `json:"type"`
	Email  string `json:"email"`
	Status string `json:"status,omitempty"`
}

type Route string

const (
	RouteLogin   Route = "/"
	RouteBills   Route = "#employee/bills"
	RouteNewBill Route = "#employee/bill/new"
)
