package repository

import "time"

// Department is an organizational unit with its own progress-state catalog.
type Department struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// StateDefinition is one entry in the progress-state catalog of a department.
type StateDefinition struct {
	ID           int64  `json:"id"`
	DepartmentID int64  `json:"department_id"`
	Name         string `json:"name"`
	OrderRank    int    `json:"order_rank"`
}

// OrderStatus is one entry in the overall order-status catalog.
type OrderStatus struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Rank int    `json:"rank"`
}

// ProgressState is one element of an order's embedded progress-state
// collection. The JSON field names are the stored wire format and must not
// change: existing orders carry this exact shape in their progress_states
// column.
type ProgressState struct {
	DepartmentID int64      `json:"department_id"`
	StateID      int64      `json:"state_id"`
	Name         string     `json:"name"`
	OrderRank    int        `json:"order_rank"`
	StartDate    *time.Time `json:"start_date"`
	EndDate      *time.Time `json:"end_date"`
	IsActive     bool       `json:"is_active"`
}

// Order is a manufacturing work order with its embedded per-department
// progress states. Version guards the read-modify-write of ProgressStates.
type Order struct {
	ID              int64           `json:"id"`
	Number          string          `json:"number"`
	MachineType     string          `json:"machine_type"`
	Description     *string         `json:"description"`
	DeliveryDate    *time.Time      `json:"delivery_date"`
	Client          *string         `json:"client"`
	OverallStatusID *int64          `json:"overall_status_id"`
	ProgressStates  []ProgressState `json:"progress_states"`
	Version         int64           `json:"version"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// RuleKind discriminates the recipient-rule variants.
type RuleKind string

const (
	RuleByUser       RuleKind = "user"
	RuleByDepartment RuleKind = "department"
	RuleByRole       RuleKind = "role"
)

// RecipientRule assigns notification recipients for a category. Exactly one
// of UserID, DepartmentID, Role is set depending on Kind; OrderID scopes the
// rule to a single order when non-nil.
type RecipientRule struct {
	ID           int64     `json:"id"`
	Category     string    `json:"category"`
	Kind         RuleKind  `json:"kind"`
	UserID       *int64    `json:"user_id,omitempty"`
	DepartmentID *int64    `json:"department_id,omitempty"`
	Role         *string   `json:"role,omitempty"`
	OrderID      *int64    `json:"order_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Preference is a user's channel choice for one notification category.
// Absence of a row means the category defaults apply.
type Preference struct {
	UserID   int64  `json:"user_id"`
	Category string `json:"category"`
	ViaPush  bool   `json:"via_push"`
	ViaEmail bool   `json:"via_email"`
}

// Notification is one immutable inbox record; only IsRead is ever mutated.
type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Category  string    `json:"category"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// User is a directory entry. DepartmentID comes from the user's assigned
// resource; DeviceToken and Email gate push/email delivery.
type User struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Email        *string `json:"email"`
	Role         string  `json:"role"`
	DepartmentID *int64  `json:"department_id"`
	DeviceToken  *string `json:"-"`
}
