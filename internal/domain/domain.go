package domain

// Visibility controls who can see a plan.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityShared  Visibility = "shared"
	VisibilityPublic  Visibility = "public"
)

// ParseVisibility reports whether s is a known visibility value.
func ParseVisibility(s string) (Visibility, bool) {
	switch Visibility(s) {
	case VisibilityPrivate, VisibilityShared, VisibilityPublic:
		return Visibility(s), true
	}
	return "", false
}

// AccessLevel is the resolved permission tier for a user against a plan.
type AccessLevel string

const (
	AccessOwner  AccessLevel = "owner"
	AccessMember AccessLevel = "member"
	AccessPublic AccessLevel = "public"
	AccessNone   AccessLevel = "none"
)

type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Plan struct {
	ID         int64      `json:"id"`
	OwnerID    int64      `json:"owner_id"`
	Title      string     `json:"title"`
	Region     string     `json:"region,omitempty"`
	StartDate  string     `json:"start_date" format:"date"`
	EndDate    string     `json:"end_date" format:"date"`
	Visibility Visibility `json:"visibility" enum:"private,shared,public"`
	ShareToken string     `json:"share_token,omitempty"`
	CreatedAt  string     `json:"created_at" format:"date-time"`
	UpdatedAt  string     `json:"updated_at" format:"date-time"`
}

type Schedule struct {
	ID        int64    `json:"id"`
	PlanID    int64    `json:"plan_id"`
	Date      string   `json:"date" format:"date"`
	Time      string   `json:"time,omitempty"`
	Title     string   `json:"title"`
	Place     string   `json:"place,omitempty"`
	PlaceEn   string   `json:"place_en,omitempty"`
	Memo      string   `json:"memo,omitempty"`
	PlanB     string   `json:"plan_b,omitempty"`
	PlanC     string   `json:"plan_c,omitempty"`
	Lat       *float64 `json:"lat,omitempty"`
	Lon       *float64 `json:"lon,omitempty"`
	CreatedAt string   `json:"created_at" format:"date-time"`
}

type Memo struct {
	ID        int64  `json:"id"`
	PlanID    int64  `json:"plan_id"`
	Category  string `json:"category"`
	Title     string `json:"title"`
	Content   string `json:"content,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Member struct {
	PlanID    int64  `json:"plan_id"`
	UserID    int64  `json:"user_id"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Moment struct {
	ID         int64  `json:"id"`
	ScheduleID int64  `json:"schedule_id"`
	PlanID     int64  `json:"plan_id"`
	UserID     int64  `json:"user_id"`
	Photo      string `json:"photo,omitempty"`
	Note       string `json:"note,omitempty"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	PlanID     int64  `json:"plan_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	UserID     int64  `json:"user_id"`
	Payload    string `json:"payload_json"`
}
