package domain

const (
	LeadStatusNew       = "new"
	LeadStatusInReview  = "in_review"
	LeadStatusApproved  = "approved"
	LeadStatusRejected  = "rejected"
	LeadStatusConverted = "converted"
)

const (
	InstanceStatusRunning   = "running"
	InstanceStatusCompleted = "completed"
	InstanceStatusCanceled  = "canceled"
)

const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusBlocked    = "blocked"
	TaskStatusDone       = "done"
	TaskStatusCanceled   = "canceled"
)

const (
	RoleAdmin  = "admin"
	RolePM     = "pm"
	RoleDev    = "dev"
	RoleQA     = "qa"
	RoleViewer = "viewer"
)

// DefaultLeadSource is stamped on leads created without a source.
const DefaultLeadSource = "internal_manual"

type Lead struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email,omitempty"`
	Phone           string `json:"phone,omitempty"`
	Company         string `json:"company,omitempty"`
	Message         string `json:"message,omitempty"`
	Service         string `json:"service,omitempty"`
	TechPreferences string `json:"techPreferences,omitempty"`
	EstimatedBudget string `json:"estimatedBudget,omitempty"`
	Source          string `json:"source"`
	SrsURL          string `json:"srsUrl,omitempty"`
	TargetPlatforms string `json:"targetPlatforms,omitempty"`
	Status          string `json:"status" enum:"new,in_review,approved,rejected,converted"`
	CreatedAt       string `json:"createdAt" format:"date-time"`
	UpdatedAt       string `json:"updatedAt" format:"date-time"`
}

type Project struct {
	ID          string  `json:"id"`
	LeadID      *string `json:"leadId,omitempty"`
	Name        string  `json:"name"`
	OwnerUserID *string `json:"ownerUserId,omitempty"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority" enum:"low,medium,high,urgent"`
	StartAt     *string `json:"startAt,omitempty" format:"date-time"`
	DueAt       *string `json:"dueAt,omitempty" format:"date-time"`
	CreatedAt   string  `json:"createdAt" format:"date-time"`
	UpdatedAt   string  `json:"updatedAt" format:"date-time"`
}

// Step is one unit of work in a process definition.
type Step struct {
	Key             string `json:"key"`
	Title           string `json:"title"`
	Lane            string `json:"lane"`
	IsManual        bool   `json:"isManual"`
	RecommendedRole string `json:"recommendedRole,omitempty"`
}

type ProcessDefinition struct {
	ID        string   `json:"id"`
	Key       string   `json:"key"`
	Version   int      `json:"version"`
	Name      string   `json:"name,omitempty"`
	IsActive  bool     `json:"isActive"`
	Lanes     []string `json:"lanes"`
	Steps     []Step   `json:"steps"`
	CreatedAt string   `json:"createdAt" format:"date-time"`
}

type ProcessInstance struct {
	ID                  string  `json:"id"`
	ProcessDefinitionID string  `json:"processDefinitionId"`
	ProjectID           string  `json:"projectId"`
	Status              string  `json:"status" enum:"running,completed,canceled"`
	CurrentStepKey      *string `json:"currentStepKey"`
	StartedAt           string  `json:"startedAt" format:"date-time"`
	EndedAt             *string `json:"endedAt,omitempty" format:"date-time"`
}

type Task struct {
	ID               string  `json:"id"`
	InstanceID       string  `json:"instanceId"`
	Key              string  `json:"key"`
	Title            string  `json:"title"`
	Status           string  `json:"status" enum:"todo,in_progress,blocked,done,canceled"`
	AssignedToUserID *string `json:"assignedToUserId,omitempty"`
	DueAt            *string `json:"dueAt,omitempty" format:"date-time"`
	CompletedAt      *string `json:"completedAt,omitempty" format:"date-time"`
	CreatedAt        string  `json:"createdAt" format:"date-time"`
	UpdatedAt        string  `json:"updatedAt" format:"date-time"`
}

type Event struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	LeadID      string `json:"leadId,omitempty"`
	ProjectID   string `json:"projectId,omitempty"`
	InstanceID  string `json:"instanceId,omitempty"`
	ActorUserID string `json:"actorUserId,omitempty"`
	Payload     string `json:"payloadJson"`
	CreatedAt   string `json:"createdAt" format:"date-time"`
}

type User struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role" enum:"admin,pm,dev,qa,viewer"`
	CreatedAt string `json:"createdAt" format:"date-time"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"-"`
	CreatedAt string `json:"createdAt" format:"date-time"`
}

// ProjectDetail bundles a project with its workflow state.
type ProjectDetail struct {
	Project  Project          `json:"project"`
	Instance *ProcessInstance `json:"instance,omitempty"`
	Tasks    []Task           `json:"tasks"`
}
