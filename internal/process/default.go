package process

import "opsportal/internal/domain"

const (
	DefaultKey     = "standard_delivery"
	DefaultVersion = 1
)

// DefaultDocument is the delivery workflow installed when no definition is active.
func DefaultDocument() Document {
	step := func(key, title, lane, role string) domain.Step {
		return domain.Step{Key: key, Title: title, Lane: lane, IsManual: true, RecommendedRole: role}
	}
	return Document{
		Key:     DefaultKey,
		Name:    "Standard Delivery",
		Version: DefaultVersion,
		Lanes:   []string{"client", "pm", "admin", "dev", "qa"},
		Steps: []domain.Step{
			step("client_request", "Client Request", "client", domain.RolePM),
			step("pm_review", "PM Review", "pm", domain.RolePM),
			step("approval", "Approval", "admin", domain.RoleAdmin),
			step("assign_team", "Assign Team", "pm", domain.RolePM),
			step("requirements", "Requirements", "pm", domain.RolePM),
			step("design", "Design", "dev", domain.RoleDev),
			step("development", "Development", "dev", domain.RoleDev),
			step("testing", "Testing", "qa", domain.RoleQA),
			step("review", "Review", "pm", domain.RolePM),
			step("qa", "QA", "qa", domain.RoleQA),
			step("deployment", "Deployment", "dev", domain.RoleDev),
			step("delivery", "Delivery Package", "pm", domain.RolePM),
			step("feedback", "Client Feedback", "client", domain.RolePM),
			step("close", "Close", "admin", domain.RoleAdmin),
		},
	}
}
