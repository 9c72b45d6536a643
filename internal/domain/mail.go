package domain

const (
	MailTypeCreateOperator = "create_operator"
	MailTypeRunCompleted   = "run_completed"
	MailTypeRunFailed      = "run_failed"
)

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

type CreateOperatorMailData struct {
	FullName string `json:"fullName"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type RunCompletedMailData struct {
	FullName        string `json:"fullName"`
	RunID           string `json:"runID"`
	RunName         string `json:"runName"`
	TotalHouseholds int    `json:"totalHouseholds"`
	Processed       int    `json:"processed"`
	Failed          int    `json:"failed"`
}

type RunFailedMailData struct {
	FullName    string `json:"fullName"`
	RunID       string `json:"runID"`
	RunName     string `json:"runName"`
	HouseholdID int64  `json:"householdID"`
	Reason      string `json:"reason"`
}
