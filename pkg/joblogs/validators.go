package joblogs

type ListJobLogsQuery struct {
	AfterID *int     `query:"after_id" json:"after_id,omitempty"`
	Level   []string `query:"level" json:"level,omitempty" validate:"dive,oneof=info warn error fatal"`
	Tail    *int     `query:"tail" json:"tail,omitempty" validate:"omitempty,min=1,max=1000"`
}
