package jobs

type ListJobsQuery struct {
	Limit  int      `query:"limit" json:"limit,omitempty" default:"20" validate:"min=1,max=100"`
	Offset int      `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Status []string `query:"status" json:"status,omitempty" validate:"dive,oneof=in_progress completed failed aborted"`
	Type   *string  `query:"type" json:"type,omitempty" validate:"omitempty,oneof=scan deduplicate"`
}
