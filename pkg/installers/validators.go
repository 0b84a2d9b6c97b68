package installers

type UpdateInstallerPayload struct {
	Version *string `json:"version,omitempty" validate:"omitempty,max=100,pkgversion"`
	Comment *string `json:"comment,omitempty" validate:"omitempty,max=2000"`
	IsExtra *bool   `json:"is_extra,omitempty"`
}
