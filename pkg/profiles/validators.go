package profiles

import "mime/multipart"

type ListProfilesQuery struct {
	Limit  int      `query:"limit" json:"limit,omitempty" default:"24" validate:"min=1,max=100"`
	Offset int      `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Search *string  `query:"search" json:"search,omitempty" validate:"omitempty,max=100"`
	Tags   []string `query:"tags" json:"tags,omitempty" validate:"omitempty,dive,max=50"`
}

type UpdateProfilePayload struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	PackageID   *string `json:"package_id,omitempty" validate:"omitempty,max=100,packageid"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=10000"`
	Tags        *string `json:"tags,omitempty" validate:"omitempty,max=500"`
	IconURL     *string `json:"icon_url,omitempty" validate:"omitempty,max=2000"`
	Homepage    *string `json:"homepage,omitempty" validate:"omitempty,max=2000,httpurl"`
	LicenseURL  *string `json:"license_url,omitempty" validate:"omitempty,max=2000,httpurl"`
}

type SyncMetadataPayload struct {
	Query  string `json:"query,omitempty" mod:"trim" validate:"max=200"`
	Source string `json:"source,omitempty" default:"auto" validate:"oneof=auto flathub chocolatey"`
}

type DeleteScreenshotQuery struct {
	URL string `query:"url" json:"url" validate:"required"`
}

type UploadImagesPayload struct {
	FormFiles map[string]*multipart.FileHeader `form:"-" json:"-"`
}
