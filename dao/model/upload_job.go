package model

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// URLMapping maps a client's local file path to the object name it must
// upload that file to.
type URLMapping map[string]string

// UploadJob tracks one assay upload from template submission to merge.
type UploadJob struct {
	gorm.Model
	ETag          string    `gorm:"column:etag;type:varchar(64);not null" json:"_etag"`
	UploaderEmail string    `gorm:"type:varchar(256);not null;index" json:"uploader_email"`
	Uploader      User      `gorm:"foreignKey:UploaderEmail;references:Email;constraint:OnUpdate:CASCADE" json:"-"`
	UploadType    string    `gorm:"type:varchar(128);not null" json:"upload_type"`
	Status        JobStatus `gorm:"type:varchar(32);not null;index" json:"status"`
	StatusDetails *string   `gorm:"type:text" json:"status_details,omitempty"`
	GCSXlsxURI    string    `gorm:"column:gcs_xlsx_uri;type:varchar(512)" json:"gcs_xlsx_uri"`

	// GCSFileMap is fixed when the job is created.
	GCSFileMap datatypes.JSONType[URLMapping] `gorm:"column:gcs_file_map;not null" json:"gcs_file_map"`
	Metadata   datatypes.JSON                 `gorm:"column:metadata_patch" json:"metadata_patch"`
}
