package domain

import "linkup/domain/mimetypes"

// Folders used on the object storage
const (
	ChatImagesFolder  = "chat_images"
	ProfilePicsFolder = "profile_pics"
)

// ImageUpload is a validated image payload ready to be sent to an object storage.
type ImageUpload struct {
	Data         []byte
	MIME         mimetypes.MIME
	Folder       string
	MaxDimension int
	Quality      int
}
