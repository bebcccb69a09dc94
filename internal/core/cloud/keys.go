package cloud

import (
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
)

var extensionsByContentType = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// fileExtension prefers the content type over the uploaded file name
func fileExtension(fileName, contentType string) string {
	if ext, ok := extensionsByContentType[strings.ToLower(contentType)]; ok {
		return ext
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(fileName)), ".")
	if ext == "jpeg" {
		return "jpg"
	}
	return ext
}

func newFileID(fileName, contentType string) string {
	id := uuid.New().String()
	if ext := fileExtension(fileName, contentType); ext != "" {
		id += "." + ext
	}
	return id
}

// TicketPrefix is the key prefix shared by every photo of a household
func TicketPrefix(householdID uuid.UUID) string {
	return "tickets/" + householdID.String() + "/"
}

// TicketImageKey returns the key of an archived photo from its base name.
// Names that would escape the household prefix are rejected.
func TicketImageKey(householdID uuid.UUID, name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\") {
		return "", ErrInvalidFileID
	}
	return TicketPrefix(householdID) + name, nil
}

// TicketObjectKey returns the archive key of a ticket photo: tickets/<household>/<uuid>.<ext>
func TicketObjectKey(householdID uuid.UUID, fileName, contentType string) string {
	return path.Join("tickets", householdID.String(), newFileID(fileName, contentType))
}

// escapeKey escapes every path segment but keeps the separators
func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
