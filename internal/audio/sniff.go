package audio

import (
	"github.com/gabriel-vasile/mimetype"
)

// fallbackContentType is used when the artifact bytes don't match a known
// audio container. The transcription backend accepts it and sniffs again
// server-side.
const fallbackContentType = "application/octet-stream"

// ContentType infers the MIME type of a captured audio artifact from its
// leading bytes. Platform recorders emit different containers (m4a on iOS,
// 3gp/aac on Android, wav from test fixtures), so the multipart upload
// must not hard-code one.
func ContentType(data []byte) string {
	if len(data) == 0 {
		return fallbackContentType
	}
	return mimetype.Detect(data).String()
}

// FileExtension returns the canonical extension (with leading dot) for the
// artifact, used to name the multipart file part. Empty when unknown.
func FileExtension(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	return mimetype.Detect(data).Extension()
}
