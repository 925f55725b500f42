package utils

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// BuildObjectAccessURL returns the public URL of objectKey.
// STORAGE_ACCESS_BASE_URL overrides the GCS default; "{objectKey}" inside it is substituted.
func BuildObjectAccessURL(objectKey string) string {
	base := strings.TrimSpace(os.Getenv("STORAGE_ACCESS_BASE_URL"))
	if base != "" {
		if strings.Contains(base, "{objectKey}") {
			return strings.ReplaceAll(base, "{objectKey}", url.PathEscape(objectKey))
		}
		return strings.TrimRight(base, "/") + "/" + objectKey
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", os.Getenv("GCS_BUCKET"), objectKey)
}
