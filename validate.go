package main

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// allowedExtensions are the upload types the portal accepts. Anything else
// is rejected before OCR or AI calls are made.
var allowedExtensions = map[string]bool{
	"pdf":  true,
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
}

// fileExt returns the lowercased extension of filename without the dot, or
// "" when there is none.
func fileExt(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 || i == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[i+1:])
}

// allowedFile reports whether the filename carries an accepted extension.
func allowedFile(filename string) bool {
	return allowedExtensions[fileExt(filename)]
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitizeFilename reduces a client-supplied filename to a safe object/file
// name component: path separators stripped, runs of disallowed characters
// collapsed to a single underscore.
func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	// Drop any path component the client sent along.
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = unsafeNameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "unnamed"
	}
	return name
}

// uniqueObjectName prefixes the sanitized filename with a UUID so repeated
// uploads of the same file never collide in the bucket.
func uniqueObjectName(filename string) string {
	return uuid.NewString() + "_" + sanitizeFilename(filename)
}

// clampLimit parses a limit query parameter, falling back to def when the
// value is missing or unparsable and capping the result at max.
func clampLimit(raw string, def, max int) int {
	limit := def
	if raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > max {
		limit = max
	}
	return limit
}

// canAccessReports decides whether a caller may read reports owned by
// ownerID: owners always can, and any doctor can read any patient.
func canAccessReports(callerID, callerRole, ownerID string) bool {
	if callerID == "" || ownerID == "" {
		return false
	}
	if callerID == ownerID {
		return true
	}
	return callerRole == RoleDoctor
}
