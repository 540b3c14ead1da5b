// Package upload validates multipart uploads against an operation's
// input contract. It only inspects declared metadata and never touches
// the filesystem.
package upload

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/zzkydev/Convertify-PDF/internal/apperr"
)

// Rule is the input contract of one operation.
type Rule struct {
	Field    string
	Allowed  []string
	Multiple bool
}

// Allows reports whether ext (with leading dot) is in the allow-list.
func (r Rule) Allows(ext string) bool {
	ext = strings.ToLower(ext)
	for _, a := range r.Allowed {
		if a == ext {
			return true
		}
	}
	return false
}

// Descriptor is one accepted upload.
type Descriptor struct {
	Original   string
	Safe       string
	Ext        string
	Header     *multipart.FileHeader
	StoredPath string
}

// StoredName returns the collision-safe name for the index-th upload of
// a request (index starts at 1).
func (d Descriptor) StoredName(index int) string {
	return fmt.Sprintf("%03d_%s", index, d.Safe)
}

// Validate returns the accepted uploads of form under rule.Field.
func Validate(form *multipart.Form, rule Rule) ([]Descriptor, error) {
	if form == nil {
		return nil, apperr.Validation("no file under key %q", rule.Field)
	}
	headers := form.File[rule.Field]

	if !rule.Multiple {
		if len(headers) == 0 {
			// mime/multipart files unnamed parts under Value.
			if _, ok := form.Value[rule.Field]; ok {
				return nil, apperr.Validation("empty filename")
			}
			return nil, apperr.Validation("no file under key %q", rule.Field)
		}
		d, err := describe(headers[0], rule)
		if err != nil {
			return nil, err
		}
		return []Descriptor{d}, nil
	}

	if len(headers) == 0 {
		return nil, apperr.Validation("no files under key %q", rule.Field)
	}
	accepted := make([]Descriptor, 0, len(headers))
	for _, h := range headers {
		if h == nil || h.Filename == "" {
			continue
		}
		d, err := describe(h, rule)
		if err != nil {
			return nil, err
		}
		accepted = append(accepted, d)
	}
	if len(accepted) == 0 {
		return nil, apperr.Validation("no valid files under key %q", rule.Field)
	}
	return accepted, nil
}

func describe(h *multipart.FileHeader, rule Rule) (Descriptor, error) {
	if h == nil || h.Filename == "" {
		return Descriptor{}, apperr.Validation("empty filename")
	}
	ext := strings.ToLower(filepath.Ext(h.Filename))
	if !rule.Allows(ext) {
		return Descriptor{}, apperr.Validation("unsupported format: %s", h.Filename)
	}
	safe := SanitizeFilename(h.Filename)
	if strings.ToLower(filepath.Ext(safe)) != ext || Stem(safe) == "" {
		safe = "upload" + ext
	}
	return Descriptor{
		Original: h.Filename,
		Safe:     safe,
		Ext:      ext,
		Header:   h,
	}, nil
}
