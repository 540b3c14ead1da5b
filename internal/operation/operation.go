// Package operation holds the static descriptors of the conversions the
// gateway offers.
package operation

import (
	"strconv"
	"strings"

	"github.com/zzkydev/Convertify-PDF/internal/apperr"
	"github.com/zzkydev/Convertify-PDF/internal/upload"
)

// Kind identifies a conversion.
type Kind string

const (
	PDFToDOCX   Kind = "pdf-to-docx"
	OCR         Kind = "ocr"
	Merge       Kind = "merge"
	ImagesToPDF Kind = "img-to-pdf"
	PDFToPNG    Kind = "pdf-to-png"
)

// Media types of conversion outputs.
const (
	MediaDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MediaPDF  = "application/pdf"
	MediaZIP  = "application/zip"
)

var (
	PDFExtensions   = []string{".pdf"}
	ImageExtensions = []string{".png", ".jpg", ".jpeg"}
)

// ParamType is the coercion applied to an optional form parameter.
type ParamType int

const (
	String ParamType = iota
	Int
)

// Param declares an optional form parameter.
type Param struct {
	Name    string
	Type    ParamType
	Default string
}

// Params are resolved parameter values keyed by name.
type Params map[string]string

// Int returns the integer value of name. Resolve has already coerced it.
func (p Params) Int(name string) int {
	n, _ := strconv.Atoi(p[name])
	return n
}

// Descriptor is the input/output contract of one conversion.
type Descriptor struct {
	Kind      Kind
	Route     string
	Field     string
	Allowed   []string
	Multiple  bool
	MediaType string
	Params    []Param

	// OutputName derives the download filename from the workspace token
	// and the first accepted upload.
	OutputName func(token string, first upload.Descriptor) string
}

// UploadRule returns the validator rule for d.
func (d Descriptor) UploadRule() upload.Rule {
	return upload.Rule{Field: d.Field, Allowed: d.Allowed, Multiple: d.Multiple}
}

// ResolveParams reads d's declared parameters from form values, applying
// defaults and basic type coercion only.
func (d Descriptor) ResolveParams(values map[string][]string) (Params, error) {
	out := make(Params, len(d.Params))
	for _, p := range d.Params {
		v := p.Default
		if vs := values[p.Name]; len(vs) > 0 && strings.TrimSpace(vs[0]) != "" {
			v = strings.TrimSpace(vs[0])
		}
		if p.Type == Int {
			if _, err := strconv.Atoi(v); err != nil {
				return nil, apperr.Validation("parameter %q must be an integer, got %q", p.Name, v)
			}
		}
		out[p.Name] = v
	}
	return out, nil
}

const (
	ParamLang = "lang"
	ParamDPI  = "dpi"

	DefaultLang = "eng"
	DefaultDPI  = 200
)

var descriptors = []Descriptor{
	{
		Kind:      PDFToDOCX,
		Route:     "/convert/pdf-to-docx",
		Field:     "file",
		Allowed:   PDFExtensions,
		MediaType: MediaDOCX,
		OutputName: func(token string, first upload.Descriptor) string {
			return upload.Stem(first.Safe) + "_" + token + ".docx"
		},
	},
	{
		Kind:      OCR,
		Route:     "/ocr/pdf",
		Field:     "file",
		Allowed:   PDFExtensions,
		MediaType: MediaPDF,
		Params:    []Param{{Name: ParamLang, Type: String, Default: DefaultLang}},
		OutputName: func(token string, first upload.Descriptor) string {
			return "ocr_" + token + "_" + first.Safe
		},
	},
	{
		Kind:      Merge,
		Route:     "/merge/pdf",
		Field:     "files",
		Allowed:   PDFExtensions,
		Multiple:  true,
		MediaType: MediaPDF,
		OutputName: func(token string, _ upload.Descriptor) string {
			return "merged_" + token + ".pdf"
		},
	},
	{
		Kind:      ImagesToPDF,
		Route:     "/convert/img-to-pdf",
		Field:     "files",
		Allowed:   ImageExtensions,
		Multiple:  true,
		MediaType: MediaPDF,
		OutputName: func(token string, _ upload.Descriptor) string {
			return "images_" + token + ".pdf"
		},
	},
	{
		Kind:      PDFToPNG,
		Route:     "/convert/pdf-to-png",
		Field:     "file",
		Allowed:   PDFExtensions,
		MediaType: MediaZIP,
		Params:    []Param{{Name: ParamDPI, Type: Int, Default: strconv.Itoa(DefaultDPI)}},
		OutputName: func(token string, _ upload.Descriptor) string {
			return "pages_" + token + ".zip"
		},
	},
}

// All returns every descriptor in route registration order.
func All() []Descriptor {
	return append([]Descriptor(nil), descriptors...)
}

// Lookup returns the descriptor of kind.
func Lookup(kind Kind) (Descriptor, bool) {
	for _, d := range descriptors {
		if d.Kind == kind {
			return d, true
		}
	}
	return Descriptor{}, false
}
