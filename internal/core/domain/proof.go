package domain

import "strings"

var allowedProofExtensions = []string{".jpg", ".jpeg", ".png"}

// FileSelection is what the browser hands over when a file is picked.
type FileSelection struct {
	// Path is the raw input value, e.g. `C:\fakepath\facture.jpg`.
	Path     string
	Name     string
	MimeType string
	Content  []byte
}

// DisplayName is the name checked against the allowed extensions.
func (f FileSelection) DisplayName() string {
	if f.Name != "" {
		return f.Name
	}
	return ProofBaseName(f.Path)
}

// BaseName is the last segment of the selected path.
func (f FileSelection) BaseName() string {
	if f.Path != "" {
		return ProofBaseName(f.Path)
	}
	return ProofBaseName(f.Name)
}

// UploadPayload carries the proof file and the submitter email to the store create call.
type UploadPayload struct {
	FileName string
	MimeType string
	Content  []byte
	Email    string
}

func HasAllowedProofExtension(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range allowedProofExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func ProofBaseName(path string) string {
	idx := strings.LastIndexAny(path, `\/`)
	if idx < 0 {
		return path
	}
	return path[idx+1:]
}
