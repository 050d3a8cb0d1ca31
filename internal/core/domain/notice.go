package domain

import "errors"

const (
	MsgInvalidProofExtension = "Veuillez joindre un fichier avec une extension .jpg, .jpeg ou .png."
	MsgMissingExpenseName    = "Veuillez donner un nom à votre dépense."
	MsgMissingProof          = "Veuillez télécharger un fichier."
)

const (
	FieldFile        = "file"
	FieldExpenseName = "expense-name"
)

// Notice is a blocking validation message meant for the user. It never
// reaches the store.
type Notice struct {
	Field   string
	Message string
	// ResetField asks the caller to clear the offending input.
	ResetField bool
}

func (n *Notice) Error() string {
	return n.Message
}

func (n *Notice) Is(target error) bool {
	return target == ErrInvalidInput
}

func AsNotice(err error) (*Notice, bool) {
	var notice *Notice
	if errors.As(err, &notice) {
		return notice, true
	}
	return nil, false
}

type WorkflowPhase string

const (
	PhaseIdle       WorkflowPhase = "idle"
	PhaseUploading  WorkflowPhase = "uploading"
	PhasePersisting WorkflowPhase = "persisting"
	PhaseDone       WorkflowPhase = "done"
	PhaseFailed     WorkflowPhase = "failed"
)
