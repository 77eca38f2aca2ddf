package models

// MediaStage tracks an item's progress through the submission pipeline.
// Stages only ever advance.
type MediaStage string

const (
	MediaStageRaw        MediaStage = "raw"
	MediaStageNormalized MediaStage = "normalized"
	MediaStageUploaded   MediaStage = "uploaded"
	MediaStageClassified MediaStage = "classified"
	MediaStageAccepted   MediaStage = "accepted"
	MediaStageRejected   MediaStage = "rejected"
)

// MediaItem is one user-supplied image moving through the pipeline. Data
// holds the original bytes until normalization replaces them with the
// raster-encoded form.
type MediaItem struct {
	Filename     string
	DeclaredMIME string
	Data         []byte

	NormalizedMIME string
	ObjectKey      string
	StorageURL     string

	Labels []Label
	Safety map[string]string

	Stage MediaStage
}

// Label is one subject-matter annotation from the classifier.
type Label struct {
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

// Advance moves the item forward. Moving backwards is a programming error
// and is ignored.
func (m *MediaItem) Advance(next MediaStage) {
	if stageRank(next) > stageRank(m.Stage) {
		m.Stage = next
	}
}

func stageRank(s MediaStage) int {
	switch s {
	case MediaStageRaw:
		return 0
	case MediaStageNormalized:
		return 1
	case MediaStageUploaded:
		return 2
	case MediaStageClassified:
		return 3
	case MediaStageAccepted, MediaStageRejected:
		return 4
	default:
		return -1
	}
}
