package models_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"healthbyte/api/internal/models"
)

func TestMediaStageOnlyAdvances(t *testing.T) {
	item := &models.MediaItem{Stage: models.MediaStageRaw}

	item.Advance(models.MediaStageNormalized)
	require.Equal(t, models.MediaStageNormalized, item.Stage)

	item.Advance(models.MediaStageUploaded)
	require.Equal(t, models.MediaStageUploaded, item.Stage)

	// Moving backwards is ignored.
	item.Advance(models.MediaStageRaw)
	require.Equal(t, models.MediaStageUploaded, item.Stage)

	item.Advance(models.MediaStageClassified)
	item.Advance(models.MediaStageAccepted)
	require.Equal(t, models.MediaStageAccepted, item.Stage)

	// Terminal stages do not flip.
	item.Advance(models.MediaStageRejected)
	require.Equal(t, models.MediaStageAccepted, item.Stage)
}
