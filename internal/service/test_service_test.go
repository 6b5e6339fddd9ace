package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/scholarpath/testportal-backend/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestEntryCardFromGeneratedTest(t *testing.T) {
	start := time.Now().Add(time.Hour)
	def := &model.TestDefinition{
		ID:               uuid.New(),
		Title:            "Entrance",
		TimeLimitMinutes: 45,
		TotalQuestions:   30,
		TestStart:        &start,
		Modality:         model.ModalityOnline,
		Source:           model.TestSourceGenerated,
	}

	card := entryCard(def, 0)

	assert.Equal(t, def.ID, card.TestID)
	assert.Equal(t, "Entrance", card.Title)
	assert.Equal(t, 45, card.TimeLimitMinutes)
	assert.Equal(t, 30, card.TotalQuestions)
	assert.Equal(t, &start, card.TestStart)
	assert.Nil(t, card.TestEnd)
}

func TestEntryCardFromBankTest(t *testing.T) {
	def := &model.TestDefinition{
		ID:     uuid.New(),
		Title:  "Scholarship Round 2",
		Source: model.TestSourceCustomBank,
		// TotalQuestions on the definition counts subject specs, which a
		// bank test does not have; the stored count wins.
		TotalQuestions: 0,
	}

	card := entryCard(def, 18)
	assert.Equal(t, 18, card.TotalQuestions)
}
