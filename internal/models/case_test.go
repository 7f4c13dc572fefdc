package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestSymptomDecodesBothShapesFromJSON(t *testing.T) {
	raw := `{"case_id":"c1","truth":{"symptoms":["chest pain",{"name":"sweating","description":"drenched in sweat"}],
		"history":{"chief_complaint":"crushing chest pain"}}}`

	var c Case
	require.NoError(t, json.Unmarshal([]byte(raw), &c))
	require.Len(t, c.Truth.Symptoms, 2)
	assert.Equal(t, "chest pain", c.Truth.Symptoms[0].Text())
	assert.Equal(t, "drenched in sweat", c.Truth.Symptoms[1].Text())
}

func TestSymptomDecodesBothShapesFromBSON(t *testing.T) {
	doc := bson.M{
		"case_id": "c1",
		"truth": bson.M{
			"symptoms": bson.A{"wheeze", bson.M{"name": "cough"}},
			"history":  bson.M{"chief_complaint": "short of breath"},
		},
	}
	b, err := bson.Marshal(doc)
	require.NoError(t, err)

	var c Case
	require.NoError(t, bson.Unmarshal(b, &c))
	require.Len(t, c.Truth.Symptoms, 2)
	assert.Equal(t, "wheeze", c.Truth.Symptoms[0].Text())
	assert.Equal(t, "cough", c.Truth.Symptoms[1].Text())
}

func TestCaseValidate(t *testing.T) {
	var nilCase *Case
	assert.Equal(t, "case", nilCase.Validate())
	assert.Equal(t, "case_id", (&Case{}).Validate())
	assert.Equal(t, "truth.history.chief_complaint", (&Case{CaseID: "c1"}).Validate())

	c := &Case{CaseID: "c1", Truth: CaseTruth{ChiefComplaint: "headache"}}
	assert.Empty(t, c.Validate())
	assert.Equal(t, "headache", c.Truth.ChiefComplaintText())
}

func TestInvestigationsLookupPrefersBedside(t *testing.T) {
	inv := Investigations{
		Bedside:      map[string]string{"ECG": "ST elevation in II, III, aVF"},
		Confirmatory: map[string]string{"troponin": "raised", "ecg_repeat": "unchanged"},
	}

	got, ok := inv.Lookup("ecg")
	require.True(t, ok)
	assert.Equal(t, "ST elevation in II, III, aVF", got)

	got, ok = inv.Lookup("trop")
	require.True(t, ok)
	assert.Equal(t, "raised", got)

	_, ok = inv.Lookup("mri")
	assert.False(t, ok)
}

func TestSnapshotNeverReturnsNilFacts(t *testing.T) {
	s := &EncounterSession{SessionID: "s1", Stage: "History"}
	snap := s.Snapshot()
	assert.NotNil(t, snap.RevealedFacts)
	assert.Equal(t, "History", snap.Stage)
}
