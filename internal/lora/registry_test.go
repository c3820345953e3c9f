package lora

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"headshotstudio/internal/params"
	"headshotstudio/internal/store"
)

type memStore struct {
	models   []store.LoraModel
	access   map[string]store.UserLoraAccess
	triggers map[string]string
	upserted []store.LoraModel
	saved    map[string]params.Values
	listErr  error
}

func (m *memStore) ActiveLoraModels(context.Context) ([]store.LoraModel, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]store.LoraModel(nil), m.models...), nil
}

func (m *memStore) LoraModel(_ context.Context, id string) (*store.LoraModel, error) {
	for _, lm := range m.models {
		if lm.ID == id {
			cp := lm
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) UpsertLoraModel(_ context.Context, lm store.LoraModel) error {
	m.upserted = append(m.upserted, lm)
	return nil
}

func (m *memStore) SetTriggerWord(_ context.Context, id, word string) error {
	if m.triggers == nil {
		m.triggers = map[string]string{}
	}
	m.triggers[id] = word
	return nil
}

func (m *memStore) UserLoraAccess(context.Context, string) (map[string]store.UserLoraAccess, error) {
	return m.access, nil
}

func (m *memStore) UpsertUserLoraAccess(_ context.Context, profileID, loraID string, custom params.Values) error {
	if m.saved == nil {
		m.saved = map[string]params.Values{}
	}
	m.saved[profileID+"/"+loraID] = custom
	return nil
}

type fakeDescriber map[string]string

func (f fakeDescriber) ModelDescription(_ context.Context, ref string) (string, error) {
	name, _, _ := strings.Cut(ref, ":")
	d, ok := f[name]
	if !ok {
		return "", errors.New("404")
	}
	return d, nil
}

func TestListBackfillsTriggerWords(t *testing.T) {
	s := &memStore{models: []store.LoraModel{
		{ID: "1", ReplicateID: "a/described:v", Name: "Described"},
		{ID: "2", ReplicateID: KnownModel + ":dd50", Name: "BTH"},
		{ID: "3", ReplicateID: "a/plain:v", Name: "Plain"},
		{ID: "4", ReplicateID: "a/set:v", Name: "Set", TriggerWord: "KEEP"},
	}}
	r := NewRegistry(s, fakeDescriber{"a/described": "The trigger word is DSC.", "a/plain": "nothing"})

	models, err := r.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, models, 4)
	assert.Equal(t, "DSC", models[0].TriggerWord)
	assert.Equal(t, KnownTriggerWord, models[1].TriggerWord)
	assert.Empty(t, models[2].TriggerWord)
	assert.Equal(t, "KEEP", models[3].TriggerWord)
	assert.Equal(t, map[string]string{"1": "DSC", "2": KnownTriggerWord}, s.triggers)
	assert.Nil(t, models[0].IsOwner)
}

func TestListEnrichesWithUserAccess(t *testing.T) {
	s := &memStore{
		models: []store.LoraModel{{ID: "1", TriggerWord: "X"}, {ID: "2", TriggerWord: "Y"}},
		access: map[string]store.UserLoraAccess{
			"2": {LoraID: "2", IsOwner: false, CanUse: true, CustomParameters: params.Values{"aspect_ratio": "3:4"}},
		},
	}
	r := NewRegistry(s, nil)

	models, err := r.List(context.Background(), "p1")
	require.NoError(t, err)
	assert.Nil(t, models[0].CanUse)
	require.NotNil(t, models[1].CanUse)
	assert.True(t, *models[1].CanUse)
	assert.False(t, *models[1].IsOwner)
	assert.Equal(t, "3:4", models[1].CustomParameters["aspect_ratio"])
}

func TestListPropagatesStoreError(t *testing.T) {
	r := NewRegistry(&memStore{listErr: errors.New("down")}, nil)
	_, err := r.List(context.Background(), "")
	assert.Error(t, err)
}

func TestSaveCustomParameters(t *testing.T) {
	s := &memStore{models: []store.LoraModel{{ID: "1"}}}
	r := NewRegistry(s, nil)

	assert.ErrorIs(t, r.SaveCustomParameters(context.Background(), "p1", " ", nil), ErrModelRequired)
	assert.ErrorIs(t, r.SaveCustomParameters(context.Background(), "p1", "missing", nil), store.ErrNotFound)
	require.NoError(t, r.SaveCustomParameters(context.Background(), "p1", "1", params.Values{"width": 768}))
	assert.Equal(t, params.Values{"width": 768}, s.saved["p1/1"])
}

func TestSetTriggerWord(t *testing.T) {
	s := &memStore{models: []store.LoraModel{{ID: "1", Name: "M"}}}
	r := NewRegistry(s, nil)

	m, err := r.SetTriggerWord(context.Background(), "1", "NEW")
	require.NoError(t, err)
	assert.Equal(t, "NEW", m.TriggerWord)
	assert.Equal(t, "NEW", s.triggers["1"])

	_, err = r.SetTriggerWord(context.Background(), "nope", "NEW")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
