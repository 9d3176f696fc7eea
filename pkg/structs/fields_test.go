package structs_test

import (
	"testing"

	"github.com/mdouchement/podote/pkg/structs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type base struct {
	ID string
}

type record struct {
	base
	OrderKey int
	Done     bool
}

func TestGetField(t *testing.T) {
	r := &record{OrderKey: 3}

	v, err := structs.GetField(r, "OrderKey")
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	_, err = structs.GetField(r, "Rank")
	assert.Error(t, err)
}

func TestProject(t *testing.T) {
	row, err := structs.Project(record{OrderKey: 2, Done: true}, "Done", "OrderKey")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"Done": true, "OrderKey": 2}, row)

	_, err = structs.Project(record{}, "Content")
	assert.Error(t, err)
}
